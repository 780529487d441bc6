// Package config loads the process configuration from the environment. A
// .env file in the working directory is read first when present; real
// environment variables win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectName string
	HTTPAddr    string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	SecretKey  string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	UseViewsCounterCache bool
	ViewsSyncInterval    time.Duration

	AuditAMQPURL   string
	AuditAMQPQueue string

	LoginMaxAttempts int
	LoginCooldown    time.Duration
}

// Load reads .env (if any) and the environment. files overrides the
// default ".env" lookup.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		ProjectName: getenv("PROJECT_NAME", "Board API"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8000"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),

		SecretKey:  os.Getenv("SECRET_KEY"),
		Algorithm:  getenv("ALGORITHM", "HS256"),
		AccessTTL:  time.Duration(p.int("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTTL: time.Duration(p.int("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,

		UseViewsCounterCache: p.bool("USE_VIEWS_COUNTER_CACHE", true),
		ViewsSyncInterval:    p.duration("VIEWS_SYNC_INTERVAL", time.Minute),

		AuditAMQPURL:   os.Getenv("AUDIT_AMQP_URL"),
		AuditAMQPQueue: getenv("AUDIT_AMQP_QUEUE", "auth.audit"),

		LoginMaxAttempts: p.int("LOGIN_MAX_ATTEMPTS", 10),
		LoginCooldown:    p.duration("LOGIN_COOLDOWN", 15*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	if !strings.EqualFold(cfg.Algorithm, "HS256") {
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not supported, only HS256", cfg.Algorithm))
	}
	if cfg.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be > 0"))
	}
	if cfg.RefreshTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRE_DAYS must be > 0"))
	}
	if cfg.ViewsSyncInterval <= 0 {
		errs = append(errs, errors.New("VIEWS_SYNC_INTERVAL must be > 0"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

type parser struct {
	errs *[]error
}

func (p parser) int(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) bool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
