package viewcount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/store"
	"github.com/MrEthical07/boardauth/uow"
)

// DefaultKeyPrefix namespaces counter keys: post:views:{id}.
const DefaultKeyPrefix = "post:views:"

// ErrPostNotFound is returned when the post is missing or soft-deleted.
var ErrPostNotFound = &boardauth.Error{Code: "POST_NOT_FOUND", Message: "Post not found."}

// Reader returns the view count of a post after recording one more view.
type Reader interface {
	Read(ctx context.Context, postID int64) (int64, error)
}

// Config tunes the cache. Use DefaultConfig and override fields.
type Config struct {
	KeyPrefix string
	// WriteThroughEvery writes the counter to the database whenever a
	// background increment reaches a multiple of it. Zero disables it.
	WriteThroughEvery int64
	// ScanCount is the COUNT hint passed to SCAN during a sweep.
	ScanCount int64
	// MGetBatch bounds the number of keys fetched per MGET.
	MGetBatch int

	Logger  *slog.Logger
	Metrics *boardauth.Metrics
}

func DefaultConfig() Config {
	return Config{
		KeyPrefix:         DefaultKeyPrefix,
		WriteThroughEvery: 10,
		ScanCount:         1000,
		MGetBatch:         500,
	}
}

// Cache is the Redis-backed read-through counter. Safe for concurrent use.
type Cache struct {
	rdb     redis.UniversalClient
	uow     *uow.Manager
	cfg     Config
	logger  *slog.Logger
	metrics *boardauth.Metrics

	wg sync.WaitGroup
}

func New(rdb redis.UniversalClient, mgr *uow.Manager, cfg Config) *Cache {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 1000
	}
	if cfg.MGetBatch <= 0 {
		cfg.MGetBatch = 500
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		rdb:     rdb,
		uow:     mgr,
		cfg:     cfg,
		logger:  logger.With("component", "viewcount"),
		metrics: cfg.Metrics,
	}
}

func (c *Cache) key(postID int64) string {
	return c.cfg.KeyPrefix + strconv.FormatInt(postID, 10)
}

// Read returns the counter of postID. A cached value is returned as is and
// incremented in the background; Wait blocks until those increments are
// done. A miss goes to the database.
func (c *Cache) Read(ctx context.Context, postID int64) (int64, error) {
	key := c.key(postID)

	var numErr *strconv.NumError
	corrupt := false

	cached, err := c.rdb.Get(ctx, key).Int64()
	switch {
	case err == nil:
		c.metrics.Inc(boardauth.MetricViewCacheHit)
		c.wg.Add(1)
		go c.incrementAsync(context.WithoutCancel(ctx), postID, key)
		return cached, nil
	case errors.Is(err, redis.Nil):
	case errors.As(err, &numErr):
		corrupt = true
		c.logger.Warn("view cache value is not a counter", "post_id", postID, "error", err)
	default:
		c.logger.Warn("view cache read failed", "post_id", postID, "error", err)
	}

	c.metrics.Inc(boardauth.MetricViewCacheMiss)
	views, err := incrementDurable(ctx, c.uow, postID)
	if err != nil {
		return 0, err
	}

	// SETNX keeps a value another request seeded in the meantime; a
	// non-numeric value is replaced outright.
	if corrupt {
		err = c.rdb.Set(ctx, key, views, 0).Err()
	} else {
		err = c.rdb.SetNX(ctx, key, views, 0).Err()
	}
	if err != nil {
		c.logger.Warn("view cache seed failed", "post_id", postID, "error", err)
	}
	return views, nil
}

func (c *Cache) incrementAsync(ctx context.Context, postID int64, key string) {
	defer c.wg.Done()

	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		c.logger.Warn("view cache increment failed", "post_id", postID, "error", err)
		return
	}
	if c.cfg.WriteThroughEvery <= 0 || n%c.cfg.WriteThroughEvery != 0 {
		return
	}

	err = c.uow.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return u.Posts.SyncViews(ctx, postID, n)
	})
	if err != nil {
		c.logger.Error("view write-through failed", "post_id", postID, "views", n, "error", err)
		return
	}
	c.metrics.Inc(boardauth.MetricViewWriteThrough)
}

// Wait blocks until every background increment started by Read returns.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Direct reads counters from the database only.
type Direct struct {
	uow *uow.Manager
}

func NewDirect(mgr *uow.Manager) *Direct {
	return &Direct{uow: mgr}
}

func (d *Direct) Read(ctx context.Context, postID int64) (int64, error) {
	return incrementDurable(ctx, d.uow, postID)
}

func incrementDurable(ctx context.Context, mgr *uow.Manager, postID int64) (int64, error) {
	var views int64
	err := mgr.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		n, err := u.Posts.IncrementViews(ctx, postID)
		if err != nil {
			return err
		}
		views = n
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrPostNotFound.WithDetails(map[string]any{"post_id": postID})
	}
	if err != nil {
		return 0, fmt.Errorf("viewcount: increment post %d: %w", postID, err)
	}
	return views, nil
}
