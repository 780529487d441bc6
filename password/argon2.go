package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	phcAlgorithm          = "argon2id"

	// DefaultMaxSecretBytes caps the input size accepted by Hash and Verify
	// when Config.MaxSecretBytes is zero.
	DefaultMaxSecretBytes = 1024
)

var (
	// ErrEmptySecret is returned by Hash for a zero-length input.
	ErrEmptySecret = errors.New("password: empty secret")
	// ErrSecretTooLong is returned when the input exceeds MaxSecretBytes.
	ErrSecretTooLong = errors.New("password: secret too long")
	// ErrMalformedHash is returned when an encoded hash is not a valid argon2id PHC string.
	ErrMalformedHash = errors.New("password: malformed argon2id hash")
	// ErrIncompatibleVersion is returned for PHC strings produced by another argon2 revision.
	ErrIncompatibleVersion = errors.New("password: incompatible argon2 version")
)

// Config holds the Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxSecretBytes int
}

// DefaultConfig returns production parameters (64 MiB, 3 passes, 2 lanes).
func DefaultConfig() Config {
	return Config{
		Memory:         64 * 1024,
		Time:           3,
		Parallelism:    2,
		SaltLength:     16,
		KeyLength:      32,
		MaxSecretBytes: DefaultMaxSecretBytes,
	}
}

// Argon2 hashes and verifies secrets with Argon2id. It is used for account
// passwords and for refresh tokens at rest. Safe for concurrent use.
type Argon2 struct {
	cfg Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSecretBytes <= 0 {
		cfg.MaxSecretBytes = DefaultMaxSecretBytes
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a salted Argon2id key from secret and returns it in PHC form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<lanes>$<salt>$<key>
//
// Every call draws a fresh salt, so hashing the same secret twice yields
// different strings.
func (a *Argon2) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if len(secret) > a.cfg.MaxSecretBytes {
		return "", ErrSecretTooLong
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	return encodePHC(phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
		key:         key,
	}), nil
}

// Verify reports whether secret matches encoded. A mismatch is (false, nil);
// an error means encoded could not be parsed.
func (a *Argon2) Verify(secret, encoded string) (bool, error) {
	if len(secret) > a.cfg.MaxSecretBytes {
		return false, ErrSecretTooLong
	}

	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(secret), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	switch {
	case p.memory < a.cfg.Memory, p.time < a.cfg.Time, p.parallelism < a.cfg.Parallelism:
		return true, nil
	case uint32(len(p.key)) != a.cfg.KeyLength:
		return true, nil
	}
	return false, nil
}

func encodePHC(p phc) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version, p.memory, p.time, p.parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func decodePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != phcAlgorithm {
		return phc{}, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return phc{}, ErrMalformedHash
	}
	if version != argon2.Version {
		return phc{}, ErrIncompatibleVersion
	}

	var (
		p           phc
		parallelism uint32
	)
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &parallelism); err != nil || n != 3 {
		return phc{}, ErrMalformedHash
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || parallelism < uint32(minParallelism) || parallelism > 255 {
		return phc{}, ErrMalformedHash
	}
	p.parallelism = uint8(parallelism)

	var err error
	if p.salt, err = decodeSegment(fields[4]); err != nil || len(p.salt) < int(minSaltLength) {
		return phc{}, ErrMalformedHash
	}
	if p.key, err = decodeSegment(fields[5]); err != nil || len(p.key) < int(minKeyLength) {
		return phc{}, ErrMalformedHash
	}
	return p, nil
}

// decodeSegment accepts both padded and unpadded standard base64; other
// argon2 encoders differ on padding.
func decodeSegment(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password: time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password: parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %d", minKeyLength)
	}
	return nil
}
