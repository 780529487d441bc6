package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access from refresh tokens inside the payload.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"

	// MinSecretBytes is the shortest HS256 secret NewCodec accepts.
	MinSecretBytes = 32
)

// ErrTokenDecode is wrapped by every Decode failure: bad signature, wrong
// algorithm, malformed input or expiry.
var ErrTokenDecode = errors.New("jwt: token decode failed")

// Config configures a Codec. Secret is the HS256 signing key.
type Config struct {
	Secret       []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	// Now overrides the clock for issuance and validation. Nil means time.Now.
	Now func() time.Time
}

// Payload is the decoded, verified content of a token.
type Payload struct {
	Subject   string
	Role      string
	Type      TokenType
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	Role string    `json:"role,omitempty"`
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens. It is stateless and safe for
// concurrent use.
type Codec struct {
	cfg    Config
	parser *jwt.Parser
}

// NewCodec validates cfg and prepares the parser.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 {
		return nil, errors.New("jwt: invalid MaxFutureIAT")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Codec{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// IssueAccess signs an access token for userID carrying role.
func (c *Codec) IssueAccess(userID, role string, ttl time.Duration) (string, error) {
	return c.issue(userID, role, TypeAccess, ttl)
}

// IssueRefresh signs a refresh token for userID. Refresh tokens carry no role.
func (c *Codec) IssueRefresh(userID string, ttl time.Duration) (string, error) {
	return c.issue(userID, "", TypeRefresh, ttl)
}

func (c *Codec) issue(subject, role string, typ TokenType, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("jwt: ttl must be positive")
	}

	now := c.cfg.Now()
	cl := claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if c.cfg.Audience != "" {
		cl.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiry and returns the payload. It does not
// check the token type; callers must compare Payload.Type themselves.
func (c *Codec) Decode(token string) (*Payload, error) {
	var cl claims
	parsed, err := c.parser.ParseWithClaims(token, &cl, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenDecode
	}
	if cl.IssuedAt != nil && cl.IssuedAt.Time.After(c.cfg.Now().Add(c.cfg.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenDecode)
	}

	p := &Payload{
		Subject: cl.Subject,
		Role:    cl.Role,
		Type:    cl.Type,
		ID:      cl.ID,
	}
	if cl.IssuedAt != nil {
		p.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		p.ExpiresAt = cl.ExpiresAt.Time
	}
	return p, nil
}
