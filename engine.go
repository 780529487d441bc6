package boardauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/boardauth/internal/audit"
	"github.com/MrEthical07/boardauth/internal/flows"
	"github.com/MrEthical07/boardauth/internal/rate"
	"github.com/MrEthical07/boardauth/jwt"
	"github.com/MrEthical07/boardauth/password"
	"github.com/MrEthical07/boardauth/uow"
)

// Engine runs the authentication operations. Build it with New().Build();
// after that it is immutable and safe for concurrent use.
type Engine struct {
	config       Config
	uow          *uow.Manager
	codec        *jwt.Codec
	passwordHash *password.Argon2
	dummyHash    string
	policy       password.Policy
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time
	flows        flows.Service
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the counter set so the view-count cache can record into
// the same snapshot.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies email and password and returns a new token pair. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials. The user's
// expired refresh tokens are pruned in the same transaction.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, email, password)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, res.UserID, ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return nil, ErrLoginRateLimited
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": email, "reason": res.Reason}
		})
		return nil, ErrInvalidCredentials
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, res.Err, func() map[string]string {
			return map[string]string{"identifier": email, "reason": "internal"}
		})
		return nil, res.Err
	}

	if res.Upgraded {
		e.metricInc(MetricPasswordHashUpgraded)
		e.emitAudit(ctx, auditEventPasswordHashUpgraded, true, res.UserID, nil, nil)
	}
	if res.Pruned > 0 {
		e.metrics.Add(MetricRefreshTokensPruned, uint64(res.Pruned))
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, nil, nil)

	return &TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken, TokenType: TokenType}, nil
}

// Refresh rotates a refresh token: the presented token must match a stored
// hash of its subject, every stored token of that user is revoked, and a
// new pair is issued. Presenting an already-rotated token fails with
// ErrInvalidToken. An expired match revokes all of the user's tokens and
// fails with ErrRefreshTokenExpired.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Failure != flows.RefreshFailureNone {
		reason, err := refreshFailure(res)
		switch res.Failure {
		case flows.RefreshFailureExpired:
			e.metricInc(MetricRefreshExpired)
			e.emitAudit(ctx, auditEventRefreshExpired, false, res.UserID, err, func() map[string]string {
				return map[string]string{"revoked": itoa64(res.Revoked)}
			})
		case flows.RefreshFailureNotFound:
			e.metricInc(MetricRefreshNotFound)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, err, func() map[string]string {
				return map[string]string{"reason": reason}
			})
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, err, func() map[string]string {
				return map[string]string{"reason": reason}
			})
		}
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, nil, func() map[string]string {
		return map[string]string{"revoked": itoa64(res.Revoked)}
	})

	return &TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken, TokenType: TokenType}, nil
}

func refreshFailure(res flows.RefreshResult) (string, error) {
	switch res.Failure {
	case flows.RefreshFailureDecode:
		return "decode_failed", ErrInvalidToken
	case flows.RefreshFailureWrongType:
		return "not_refresh_token", ErrInvalidToken
	case flows.RefreshFailurePayload:
		return "bad_subject", ErrTokenPayloadInvalid
	case flows.RefreshFailureNotFound:
		return "no_stored_tokens", ErrRefreshTokenNotFound
	case flows.RefreshFailureMismatch:
		return "no_matching_token", ErrInvalidToken
	case flows.RefreshFailureExpired:
		return "expired", ErrRefreshTokenExpired
	case flows.RefreshFailureUserMissing:
		return "user_missing", userNotFound(res.UserID)
	default:
		return "internal", res.Err
	}
}

// Logout revokes every stored refresh token of the token's subject.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, refreshToken)
	var err error
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, res.UserID, nil, func() map[string]string {
			return map[string]string{"revoked": itoa64(res.Revoked)}
		})
		return nil
	case flows.LogoutFailureDecode, flows.LogoutFailureWrongType:
		err = ErrInvalidToken
	case flows.LogoutFailurePayload:
		err = ErrTokenPayloadInvalid
	default:
		err = res.Err
	}

	e.metricInc(MetricLogoutFailure)
	e.emitAudit(ctx, auditEventLogoutFailure, false, res.UserID, err, nil)
	return err
}

func (e *Engine) buildFlowService() flows.Service {
	tokens := flows.TokenDeps{
		Decode: e.codec.Decode,
		IssueAccess: func(userID, role string) (string, error) {
			return e.codec.IssueAccess(userID, role, e.config.JWT.AccessTTL)
		},
		IssueRefresh: func(userID string) (string, error) {
			return e.codec.IssueRefresh(userID, e.config.JWT.RefreshTTL)
		},
		HashRefresh:   e.passwordHash.Hash,
		VerifyRefresh: e.passwordHash.Verify,
		RefreshTTL:    e.config.JWT.RefreshTTL,
		Now:           e.now,
	}
	warn := func(msg string, args ...any) {
		e.logger.Warn(msg, args...)
	}

	login := flows.LoginDeps{
		Tokens:               tokens,
		Transact:             e.transact,
		UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
		SkipPrune:            !e.config.Security.PruneExpiredOnLogin,
		ClientIPFromContext:  clientIPFromContext,
		VerifyPassword:       e.passwordHash.Verify,
		DummyVerify:          func(pw string) { _, _ = e.passwordHash.Verify(pw, e.dummyHash) },
		PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
		HashPassword:         e.passwordHash.Hash,
		Warn:                 warn,
	}
	if e.rateLimiter != nil {
		login.CheckLoginRate = e.checkLoginRate
		login.IncrementLoginRate = e.incrementLoginRate
		login.ResetLoginRate = e.rateLimiter.ResetLogin
	}

	return flows.New(flows.Deps{
		Login:   login,
		Refresh: flows.RefreshDeps{Tokens: tokens, Transact: e.transact},
		Logout:  flows.LogoutDeps{Tokens: tokens, Transact: e.transact},
		Register: flows.RegisterDeps{
			Transact:         e.transact,
			ValidatePassword: e.policy.Validate,
			HashPassword:     e.passwordHash.Hash,
			DefaultRole:      string(RoleUser),
		},
		Authenticate: flows.AuthenticateDeps{
			Decode:   e.codec.Decode,
			Transact: e.transact,
		},
	})
}

// checkLoginRate and incrementLoginRate fail open: a Redis outage is logged
// and the login proceeds unthrottled.
func (e *Engine) checkLoginRate(ctx context.Context, email, ip string) error {
	err := e.rateLimiter.CheckLogin(ctx, email, ip)
	if errors.Is(err, rate.ErrRedisUnavailable) {
		e.logger.Warn("login throttle unavailable", "error", err)
		return nil
	}
	return err
}

func (e *Engine) incrementLoginRate(ctx context.Context, email, ip string) error {
	err := e.rateLimiter.IncrementLogin(ctx, email, ip)
	if errors.Is(err, rate.ErrRedisUnavailable) {
		e.logger.Warn("login throttle unavailable", "error", err)
		return nil
	}
	return err
}
