package boardauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/boardauth/internal/flows"
)

// Authenticate resolves an access token to its live user: one decode, one
// lookup, no hashing. Refresh tokens are rejected with ErrInvalidToken.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}

	res := e.flows.Authenticate(ctx, accessToken)

	var err error
	switch res.Failure {
	case flows.AuthenticateFailureNone:
		e.metricInc(MetricAuthenticateSuccess)
		return publicUser(res.User), nil
	case flows.AuthenticateFailureDecode, flows.AuthenticateFailureWrongType, flows.AuthenticateFailureNoSubject:
		err = ErrInvalidToken
	case flows.AuthenticateFailurePayload:
		err = ErrTokenPayloadInvalid
	case flows.AuthenticateFailureUserMissing:
		err = userNotFound(res.UserID)
	default:
		err = res.Err
	}

	e.metricInc(MetricAuthenticateFailure)
	e.emitAudit(ctx, auditEventAuthenticateFailure, false, res.UserID, err, nil)
	return nil, err
}

// RequireRole returns ErrRuleViolation unless user has exactly role. The
// details name the rule, e.g. ADMIN_ONLY.
func (e *Engine) RequireRole(ctx context.Context, user *User, role Role) error {
	if user != nil && user.Role == role {
		return nil
	}

	details := map[string]any{
		"rule_code":     strings.ToUpper(string(role)) + "_ONLY",
		"required_role": string(role),
	}
	userID := ""
	if user != nil {
		userID = user.IDString()
		details["current_role"] = string(user.Role)
		details["user_id"] = user.ID
	}

	e.metricInc(MetricRoleDenied)
	e.emitAudit(ctx, auditEventRoleDenied, false, userID, ErrRuleViolation, func() map[string]string {
		return map[string]string{"required_role": string(role)}
	})
	return ErrRuleViolation.WithDetails(details)
}

// UserByID loads a live user. Missing and soft-deleted users both yield
// ErrUserNotFound.
func (e *Engine) UserByID(ctx context.Context, id int64) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	var rec *flows.UserRecord
	err := e.transact(ctx, func(ctx context.Context, tx flows.Tx) error {
		u, err := tx.UserByID(ctx, id)
		rec = u
		return err
	})
	if errors.Is(err, flows.ErrRecordNotFound) {
		return nil, userNotFound(itoa64(id))
	}
	if err != nil {
		return nil, err
	}
	return publicUser(rec), nil
}
