package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/boardauth/jwt"
)

type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureDecode
	AuthenticateFailureWrongType
	AuthenticateFailureNoSubject
	AuthenticateFailurePayload
	AuthenticateFailureUserMissing
	AuthenticateFailureInternal
)

type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	UserID  string
	User    *UserRecord
}

type AuthenticateDeps struct {
	Decode   func(string) (*jwt.Payload, error)
	Transact Transactor
}

// RunAuthenticate resolves an access token to its live user with one decode
// and one lookup. No hashing happens on this path.
func RunAuthenticate(ctx context.Context, accessToken string, deps AuthenticateDeps) AuthenticateResult {
	payload, err := deps.Decode(accessToken)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureDecode}
	}
	if payload.Type != jwt.TypeAccess {
		return AuthenticateResult{Failure: AuthenticateFailureWrongType}
	}
	if payload.Subject == "" {
		return AuthenticateResult{Failure: AuthenticateFailureNoSubject}
	}
	userID, ok := parseSubject(payload.Subject)
	if !ok {
		return AuthenticateResult{Failure: AuthenticateFailurePayload, UserID: payload.Subject}
	}

	res := AuthenticateResult{UserID: payload.Subject}
	err = deps.Transact(ctx, func(ctx context.Context, tx Tx) error {
		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			return err
		}
		res.User = user
		return nil
	})
	switch {
	case err == nil:
		return res
	case errors.Is(err, ErrRecordNotFound):
		res.Failure = AuthenticateFailureUserMissing
	default:
		res.Failure = AuthenticateFailureInternal
		res.Err = err
	}
	return res
}
