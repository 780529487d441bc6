package flows

import (
	"context"
	"errors"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureWrongType
	RefreshFailurePayload
	RefreshFailureNotFound
	RefreshFailureMismatch
	RefreshFailureExpired
	RefreshFailureUserMissing
	RefreshFailureInternal
)

// RefreshResult carries either the rotated pair or failure metadata.
// Revoked counts the stored rows deleted by the rotation or the expiry
// cleanup.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string
	Revoked      int64
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Tokens   TokenDeps
	Transact Transactor
}

// RunRefresh rotates a refresh token. The presented token must match one
// stored hash of its subject; every stored token of the user is then
// replaced by the new one. A matched but expired row revokes all of the
// user's tokens, and that revocation is committed even though the call
// fails.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	userID, check := deps.Tokens.decodeRefresh(refreshToken)
	switch check {
	case refreshCheckDecode:
		return RefreshResult{Failure: RefreshFailureDecode}
	case refreshCheckType:
		return RefreshResult{Failure: RefreshFailureWrongType}
	case refreshCheckSubject:
		return RefreshResult{Failure: RefreshFailurePayload}
	}

	res := RefreshResult{UserID: UserRecord{ID: userID}.IDString()}
	err := deps.Transact(ctx, func(ctx context.Context, tx Tx) error {
		rows, err := tx.RefreshTokens(ctx, userID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			res.Failure = RefreshFailureNotFound
			return nil
		}

		matched := matchRefresh(rows, refreshToken, deps.Tokens.VerifyRefresh)
		if matched == nil {
			res.Failure = RefreshFailureMismatch
			return nil
		}

		if matched.ExpiresAt.Before(deps.Tokens.now()) {
			n, err := tx.DeleteRefreshTokens(ctx, userID)
			if err != nil {
				return err
			}
			res.Failure = RefreshFailureExpired
			res.Revoked = n
			return nil
		}

		user, err := tx.UserByID(ctx, userID)
		if errors.Is(err, ErrRecordNotFound) {
			res.Failure = RefreshFailureUserMissing
			return nil
		}
		if err != nil {
			return err
		}

		if res.Revoked, err = tx.DeleteRefreshTokens(ctx, userID); err != nil {
			return err
		}
		res.AccessToken, res.RefreshToken, err = deps.Tokens.issuePair(ctx, tx, *user)
		return err
	})
	if err != nil {
		return RefreshResult{Failure: RefreshFailureInternal, Err: err, UserID: res.UserID}
	}
	return res
}

// matchRefresh returns the first row whose hash verifies raw. Rows with an
// unreadable hash are skipped.
func matchRefresh(rows []TokenRecord, raw string, verify func(raw, hash string) (bool, error)) *TokenRecord {
	for i := range rows {
		ok, err := verify(raw, rows[i].Hash)
		if err == nil && ok {
			return &rows[i]
		}
	}
	return nil
}
