package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureInternal
)

// LoginResult carries the issued pair or the failure classification.
// Reason is an audit label for credential failures.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	Reason       string
	UserID       string
	AccessToken  string
	RefreshToken string
	Upgraded     bool
	Pruned       int64
}

// LoginDeps captures login dependencies. The rate hooks are optional; a
// non-nil error from CheckLoginRate or IncrementLoginRate means the budget
// is exhausted.
type LoginDeps struct {
	Tokens         TokenDeps
	Transact       Transactor
	UpgradeOnLogin bool
	SkipPrune      bool

	ClientIPFromContext func(context.Context) string
	CheckLoginRate      func(ctx context.Context, email, ip string) error
	IncrementLoginRate  func(ctx context.Context, email, ip string) error
	ResetLoginRate      func(ctx context.Context, email, ip string) error

	VerifyPassword       func(password, hash string) (bool, error)
	DummyVerify          func(password string)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(password string) (string, error)

	Warn func(string, ...any)
}

// RunLogin verifies the credentials, prunes the user's expired refresh
// tokens and issues a new pair, all inside one transaction.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, email, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	var res LoginResult
	err := deps.Transact(ctx, func(ctx context.Context, tx Tx) error {
		user, err := tx.UserByEmail(ctx, email)
		if errors.Is(err, ErrRecordNotFound) {
			// Unknown emails still pay one Argon2 verify.
			if deps.DummyVerify != nil {
				deps.DummyVerify(password)
			}
			res.Failure = LoginFailureInvalidCredentials
			res.Reason = "user_not_found"
			return nil
		}
		if err != nil {
			return err
		}

		ok, err := deps.VerifyPassword(password, user.PasswordHash)
		if err != nil || !ok {
			res.Failure = LoginFailureInvalidCredentials
			res.Reason = "password_mismatch"
			if err != nil {
				res.Reason = "hash_unreadable"
			}
			res.UserID = user.IDString()
			return nil
		}
		res.UserID = user.IDString()

		if deps.UpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil {
			res.Upgraded = upgradePasswordHash(ctx, tx, user, password, deps)
		}

		if !deps.SkipPrune {
			pruned, err := tx.DeleteExpiredRefreshTokens(ctx, user.ID, deps.Tokens.now())
			if err != nil {
				deps.Warn("expired refresh token prune failed", "user_id", res.UserID, "error", err)
			}
			res.Pruned = pruned
		}

		res.AccessToken, res.RefreshToken, err = deps.Tokens.issuePair(ctx, tx, *user)
		return err
	})
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, Err: err, UserID: res.UserID}
	}

	if res.Failure == LoginFailureInvalidCredentials {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, email, ip); err != nil {
				res.Failure = LoginFailureRateLimited
				res.Err = err
			}
		}
		return res
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, email, ip); err != nil {
			deps.Warn("login rate reset failed", "user_id", res.UserID, "error", err)
		}
	}
	return res
}

func upgradePasswordHash(ctx context.Context, tx Tx, user *UserRecord, password string, deps LoginDeps) bool {
	needs, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return false
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("password hash upgrade generation failed", "user_id", user.IDString(), "error", err)
		return false
	}
	if err := tx.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("password hash upgrade update failed", "user_id", user.IDString(), "error", err)
		return false
	}
	return true
}
