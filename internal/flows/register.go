package flows

import (
	"context"
	"errors"
)

type RegisterRequest struct {
	Email    string
	Password string
	Nickname string
}

type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureEmailExists
	RegisterFailureNicknameExists
	RegisterFailurePolicy
	RegisterFailureInternal
)

// RegisterResult carries the created user or the failure. Reason holds the
// policy message for RegisterFailurePolicy.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	Reason  string
	User    *UserRecord
}

type RegisterDeps struct {
	Transact         Transactor
	ValidatePassword func(string) error
	HashPassword     func(string) (string, error)
	DefaultRole      string
}

// RunRegister checks email then nickname availability (soft-deleted
// accounts still hold theirs), applies the password policy, and inserts the
// user. A unique-index race at insert time is reported like the matching
// availability check.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	var res RegisterResult
	err := deps.Transact(ctx, func(ctx context.Context, tx Tx) error {
		taken, err := tx.EmailTaken(ctx, req.Email)
		if err != nil {
			return err
		}
		if taken {
			res.Failure = RegisterFailureEmailExists
			return nil
		}

		taken, err = tx.NicknameTaken(ctx, req.Nickname)
		if err != nil {
			return err
		}
		if taken {
			res.Failure = RegisterFailureNicknameExists
			return nil
		}

		if err := deps.ValidatePassword(req.Password); err != nil {
			res.Failure = RegisterFailurePolicy
			res.Reason = err.Error()
			return nil
		}

		hash, err := deps.HashPassword(req.Password)
		if err != nil {
			return err
		}

		user := &UserRecord{
			Email:        req.Email,
			Nickname:     req.Nickname,
			PasswordHash: hash,
			Role:         deps.DefaultRole,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		res.User = user
		return nil
	})

	switch {
	case err == nil:
		return res
	case errors.Is(err, ErrDuplicateEmail):
		return RegisterResult{Failure: RegisterFailureEmailExists, Err: err}
	case errors.Is(err, ErrDuplicateNickname):
		return RegisterResult{Failure: RegisterFailureNicknameExists, Err: err}
	default:
		return RegisterResult{Failure: RegisterFailureInternal, Err: err}
	}
}
