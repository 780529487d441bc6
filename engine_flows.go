package boardauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/boardauth/internal/flows"
	"github.com/MrEthical07/boardauth/store"
	"github.com/MrEthical07/boardauth/uow"
)

// transact opens one unit of work per flow call.
func (e *Engine) transact(ctx context.Context, fn func(ctx context.Context, tx flows.Tx) error) error {
	return e.uow.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return fn(ctx, uowTx{u: u})
	})
}

// uowTx adapts a unit of work to flows.Tx and translates store errors into
// the flow sentinels.
type uowTx struct {
	u *uow.UnitOfWork
}

func (t uowTx) UserByID(ctx context.Context, id int64) (*flows.UserRecord, error) {
	u, err := t.u.Users.GetActiveByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return userRecord(u), nil
}

func (t uowTx) UserByEmail(ctx context.Context, email string) (*flows.UserRecord, error) {
	u, err := t.u.Users.GetActiveByEmail(ctx, email)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return userRecord(u), nil
}

func (t uowTx) EmailTaken(ctx context.Context, email string) (bool, error) {
	return t.u.Users.EmailExists(ctx, email)
}

func (t uowTx) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	return t.u.Users.NicknameExists(ctx, nickname)
}

func (t uowTx) CreateUser(ctx context.Context, rec *flows.UserRecord) error {
	m := &store.User{
		Email:          rec.Email,
		Nickname:       rec.Nickname,
		HashedPassword: rec.PasswordHash,
		Role:           store.Role(rec.Role),
	}
	if err := t.u.Users.Create(ctx, m); err != nil {
		return translateStoreErr(err)
	}
	rec.ID = m.ID
	rec.Role = string(m.Role)
	rec.CreatedAt = m.CreatedAt
	return nil
}

// UpdatePasswordHash and DeleteExpiredRefreshTokens are best-effort steps of
// login; each runs under its own savepoint so a failure leaves the login
// transaction usable.
func (t uowTx) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	return t.u.Savepoint("password_upgrade", func() error {
		return translateStoreErr(t.u.Users.UpdatePasswordHash(ctx, userID, hash))
	})
}

func (t uowTx) RefreshTokens(ctx context.Context, userID int64) ([]flows.TokenRecord, error) {
	rows, err := t.u.RefreshTokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]flows.TokenRecord, len(rows))
	for i, r := range rows {
		out[i] = flows.TokenRecord{ID: r.ID, UserID: r.UserID, Hash: r.Token, ExpiresAt: r.ExpiresAt}
	}
	return out, nil
}

func (t uowTx) SaveRefreshToken(ctx context.Context, userID int64, hash string, expiresAt time.Time) error {
	_, err := t.u.RefreshTokens.Create(ctx, userID, hash, expiresAt)
	return err
}

func (t uowTx) DeleteRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	return t.u.RefreshTokens.DeleteAllByUser(ctx, userID)
}

func (t uowTx) DeleteExpiredRefreshTokens(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var pruned int64
	err := t.u.Savepoint("prune_expired", func() error {
		var err error
		pruned, err = t.u.RefreshTokens.DeleteExpiredByUser(ctx, userID, now)
		return err
	})
	return pruned, err
}

func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return flows.ErrRecordNotFound
	}
	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		if dup.Column == "nickname" {
			return flows.ErrDuplicateNickname
		}
		return flows.ErrDuplicateEmail
	}
	return err
}

func userRecord(u *store.User) *flows.UserRecord {
	return &flows.UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		Nickname:     u.Nickname,
		PasswordHash: u.HashedPassword,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func publicUser(r *flows.UserRecord) *User {
	return &User{
		ID:        r.ID,
		Email:     r.Email,
		Nickname:  r.Nickname,
		Role:      Role(r.Role),
		CreatedAt: r.CreatedAt,
	}
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
