package flows

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrRecordNotFound is returned by Tx lookups that match no live row.
	ErrRecordNotFound = errors.New("flows: record not found")
	// ErrDuplicateEmail and ErrDuplicateNickname are returned by
	// Tx.CreateUser when a unique index rejects the insert.
	ErrDuplicateEmail    = errors.New("flows: duplicate email")
	ErrDuplicateNickname = errors.New("flows: duplicate nickname")
)

// UserRecord is the flow-local account model.
type UserRecord struct {
	ID           int64
	Email        string
	Nickname     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// IDString is the token subject for the user.
func (u UserRecord) IDString() string {
	return strconv.FormatInt(u.ID, 10)
}

// TokenRecord is one stored refresh token. Hash is the Argon2 PHC string.
type TokenRecord struct {
	ID        int64
	UserID    int64
	Hash      string
	ExpiresAt time.Time
}

// Tx is the transactional view of persistence a flow works through.
type Tx interface {
	UserByID(ctx context.Context, id int64) (*UserRecord, error)
	UserByEmail(ctx context.Context, email string) (*UserRecord, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	NicknameTaken(ctx context.Context, nickname string) (bool, error)
	CreateUser(ctx context.Context, u *UserRecord) error
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error

	RefreshTokens(ctx context.Context, userID int64) ([]TokenRecord, error)
	SaveRefreshToken(ctx context.Context, userID int64, hash string, expiresAt time.Time) error
	DeleteRefreshTokens(ctx context.Context, userID int64) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, userID int64, now time.Time) (int64, error)
}

// Transactor runs fn in one transaction: committed when fn returns nil,
// rolled back otherwise.
type Transactor func(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

// parseSubject accepts only positive base-10 integers.
func parseSubject(sub string) (int64, bool) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
