package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefreshTokenRepo stores hashed refresh tokens. There is no lookup by
// token value: the raw token is only ever compared against a user's rows.
type RefreshTokenRepo struct {
	db *gorm.DB
}

func NewRefreshTokenRepo(db *gorm.DB) *RefreshTokenRepo {
	return &RefreshTokenRepo{db: db}
}

// Create stores hash for userID with the given expiry.
func (r *RefreshTokenRepo) Create(ctx context.Context, userID int64, hash string, expiresAt time.Time) (*RefreshToken, error) {
	row := &RefreshToken{
		UserID:    userID,
		Token:     hash,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("store: create refresh token: %w", err)
	}
	return row, nil
}

// ListByUser returns every stored token of userID, oldest first. On Postgres
// the rows are locked until the surrounding transaction ends, so two
// rotations of the same set serialize.
func (r *RefreshTokenRepo) ListByUser(ctx context.Context, userID int64) ([]RefreshToken, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id")
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []RefreshToken
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list refresh tokens: %w", err)
	}
	return rows, nil
}

// DeleteAllByUser removes every token of userID and returns the count.
func (r *RefreshTokenRepo) DeleteAllByUser(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: delete refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpiredByUser removes the tokens of userID that expired before now.
func (r *RefreshTokenRepo) DeleteExpiredByUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at < ?", userID, now.UTC()).
		Delete(&RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: delete expired refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
