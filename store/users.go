package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// UserRepo reads and writes users through the bound handle, which is a
// transaction when the repo comes from a unit of work.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetActiveByID returns the user unless it is missing or soft-deleted.
func (r *UserRepo) GetActiveByID(ctx context.Context, id int64) (*User, error) {
	return r.first(ctx, "id = ? AND is_deleted = ?", id, false)
}

// GetActiveByEmail returns the non-deleted user registered with email.
func (r *UserRepo) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ? AND is_deleted = ?", email, false)
}

// EmailExists reports whether any user, deleted or not, holds email.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

// NicknameExists reports whether any user, deleted or not, holds nickname.
func (r *UserRepo) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, "nickname = ?", nickname)
}

// DuplicateError reports the unique column an insert collided with. It
// matches ErrDuplicate under errors.Is.
type DuplicateError struct {
	Column string
	err    error
}

func (e *DuplicateError) Error() string {
	return "store: duplicate " + e.Column + ": " + e.err.Error()
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *DuplicateError) Unwrap() error { return e.err }

// Create inserts u and fills its ID. A unique violation yields a
// *DuplicateError naming the email or nickname column.
func (r *UserRepo) Create(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return &DuplicateError{Column: duplicateColumn(err), err: err}
		}
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash of user id.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("hashed_password", hash)
	if res.Error != nil {
		return fmt.Errorf("store: update password hash: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) first(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where(query, args...).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("store: user exists: %w", err)
	}
	return n > 0, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Postgres reports SQLSTATE 23505 with the index name; SQLite names the
	// table and column.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// duplicateColumn reads the violated column from the driver message. Index
// names are idx_users_email / idx_users_nickname on Postgres and the column
// is users.email / users.nickname on SQLite.
func duplicateColumn(err error) string {
	if strings.Contains(strings.ToLower(err.Error()), "nickname") {
		return "nickname"
	}
	return "email"
}
