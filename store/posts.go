package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type PostRepo struct {
	db *gorm.DB
}

func NewPostRepo(db *gorm.DB) *PostRepo {
	return &PostRepo{db: db}
}

// Create inserts p. Used by seeding and tests.
func (r *PostRepo) Create(ctx context.Context, p *Post) error {
	if p.Category == "" {
		p.Category = CategoryGeneral
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("store: create post: %w", err)
	}
	return nil
}

// GetActive returns a non-deleted post.
func (r *PostRepo) GetActive(ctx context.Context, id int64) (*Post, error) {
	var p Post
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get post: %w", err)
	}
	return &p, nil
}

// IncrementViews adds one view to a non-deleted post and returns the new
// count. The update holds the row lock for the rest of the transaction, so
// the value read back is this call's own increment.
func (r *PostRepo) IncrementViews(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Post{}).
		Where("id = ? AND is_deleted = ?", id, false).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("store: increment views: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var views int64
	row := r.db.WithContext(ctx).Model(&Post{}).Select("views").Where("id = ?", id).Row()
	if err := row.Scan(&views); err != nil {
		return 0, fmt.Errorf("store: read views: %w", err)
	}
	return views, nil
}

// SyncViews overwrites the stored view count of post id.
func (r *PostRepo) SyncViews(ctx context.Context, id, views int64) error {
	err := r.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).UpdateColumn("views", views).Error
	if err != nil {
		return fmt.Errorf("store: sync views of post %d: %w", id, err)
	}
	return nil
}

// SyncViewsBatch writes every count in views. Callers run it inside one
// transaction; the first failure aborts the batch.
func (r *PostRepo) SyncViewsBatch(ctx context.Context, views map[int64]int64) error {
	for id, n := range views {
		if err := r.SyncViews(ctx, id, n); err != nil {
			return err
		}
	}
	return nil
}
