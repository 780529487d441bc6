// Package uow scopes a set of repositories to one database transaction.
//
// A [UnitOfWork] is acquired with [Manager.Begin] or, more commonly, through
// [Manager.Do], which commits when the callback returns nil and rolls back
// on error or panic. Repository handles must not be used after the scope
// ends. Scopes do not nest.
package uow

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MrEthical07/boardauth/store"
)

var (
	// ErrDone is returned by Commit or Rollback on a finished unit of work.
	ErrDone = errors.New("uow: unit of work already finished")
	// ErrNested is returned when a scope is opened inside another one.
	ErrNested = errors.New("uow: nested unit of work")
)

type scopeKey struct{}

// Manager opens units of work on a database handle.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// UnitOfWork owns one transaction and the repositories bound to it.
type UnitOfWork struct {
	tx   *gorm.DB
	ctx  context.Context
	done bool

	Users         *store.UserRepo
	RefreshTokens *store.RefreshTokenRepo
	Posts         *store.PostRepo
}

// Begin starts a transaction. The caller must Commit or Rollback it;
// deferring Rollback right after Begin is always safe.
func (m *Manager) Begin(ctx context.Context) (*UnitOfWork, error) {
	if InScope(ctx) {
		return nil, ErrNested
	}

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("uow: begin: %w", tx.Error)
	}

	return &UnitOfWork{
		tx:            tx,
		ctx:           context.WithValue(ctx, scopeKey{}, struct{}{}),
		Users:         store.NewUserRepo(tx),
		RefreshTokens: store.NewRefreshTokenRepo(tx),
		Posts:         store.NewPostRepo(tx),
	}, nil
}

// Context returns ctx marked as inside this scope. Passing it to Begin or Do
// fails with ErrNested.
func (u *UnitOfWork) Context() context.Context {
	return u.ctx
}

func (u *UnitOfWork) Commit() error {
	if u.done {
		return ErrDone
	}
	u.done = true
	if err := u.tx.Commit().Error; err != nil {
		return fmt.Errorf("uow: commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. After Commit it is a no-op returning
// ErrDone.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return ErrDone
	}
	u.done = true
	if err := u.tx.Rollback().Error; err != nil {
		return fmt.Errorf("uow: rollback: %w", err)
	}
	return nil
}

// Savepoint runs fn under a named savepoint. When fn fails the work since
// the savepoint is rolled back and the transaction stays usable, so a
// failed statement does not poison the rest of the unit of work on
// Postgres.
func (u *UnitOfWork) Savepoint(name string, fn func() error) error {
	if u.done {
		return ErrDone
	}
	if err := u.tx.Session(&gorm.Session{}).SavePoint(name).Error; err != nil {
		return fmt.Errorf("uow: savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if rbErr := u.tx.Session(&gorm.Session{}).RollbackTo(name).Error; rbErr != nil {
			return errors.Join(err, fmt.Errorf("uow: rollback to %s: %w", name, rbErr))
		}
		return err
	}
	return nil
}

// Do runs fn inside a new unit of work. A nil return commits; an error or a
// panic rolls back, and the panic is re-raised after the rollback.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, u *UnitOfWork) error) (err error) {
	u, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = u.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := u.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(u.ctx, u); err != nil {
		return err
	}
	return u.Commit()
}

// InScope reports whether ctx was produced by a unit of work.
func InScope(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	return ctx.Value(scopeKey{}) != nil
}
