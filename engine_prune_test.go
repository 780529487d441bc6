package boardauth

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/MrEthical07/boardauth/internal/testutil"
)

// abortingDB gives a SQLite test database Postgres transaction semantics
// for one failure mode: after a failed statement every later write in the
// transaction fails until the transaction rolls back to a savepoint.
type abortingDB struct {
	failPrune atomic.Bool
	aborted   atomic.Bool
}

func newAbortingDB(t *testing.T, db *gorm.DB) *abortingDB {
	t.Helper()

	a := &abortingDB{}
	cb := db.Callback()
	if err := cb.Delete().Before("gorm:delete").Register("test:fail_prune", func(d *gorm.DB) {
		if a.failPrune.Load() && d.Statement.Table == "refresh_tokens" {
			a.aborted.Store(true)
			_ = d.AddError(errors.New("prune failed"))
		}
	}); err != nil {
		t.Fatalf("register delete callback: %v", err)
	}
	if err := cb.Create().Before("gorm:create").Register("test:aborted", func(d *gorm.DB) {
		if a.aborted.Load() {
			_ = d.AddError(errors.New("current transaction is aborted, commands ignored until end of transaction block"))
		}
	}); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	if err := cb.Raw().Before("gorm:raw").Register("test:rollback_to", func(d *gorm.DB) {
		if strings.HasPrefix(d.Statement.SQL.String(), "ROLLBACK TO SAVEPOINT") {
			a.aborted.Store(false)
		}
	}); err != nil {
		t.Fatalf("register raw callback: %v", err)
	}
	return a
}

func TestLoginPruneFailureKeepsTransactionUsable(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)
	user := registerUser(t, engine, "pat@example.com", "pat")
	a := newAbortingDB(t, db)

	a.failPrune.Store(true)
	pair, err := engine.Login(context.Background(), "pat@example.com", testPassword)
	if err != nil {
		t.Fatalf("prune failure must not fail login: %v", err)
	}
	if a.aborted.Load() {
		t.Fatal("transaction left aborted after the failed prune")
	}
	if n := countRefreshRows(t, db, user.ID); n != 1 {
		t.Fatalf("expected the new refresh row to be committed, got %d", n)
	}

	a.failPrune.Store(false)
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Refresh with the login token failed: %v", err)
	}
}
