// Package tx carries a SQL transaction on the context so that stores owned by
// different packages can commit together.
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

type ctxKey struct{}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores tx in ctx. A nil tx leaves ctx unchanged.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From extracts the transaction placed by WithTx.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx, ok
}

// Executor returns the context's transaction, or db when there is none.
func Executor(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Run calls fn inside the context's transaction when one is present. Otherwise
// it begins a transaction on db, places it on the context and commits when fn
// succeeds.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx, ok := From(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type undoKey struct{}

// Undo collects compensating actions for writes that cannot join the
// transaction the caller is running. They are replayed when that transaction
// aborts.
type Undo struct {
	mu  sync.Mutex
	fns []func(ctx context.Context) error
}

// WithUndo attaches a fresh Undo to ctx.
func WithUndo(ctx context.Context) (context.Context, *Undo) {
	u := &Undo{}
	return context.WithValue(ctx, undoKey{}, u), u
}

// OnAbort registers fn with the Undo carried by ctx. It reports false when
// ctx carries none.
func OnAbort(ctx context.Context, fn func(ctx context.Context) error) bool {
	u, ok := ctx.Value(undoKey{}).(*Undo)
	if !ok {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fns = append(u.fns, fn)
	return true
}

// Run executes the registered actions newest first and clears them.
func (u *Undo) Run(ctx context.Context) error {
	u.mu.Lock()
	fns := u.fns
	u.fns = nil
	u.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports how many actions are pending.
func (u *Undo) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.fns)
}

// Abort replays u when err is non-nil and returns err joined with any
// compensation failure. The actions run detached from ctx's cancellation.
func (u *Undo) Abort(ctx context.Context, err error) error {
	if err == nil || u.Len() == 0 {
		return err
	}
	if uerr := u.Run(context.WithoutCancel(ctx)); uerr != nil {
		return errors.Join(err, fmt.Errorf("compensate: %w", uerr))
	}
	return err
}
