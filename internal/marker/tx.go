package marker

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"markers/internal/marker/service"
	"markers/internal/marker/store"
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
	txcontext "markers/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTx runs each marker operation in one database transaction. The
// transaction is also placed on the context so a Postgres custody ledger
// performs its burn inside the same commit.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	return &PostgresTx{db: db, timeout: timeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ domain.Address, fn func(ctx context.Context, store service.Store) error) error {
	ctx, cancel, err := bound(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	ctx, undo := txcontext.WithUndo(ctx)
	err = txcontext.Run(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.NewPostgresTx(tx))
	})
	return undo.Abort(ctx, err)
}

// RedisTx runs each marker operation under WATCH on the marker's key. Writes
// are applied in one MULTI/EXEC; a concurrent writer aborts with a conflict.
// Custody burns made inside fn cannot join EXEC, so they are restored when the
// operation fails or loses the race.
type RedisTx struct {
	store   *store.RedisStore
	timeout time.Duration
}

func NewRedisTx(client *redis.Client, timeout time.Duration) *RedisTx {
	return &RedisTx{store: store.NewRedis(client), timeout: timeout}
}

func (t *RedisTx) RunInTx(ctx context.Context, addr domain.Address, fn func(ctx context.Context, store service.Store) error) error {
	ctx, cancel, err := bound(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	ctx, undo := txcontext.WithUndo(ctx)
	err = t.store.Watch(ctx, addr, func(ctx context.Context, tx *store.RedisTx) error {
		return fn(ctx, tx)
	})
	return undo.Abort(ctx, err)
}

func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
