package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
	txcontext "markers/pkg/platform/tx"
)

// StoreTx provides the atomic check-then-mutate boundary for one marker address.
// Implementations may wrap a database transaction, a WATCH/MULTI block, or,
// in-memory, a lock on the address's shard.
type StoreTx interface {
	RunInTx(ctx context.Context, addr domain.Address, fn func(ctx context.Context, store Store) error) error
}

// numShards spreads addresses across independent locks so unrelated markers
// never contend.
const numShards = 128

// defaultTxTimeout is the maximum duration of a marker transaction.
const defaultTxTimeout = 5 * time.Second

// ShardedTx serialises operations per address over an in-memory store.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	store   Store
	timeout time.Duration
}

func NewShardedTx(store Store, timeout time.Duration) *ShardedTx {
	return &ShardedTx{store: store, timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, addr domain.Address, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := shardFor(addr)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, undo := txcontext.WithUndo(ctx)
	return undo.Abort(ctx, fn(ctx, t.store))
}

func shardFor(addr domain.Address) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(addr[:])
	return h.Sum32() % numShards
}
