package marker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markers/internal/marker/models"
	"markers/internal/marker/service"
	"markers/internal/platform/config"
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
)

func TestSelectBackend(t *testing.T) {
	t.Run("memory is the default", func(t *testing.T) {
		b, err := SelectBackend("", Resources{}, time.Second)
		require.NoError(t, err)
		assert.NotNil(t, b.Store)
		assert.IsType(t, &service.ShardedTx{}, b.Tx)
	})

	t.Run("postgres without a database", func(t *testing.T) {
		_, err := SelectBackend(config.StorePostgres, Resources{}, time.Second)
		assert.ErrorContains(t, err, "requires a database")
	})

	t.Run("redis without a client", func(t *testing.T) {
		_, err := SelectBackend(config.StoreRedis, Resources{}, time.Second)
		assert.ErrorContains(t, err, "requires a client")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := SelectBackend("etcd", Resources{}, time.Second)
		assert.ErrorContains(t, err, "unknown marker store")
	})
}

func TestMemoryBackendSharesStore(t *testing.T) {
	b := MemoryBackend(time.Second)
	m, err := models.NewMarker(domain.Address{1}, domain.Key{2}, domain.Key{3}, "a.shop", domain.MintRef{}, time.Now())
	require.NoError(t, err)

	err = b.Tx.RunInTx(context.Background(), m.Address, func(ctx context.Context, st service.Store) error {
		return st.Create(ctx, m)
	})
	require.NoError(t, err)

	got, err := b.Store.FindByAddress(context.Background(), m.Address)
	require.NoError(t, err)
	assert.Equal(t, "a.shop", got.Domain)
}

func TestBoundRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, release, err := bound(ctx, time.Second)
	release()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}
