//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"markers/internal/marker/models"
	"markers/internal/marker/store"
	"markers/internal/platform/postgres"
	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
	"markers/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), postgres.Tables()...)
	s.Require().NoError(err)
}

func testMarker(addr byte, name string, mint domain.MintRef) *models.Marker {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Marker{
		Address:   domain.Address{addr},
		Authority: domain.Key{1},
		Owner:     domain.Key{2},
		Domain:    name,
		Mint:      mint,
		Deposit:   models.RentExemptMinimum(models.Space),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	s.Run("gated record keeps its mint", func() {
		m := testMarker(1, "alice.shop", domain.MintRef{9})
		s.Require().NoError(s.store.Create(ctx, m))

		got, err := s.store.FindByAddress(ctx, m.Address)
		s.Require().NoError(err)
		s.Equal(m.Domain, got.Domain)
		s.Equal(m.Mint, got.Mint)
		s.Equal(m.Deposit, got.Deposit)
		s.True(m.CreatedAt.Equal(got.CreatedAt))
	})

	s.Run("ungated record stores a null mint", func() {
		m := testMarker(2, "plain.shop", domain.MintRef{})
		s.Require().NoError(s.store.Create(ctx, m))

		got, err := s.store.FindByAddress(ctx, m.Address)
		s.Require().NoError(err)
		s.True(got.Mint.IsZero())
	})
}

func (s *PostgresStoreSuite) TestUpdateAndDelete() {
	ctx := context.Background()
	m := testMarker(1, "alice.shop", domain.MintRef{9})
	s.Require().NoError(s.store.Create(ctx, m))

	m.ApplyOwner(domain.Key{7}, m.UpdatedAt.Add(time.Minute))
	s.Require().NoError(s.store.Update(ctx, m))
	got, err := s.store.FindByAddress(ctx, m.Address)
	s.Require().NoError(err)
	s.Equal(domain.Key{7}, got.Owner)

	s.Require().NoError(s.store.Delete(ctx, m.Address))
	_, err = s.store.FindByAddress(ctx, m.Address)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, m.Address), sentinel.ErrNotFound)
}

// TestConcurrentCreateSingleWinner verifies that the primary key admits one
// record per address under contention.
func (s *PostgresStoreSuite) TestConcurrentCreateSingleWinner() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, testMarker(1, "race.shop", domain.MintRef{}))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}

func (s *PostgresStoreSuite) TestTxStoreLocksRow() {
	ctx := context.Background()
	m := testMarker(1, "alice.shop", domain.MintRef{9})
	s.Require().NoError(s.store.Create(ctx, m))

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback() }()

	_, err = store.NewPostgresTx(tx).FindByAddress(ctx, m.Address)
	s.Require().NoError(err)

	// A second writer blocks on the row lock until its deadline.
	lockCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	err = s.store.Delete(lockCtx, m.Address)
	s.Error(err)
}
