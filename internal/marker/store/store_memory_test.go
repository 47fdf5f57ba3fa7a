package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"markers/internal/marker/models"
	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newMarker(addr byte, name string) *models.Marker {
	now := time.Now()
	return &models.Marker{
		Address:   domain.Address{addr},
		Authority: domain.Key{1},
		Owner:     domain.Key{2},
		Domain:    name,
		Mint:      domain.MintRef{3},
		Deposit:   models.RentExemptMinimum(models.Space),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	m := newMarker(1, "alice.shop")
	s.Require().NoError(s.store.Create(s.ctx, m))

	found, err := s.store.FindByAddress(s.ctx, m.Address)
	s.Require().NoError(err)
	s.Equal(m.Domain, found.Domain)
	s.Equal(m.Owner, found.Owner)

	s.Run("second create at the same address is rejected", func() {
		err := s.store.Create(s.ctx, newMarker(1, "alice.shop"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown address", func() {
		_, err := s.store.FindByAddress(s.ctx, domain.Address{42})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestReturnedRecordsAreCopies() {
	m := newMarker(1, "alice.shop")
	s.Require().NoError(s.store.Create(s.ctx, m))

	found, err := s.store.FindByAddress(s.ctx, m.Address)
	s.Require().NoError(err)
	found.Owner = domain.Key{9}

	again, err := s.store.FindByAddress(s.ctx, m.Address)
	s.Require().NoError(err)
	s.Equal(domain.Key{2}, again.Owner)
}

func (s *InMemoryStoreSuite) TestUpdateAndDelete() {
	m := newMarker(1, "alice.shop")
	s.Require().NoError(s.store.Create(s.ctx, m))

	m.Owner = domain.Key{7}
	s.Require().NoError(s.store.Update(s.ctx, m))
	found, err := s.store.FindByAddress(s.ctx, m.Address)
	s.Require().NoError(err)
	s.Equal(domain.Key{7}, found.Owner)

	s.Require().NoError(s.store.Delete(s.ctx, m.Address))
	_, err = s.store.FindByAddress(s.ctx, m.Address)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(s.ctx, m.Address), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, m), sentinel.ErrNotFound)

	s.Run("name can be reused after deletion", func() {
		s.NoError(s.store.Create(s.ctx, newMarker(1, "alice.shop")))
	})
}
