package store

import (
	"context"
	"fmt"
	"sync"

	"markers/internal/marker/models"
	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
)

// InMemory keeps markers keyed by their derived address.
// Records are copied on the way in and out so callers never share state with the map.
type InMemory struct {
	mu      sync.RWMutex
	markers map[domain.Address]*models.Marker
}

func NewInMemory() *InMemory {
	return &InMemory{markers: make(map[domain.Address]*models.Marker)}
}

func (s *InMemory) Create(_ context.Context, m *models.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.markers[m.Address]; exists {
		return fmt.Errorf("marker %s: %w", m.Address, sentinel.ErrAlreadyUsed)
	}
	clone := *m
	s.markers[m.Address] = &clone
	return nil
}

func (s *InMemory) FindByAddress(_ context.Context, addr domain.Address) (*models.Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markers[addr]
	if !ok {
		return nil, fmt.Errorf("marker %s: %w", addr, sentinel.ErrNotFound)
	}
	clone := *m
	return &clone, nil
}

func (s *InMemory) Update(_ context.Context, m *models.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[m.Address]; !ok {
		return fmt.Errorf("marker %s: %w", m.Address, sentinel.ErrNotFound)
	}
	clone := *m
	s.markers[m.Address] = &clone
	return nil
}

func (s *InMemory) Delete(_ context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[addr]; !ok {
		return fmt.Errorf("marker %s: %w", addr, sentinel.ErrNotFound)
	}
	delete(s.markers, addr)
	return nil
}
