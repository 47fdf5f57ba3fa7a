package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"markers/internal/marker/models"
	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
)

const (
	markerKeyPrefix = "marker:"

	fieldData      = "data"
	fieldDeposit   = "deposit"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// RedisStore keeps each marker in a hash holding its fixed binary layout plus
// bookkeeping fields. Mutations run under WATCH/MULTI; a concurrent writer on the
// same key aborts the transaction with sentinel.ErrConflict and nothing is retried.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func markerKey(addr domain.Address) string {
	return markerKeyPrefix + addr.String()
}

// Watch runs fn against a view of addr that reads through WATCH and queues its
// writes into a single MULTI/EXEC.
func (s *RedisStore) Watch(ctx context.Context, addr domain.Address, fn func(ctx context.Context, tx *RedisTx) error) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rt := &RedisTx{tx: tx}
		if err := fn(ctx, rt); err != nil {
			return err
		}
		if len(rt.ops) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, op := range rt.ops {
				op(ctx, p)
			}
			return nil
		})
		return err
	}, markerKey(addr))
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("marker %s: %w", addr, sentinel.ErrConflict)
	}
	return err
}

func (s *RedisStore) FindByAddress(ctx context.Context, addr domain.Address) (*models.Marker, error) {
	return findMarker(ctx, s.client, addr)
}

func (s *RedisStore) Create(ctx context.Context, m *models.Marker) error {
	return s.Watch(ctx, m.Address, func(ctx context.Context, tx *RedisTx) error {
		return tx.Create(ctx, m)
	})
}

func (s *RedisStore) Update(ctx context.Context, m *models.Marker) error {
	return s.Watch(ctx, m.Address, func(ctx context.Context, tx *RedisTx) error {
		return tx.Update(ctx, m)
	})
}

func (s *RedisStore) Delete(ctx context.Context, addr domain.Address) error {
	return s.Watch(ctx, addr, func(ctx context.Context, tx *RedisTx) error {
		return tx.Delete(ctx, addr)
	})
}

// RedisTx reads through the watched connection and defers writes to EXEC.
type RedisTx struct {
	tx  *redis.Tx
	ops []func(ctx context.Context, p redis.Pipeliner)
}

func (t *RedisTx) FindByAddress(ctx context.Context, addr domain.Address) (*models.Marker, error) {
	return findMarker(ctx, t.tx, addr)
}

func (t *RedisTx) Create(ctx context.Context, m *models.Marker) error {
	exists, err := t.exists(ctx, m.Address)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("marker %s: %w", m.Address, sentinel.ErrAlreadyUsed)
	}
	fields, err := encodeMarker(m)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.HSet(ctx, markerKey(m.Address), fields)
	})
	return nil
}

func (t *RedisTx) Update(ctx context.Context, m *models.Marker) error {
	exists, err := t.exists(ctx, m.Address)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("marker %s: %w", m.Address, sentinel.ErrNotFound)
	}
	fields, err := encodeMarker(m)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.HSet(ctx, markerKey(m.Address), fields)
	})
	return nil
}

func (t *RedisTx) Delete(ctx context.Context, addr domain.Address) error {
	exists, err := t.exists(ctx, addr)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("marker %s: %w", addr, sentinel.ErrNotFound)
	}
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.Del(ctx, markerKey(addr))
	})
	return nil
}

func (t *RedisTx) exists(ctx context.Context, addr domain.Address) (bool, error) {
	n, err := t.tx.Exists(ctx, markerKey(addr)).Result()
	if err != nil {
		return false, fmt.Errorf("check marker: %w", err)
	}
	return n > 0, nil
}

func findMarker(ctx context.Context, c redis.Cmdable, addr domain.Address) (*models.Marker, error) {
	fields, err := c.HGetAll(ctx, markerKey(addr)).Result()
	if err != nil {
		return nil, fmt.Errorf("find marker: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("marker %s: %w", addr, sentinel.ErrNotFound)
	}
	return decodeMarker(addr, fields)
}

func encodeMarker(m *models.Marker) (map[string]any, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldData:      data,
		fieldDeposit:   strconv.FormatUint(m.Deposit, 10),
		fieldCreatedAt: strconv.FormatInt(m.CreatedAt.UnixNano(), 10),
		fieldUpdatedAt: strconv.FormatInt(m.UpdatedAt.UnixNano(), 10),
	}, nil
}

func decodeMarker(addr domain.Address, fields map[string]string) (*models.Marker, error) {
	m := &models.Marker{Address: addr}
	if err := m.UnmarshalBinary([]byte(fields[fieldData])); err != nil {
		return nil, err
	}
	deposit, err := strconv.ParseUint(fields[fieldDeposit], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse deposit: %w", err)
	}
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	m.Deposit = deposit
	m.CreatedAt = time.Unix(0, created).UTC()
	m.UpdatedAt = time.Unix(0, updated).UTC()
	return m, nil
}
