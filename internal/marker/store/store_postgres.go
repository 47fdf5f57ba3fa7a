package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"markers/internal/marker/models"
	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists markers in the markers table. Built over a transaction
// it locks the rows it reads so check-then-mutate sequences cannot interleave.
type PostgresStore struct {
	q      dbExecutor
	locked bool
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx binds the store to tx and reads with SELECT ... FOR UPDATE.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx, locked: true}
}

func (s *PostgresStore) Create(ctx context.Context, m *models.Marker) error {
	query := `
		INSERT INTO markers (address, domain, authority, owner, mint, deposit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		m.Address[:],
		m.Domain,
		m.Authority[:],
		m.Owner[:],
		nullableMint(m.Mint),
		int64(m.Deposit),
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("marker %s: %w", m.Address, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert marker: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByAddress(ctx context.Context, addr domain.Address) (*models.Marker, error) {
	query := `
		SELECT domain, authority, owner, mint, deposit, created_at, updated_at
		FROM markers
		WHERE address = $1
	`
	if s.locked {
		query += ` FOR UPDATE`
	}
	var (
		authority, owner, mint []byte
		deposit                int64
	)
	m := &models.Marker{Address: addr}
	err := s.q.QueryRowContext(ctx, query, addr[:]).Scan(
		&m.Domain, &authority, &owner, &mint, &deposit, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("marker %s: %w", addr, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find marker: %w", err)
	}
	if m.Authority, err = domain.KeyFromBytes(authority); err != nil {
		return nil, err
	}
	if m.Owner, err = domain.KeyFromBytes(owner); err != nil {
		return nil, err
	}
	if mint != nil {
		if m.Mint, err = domain.MintFromBytes(mint); err != nil {
			return nil, err
		}
	}
	m.Deposit = uint64(deposit)
	return m, nil
}

func (s *PostgresStore) Update(ctx context.Context, m *models.Marker) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE markers SET owner = $1, updated_at = $2 WHERE address = $3`,
		m.Owner[:], m.UpdatedAt, m.Address[:])
	if err != nil {
		return fmt.Errorf("update marker: %w", err)
	}
	return requireRow(res, m.Address)
}

func (s *PostgresStore) Delete(ctx context.Context, addr domain.Address) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM markers WHERE address = $1`, addr[:])
	if err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	return requireRow(res, addr)
}

func requireRow(res sql.Result, addr domain.Address) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("marker %s: %w", addr, sentinel.ErrNotFound)
	}
	return nil
}

func nullableMint(m domain.MintRef) any {
	if m.IsZero() {
		return nil
	}
	return m[:]
}
