package custody

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
	txcontext "markers/pkg/platform/tx"
)

// PostgresLedger persists mints and accounts. When a transaction is present in
// the context every statement joins it, so a burn commits or rolls back together
// with the marker deletion that depends on it.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) execer(ctx context.Context) txcontext.Querier {
	return txcontext.Executor(ctx, l.db)
}

func (l *PostgresLedger) CreateMint(ctx context.Context, mintAuthority domain.Key) (domain.MintRef, error) {
	var ref domain.MintRef
	if _, err := rand.Read(ref[:]); err != nil {
		return ref, fmt.Errorf("generate mint ref: %w", err)
	}
	query := `INSERT INTO custody_mints (ref, mint_authority, supply) VALUES ($1, $2, 0)`
	if _, err := l.execer(ctx).ExecContext(ctx, query, ref[:], mintAuthority[:]); err != nil {
		return domain.MintRef{}, fmt.Errorf("insert mint: %w", err)
	}
	return ref, nil
}

func (l *PostgresLedger) OpenAccount(ctx context.Context, owner domain.Key, mint domain.MintRef) (domain.AccountRef, error) {
	var ref domain.AccountRef
	if _, err := rand.Read(ref[:]); err != nil {
		return ref, fmt.Errorf("generate account ref: %w", err)
	}
	query := `
		INSERT INTO custody_accounts (ref, owner, mint, amount)
		SELECT $1, $2, ref, 0 FROM custody_mints WHERE ref = $3
	`
	res, err := l.execer(ctx).ExecContext(ctx, query, ref[:], owner[:], mint[:])
	if err != nil {
		return domain.AccountRef{}, fmt.Errorf("insert account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.AccountRef{}, fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
	}
	return ref, nil
}

func (l *PostgresLedger) MintTo(ctx context.Context, mint domain.MintRef, account domain.AccountRef, mintAuthority domain.Key, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return l.inTx(ctx, func(ctx context.Context) error {
		var authority []byte
		err := l.execer(ctx).QueryRowContext(ctx,
			`SELECT mint_authority FROM custody_mints WHERE ref = $1 FOR UPDATE`, mint[:]).Scan(&authority)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
			}
			return fmt.Errorf("lock mint: %w", err)
		}
		stored, err := domain.KeyFromBytes(authority)
		if err != nil {
			return err
		}
		if stored != mintAuthority {
			return ErrNotMintAuthority
		}
		acct, err := l.lockAccount(ctx, account)
		if err != nil {
			return err
		}
		if acct.Mint != mint {
			return ErrMintMismatch
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_accounts SET amount = amount + $1 WHERE ref = $2`, int64(amount), account[:]); err != nil {
			return fmt.Errorf("credit account: %w", err)
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_mints SET supply = supply + $1 WHERE ref = $2`, int64(amount), mint[:]); err != nil {
			return fmt.Errorf("raise supply: %w", err)
		}
		return nil
	})
}

func (l *PostgresLedger) Transfer(ctx context.Context, from, to domain.AccountRef, authority domain.Key, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return l.inTx(ctx, func(ctx context.Context) error {
		src, err := l.lockAccount(ctx, from)
		if err != nil {
			return err
		}
		dst, err := l.lockAccount(ctx, to)
		if err != nil {
			return err
		}
		if src.Owner != authority {
			return ErrOwnerMismatch
		}
		if src.Mint != dst.Mint {
			return ErrMintMismatch
		}
		if src.Amount < amount {
			return ErrInsufficientFunds
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_accounts SET amount = amount - $1 WHERE ref = $2`, int64(amount), from[:]); err != nil {
			return fmt.Errorf("debit account: %w", err)
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_accounts SET amount = amount + $1 WHERE ref = $2`, int64(amount), to[:]); err != nil {
			return fmt.Errorf("credit account: %w", err)
		}
		return nil
	})
}

// Burn destroys one unit of mint held in account. authority must own the account.
// Burn debits one unit. Outside a caller's SQL transaction the burn commits on
// its own, so a restore is registered for any enclosing Undo.
func (l *PostgresLedger) Burn(ctx context.Context, mint domain.MintRef, account domain.AccountRef, authority domain.Key) error {
	_, joined := txcontext.From(ctx)
	err := l.inTx(ctx, func(ctx context.Context) error {
		acct, err := l.lockAccount(ctx, account)
		if err != nil {
			return err
		}
		if acct.Mint != mint {
			return ErrMintMismatch
		}
		if acct.Owner != authority {
			return ErrOwnerMismatch
		}
		if acct.Amount == 0 {
			return ErrInsufficientFunds
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_accounts SET amount = amount - 1 WHERE ref = $1`, account[:]); err != nil {
			return fmt.Errorf("debit account: %w", err)
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_mints SET supply = supply - 1 WHERE ref = $1`, mint[:]); err != nil {
			return fmt.Errorf("lower supply: %w", err)
		}
		return nil
	})
	if err == nil && !joined {
		txcontext.OnAbort(ctx, func(ctx context.Context) error {
			return l.restore(ctx, mint, account)
		})
	}
	return err
}

// restore credits back one burned unit.
func (l *PostgresLedger) restore(ctx context.Context, mint domain.MintRef, account domain.AccountRef) error {
	return l.inTx(ctx, func(ctx context.Context) error {
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_accounts SET amount = amount + 1 WHERE ref = $1`, account[:]); err != nil {
			return fmt.Errorf("credit account: %w", err)
		}
		if _, err := l.execer(ctx).ExecContext(ctx,
			`UPDATE custody_mints SET supply = supply + 1 WHERE ref = $1`, mint[:]); err != nil {
			return fmt.Errorf("raise supply: %w", err)
		}
		return nil
	})
}

func (l *PostgresLedger) BalanceOf(ctx context.Context, holder domain.Key, mint domain.MintRef) (uint64, error) {
	var total int64
	err := l.execer(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM custody_accounts WHERE owner = $1 AND mint = $2`,
		holder[:], mint[:]).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return uint64(total), nil
}

func (l *PostgresLedger) OwnerOf(ctx context.Context, account domain.AccountRef) (domain.Key, error) {
	acct, err := l.loadAccount(ctx, account, false)
	if err != nil {
		return domain.Key{}, err
	}
	return acct.Owner, nil
}

// AmountOf returns the units held in one account.
func (l *PostgresLedger) AmountOf(ctx context.Context, account domain.AccountRef) (uint64, error) {
	acct, err := l.loadAccount(ctx, account, false)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

func (l *PostgresLedger) MintOf(ctx context.Context, account domain.AccountRef) (domain.MintRef, error) {
	acct, err := l.loadAccount(ctx, account, false)
	if err != nil {
		return domain.MintRef{}, err
	}
	return acct.Mint, nil
}

// Supply returns the outstanding units of mint.
func (l *PostgresLedger) Supply(ctx context.Context, mint domain.MintRef) (uint64, error) {
	var supply int64
	err := l.execer(ctx).QueryRowContext(ctx,
		`SELECT supply FROM custody_mints WHERE ref = $1`, mint[:]).Scan(&supply)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
		}
		return 0, fmt.Errorf("read supply: %w", err)
	}
	return uint64(supply), nil
}

func (l *PostgresLedger) lockAccount(ctx context.Context, ref domain.AccountRef) (*Account, error) {
	return l.loadAccount(ctx, ref, true)
}

func (l *PostgresLedger) loadAccount(ctx context.Context, ref domain.AccountRef, forUpdate bool) (*Account, error) {
	query := `SELECT owner, mint, amount FROM custody_accounts WHERE ref = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var owner, mint []byte
	var amount int64
	if err := l.execer(ctx).QueryRowContext(ctx, query, ref[:]).Scan(&owner, &mint, &amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", ref, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	ownerKey, err := domain.KeyFromBytes(owner)
	if err != nil {
		return nil, err
	}
	mintRef, err := domain.MintFromBytes(mint)
	if err != nil {
		return nil, err
	}
	return &Account{Ref: ref, Owner: ownerKey, Mint: mintRef, Amount: uint64(amount)}, nil
}

// inTx joins the caller's transaction or opens a short one of its own.
func (l *PostgresLedger) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, l.db, func(ctx context.Context, _ *sql.Tx) error {
		return fn(ctx)
	})
}
