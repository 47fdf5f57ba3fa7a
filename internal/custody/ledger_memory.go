package custody

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"markers/pkg/domain"
	"markers/pkg/platform/sentinel"
	txcontext "markers/pkg/platform/tx"
)

// InMemoryLedger keeps mints and accounts in maps guarded by one mutex.
type InMemoryLedger struct {
	mu       sync.RWMutex
	mints    map[domain.MintRef]*Mint
	accounts map[domain.AccountRef]*Account
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		mints:    make(map[domain.MintRef]*Mint),
		accounts: make(map[domain.AccountRef]*Account),
	}
}

func (l *InMemoryLedger) CreateMint(_ context.Context, mintAuthority domain.Key) (domain.MintRef, error) {
	var ref domain.MintRef
	if _, err := rand.Read(ref[:]); err != nil {
		return ref, fmt.Errorf("generate mint ref: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mints[ref] = &Mint{Ref: ref, MintAuthority: mintAuthority}
	return ref, nil
}

func (l *InMemoryLedger) OpenAccount(_ context.Context, owner domain.Key, mint domain.MintRef) (domain.AccountRef, error) {
	var ref domain.AccountRef
	if _, err := rand.Read(ref[:]); err != nil {
		return ref, fmt.Errorf("generate account ref: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.mints[mint]; !ok {
		return domain.AccountRef{}, fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
	}
	l.accounts[ref] = &Account{Ref: ref, Owner: owner, Mint: mint}
	return ref, nil
}

func (l *InMemoryLedger) MintTo(_ context.Context, mint domain.MintRef, account domain.AccountRef, mintAuthority domain.Key, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
	}
	if m.MintAuthority != mintAuthority {
		return ErrNotMintAuthority
	}
	acct, err := l.accountLocked(account)
	if err != nil {
		return err
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}
	acct.Amount += amount
	m.Supply += amount
	return nil
}

func (l *InMemoryLedger) Transfer(_ context.Context, from, to domain.AccountRef, authority domain.Key, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	src, err := l.accountLocked(from)
	if err != nil {
		return err
	}
	dst, err := l.accountLocked(to)
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
	src.Amount -= amount
	dst.Amount += amount
	return nil
}

// Burn destroys one unit of mint held in account. authority must own the account.
func (l *InMemoryLedger) Burn(ctx context.Context, mint domain.MintRef, account domain.AccountRef, authority domain.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
	}
	acct, err := l.accountLocked(account)
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
	acct.Amount--
	m.Supply--
	txcontext.OnAbort(ctx, func(context.Context) error {
		return l.restore(mint, account)
	})
	return nil
}

// restore credits back one burned unit.
func (l *InMemoryLedger) restore(mint domain.MintRef, account domain.AccountRef) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
	}
	acct, err := l.accountLocked(account)
	if err != nil {
		return err
	}
	acct.Amount++
	m.Supply++
	return nil
}

func (l *InMemoryLedger) BalanceOf(_ context.Context, holder domain.Key, mint domain.MintRef) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for _, acct := range l.accounts {
		if acct.Owner == holder && acct.Mint == mint {
			total += acct.Amount
		}
	}
	return total, nil
}

func (l *InMemoryLedger) OwnerOf(_ context.Context, account domain.AccountRef) (domain.Key, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, err := l.accountLocked(account)
	if err != nil {
		return domain.Key{}, err
	}
	return acct.Owner, nil
}

// AmountOf returns the units held in one account.
func (l *InMemoryLedger) AmountOf(_ context.Context, account domain.AccountRef) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, err := l.accountLocked(account)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

func (l *InMemoryLedger) MintOf(_ context.Context, account domain.AccountRef) (domain.MintRef, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, err := l.accountLocked(account)
	if err != nil {
		return domain.MintRef{}, err
	}
	return acct.Mint, nil
}

// Supply returns the outstanding units of mint.
func (l *InMemoryLedger) Supply(_ context.Context, mint domain.MintRef) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.mints[mint]
	if !ok {
		return 0, fmt.Errorf("mint %s: %w", mint, sentinel.ErrNotFound)
	}
	return m.Supply, nil
}

func (l *InMemoryLedger) accountLocked(ref domain.AccountRef) (*Account, error) {
	acct, ok := l.accounts[ref]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", ref, sentinel.ErrNotFound)
	}
	return acct, nil
}
