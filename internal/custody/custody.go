// Package custody is the token ledger the registry consults for possession
// proofs. The registry only reads balances and burns; the operator functions
// (CreateMint, OpenAccount, MintTo, Transfer) exist for local operation and tests.
package custody

import (
	"errors"

	"markers/pkg/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOwnerMismatch     = errors.New("authority does not own the account")
	ErrMintMismatch      = errors.New("account belongs to a different mint")
	ErrNotMintAuthority  = errors.New("signer is not the mint authority")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Mint is a token class. Supply counts all units across accounts.
type Mint struct {
	Ref           domain.MintRef `json:"ref"`
	MintAuthority domain.Key     `json:"mint_authority"`
	Supply        uint64         `json:"supply"`
}

// Account holds units of one mint for one owner.
type Account struct {
	Ref    domain.AccountRef `json:"ref"`
	Owner  domain.Key        `json:"owner"`
	Mint   domain.MintRef    `json:"mint"`
	Amount uint64            `json:"amount"`
}
