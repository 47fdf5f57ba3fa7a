package models

import (
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
)

// CreateMarkerRequest allocates a new record.
// Owner defaults to Payer. Mint and TokenAccount are set together or not at all.
type CreateMarkerRequest struct {
	Domain       string            `json:"domain"`
	Payer        domain.Key        `json:"payer"`
	Authority    domain.Key        `json:"authority"`
	Owner        domain.Key        `json:"owner"`
	Mint         domain.MintRef    `json:"mint"`
	TokenAccount domain.AccountRef `json:"token_account"`
	Address      domain.Address    `json:"address"`
}

// Normalize fills defaults. Domain is kept byte for byte since it seeds the
// address.
func (r *CreateMarkerRequest) Normalize() {
	if r.Owner.IsZero() {
		r.Owner = r.Payer
	}
}

func (r *CreateMarkerRequest) Validate() error {
	if r.Domain == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}
	if r.Payer.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "payer is required")
	}
	if r.Authority.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "authority is required")
	}
	if !r.Mint.IsZero() && r.TokenAccount.IsZero() {
		return dErrors.New(dErrors.CodeInvalidCustodyProof, "token-gated marker requires a token account")
	}
	return nil
}

// UpdateOwnerRequest hands the marker to NewOwner, who must hold the mint.
type UpdateOwnerRequest struct {
	Domain       string            `json:"-"`
	NewOwner     domain.Key        `json:"new_owner"`
	TokenAccount domain.AccountRef `json:"token_account"`
	Address      domain.Address    `json:"address"`
}

func (r *UpdateOwnerRequest) Validate() error {
	if r.Domain == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}
	if r.NewOwner.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "new_owner is required")
	}
	if r.TokenAccount.IsZero() {
		return dErrors.New(dErrors.CodeInvalidCustodyProof, "token_account is required")
	}
	return nil
}

// BurnRequest destroys a marker. TokenAccount is ignored by the orphan path.
type BurnRequest struct {
	Domain       string            `json:"-"`
	TokenAccount domain.AccountRef `json:"token_account"`
	Address      domain.Address    `json:"address"`
}

func (r *BurnRequest) Validate(withToken bool) error {
	if r.Domain == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}
	if withToken && r.TokenAccount.IsZero() {
		return dErrors.New(dErrors.CodeInvalidCustodyProof, "token_account is required")
	}
	return nil
}
