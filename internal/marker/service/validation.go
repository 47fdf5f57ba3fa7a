package service

import (
	"context"
	"errors"
	"fmt"

	"markers/internal/signer"
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
	"markers/pkg/platform/sentinel"
)

func requireSigners(signers signer.Set, keys ...domain.Key) error {
	for _, k := range keys {
		if !signers.Has(k) {
			return dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("missing signature from %s", k))
		}
	}
	return nil
}

func hasOne(signers signer.Set, k domain.Key, role string) error {
	if !signers.Has(k) {
		return dErrors.New(dErrors.CodeUnauthorized, role+" must sign")
	}
	return nil
}

// checkCustody proves that holder controls account, that account is of mint,
// and that the account itself holds at least one unit.
func (s *Service) checkCustody(ctx context.Context, holder domain.Key, mint domain.MintRef, account domain.AccountRef) error {
	owner, err := s.custody.OwnerOf(ctx, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidCustodyProof, "token account does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read token account")
	}
	if owner != holder {
		return dErrors.New(dErrors.CodeInvalidCustodyProof, "token account is not held by the owner")
	}

	accountMint, err := s.custody.MintOf(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read token account mint")
	}
	if accountMint != mint {
		return dErrors.New(dErrors.CodeInvalidCustodyProof, "token account mint does not match")
	}

	amount, err := s.custody.AmountOf(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read token account balance")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidCustodyProof, "token account holds none of the mint")
	}
	return nil
}
