// Package domain holds the strongly typed 32-byte identifiers shared by the
// registry: signer keys, record addresses, mints and holding accounts.
//
// All four are rendered as base58 text at trust boundaries. Keeping them as
// distinct types stops a mint reference from being compared against an owner
// key by accident.
package domain

import (
	"github.com/btcsuite/btcd/btcutil/base58"

	dErrors "markers/pkg/domain-errors"
)

// KeySize is the byte length of every identifier in this package.
const KeySize = 32

type (
	// Key identifies a signer: an authority, owner or payer.
	Key [KeySize]byte
	// Address locates a record in the store. It is always derived, never chosen.
	Address [KeySize]byte
	// MintRef identifies a possession token class held in the custody ledger.
	MintRef [KeySize]byte
	// AccountRef identifies a holding account in the custody ledger.
	AccountRef [KeySize]byte
)

func ParseKey(s string) (Key, error)               { return parse[Key](s, "key") }
func ParseAddress(s string) (Address, error)       { return parse[Address](s, "address") }
func ParseMintRef(s string) (MintRef, error)       { return parse[MintRef](s, "mint") }
func ParseAccountRef(s string) (AccountRef, error) { return parse[AccountRef](s, "token account") }

func parse[T ~[KeySize]byte](s, kind string) (T, error) {
	var out T
	if s == "" {
		return out, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	raw := base58.Decode(s)
	if len(raw) != KeySize {
		return out, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+": expected 32 bytes of base58")
	}
	copy(out[:], raw)
	return out, nil
}

func encode(b []byte) string { return base58.Encode(b) }

func (k Key) String() string        { return encode(k[:]) }
func (a Address) String() string    { return encode(a[:]) }
func (m MintRef) String() string    { return encode(m[:]) }
func (a AccountRef) String() string { return encode(a[:]) }

func (k Key) IsZero() bool        { return k == Key{} }
func (a Address) IsZero() bool    { return a == Address{} }
func (m MintRef) IsZero() bool    { return m == MintRef{} }
func (a AccountRef) IsZero() bool { return a == AccountRef{} }

func (k Key) MarshalText() ([]byte, error)        { return []byte(k.String()), nil }
func (a Address) MarshalText() ([]byte, error)    { return []byte(a.String()), nil }
func (m MintRef) MarshalText() ([]byte, error)    { return []byte(m.String()), nil }
func (a AccountRef) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (k *Key) UnmarshalText(b []byte) error        { return unmarshal(k, b, ParseKey) }
func (a *Address) UnmarshalText(b []byte) error    { return unmarshal(a, b, ParseAddress) }
func (m *MintRef) UnmarshalText(b []byte) error    { return unmarshal(m, b, ParseMintRef) }
func (a *AccountRef) UnmarshalText(b []byte) error { return unmarshal(a, b, ParseAccountRef) }

func unmarshal[T any](dst *T, b []byte, fn func(string) (T, error)) error {
	v, err := fn(string(b))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// KeyFromBytes copies a raw 32-byte slice, as read from storage, into a Key.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, dErrors.New(dErrors.CodeInvariantViolation, "stored key has wrong length")
	}
	copy(k[:], b)
	return k, nil
}

// MintFromBytes copies a raw 32-byte slice into a MintRef.
func MintFromBytes(b []byte) (MintRef, error) {
	var m MintRef
	if len(b) != KeySize {
		return m, dErrors.New(dErrors.CodeInvariantViolation, "stored mint has wrong length")
	}
	copy(m[:], b)
	return m, nil
}
