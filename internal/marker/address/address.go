// Package address derives the storage address of a marker record.
//
// An address is the first sha256(seeds ‖ bump ‖ programID ‖ "ProgramDerivedAddress")
// that does not decode to a point on the Ed25519 curve, searching bump from 255
// down to 0. Off-curve addresses have no private key, so no signer can ever
// impersonate a record.
package address

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
)

const (
	// Tag namespaces marker records from any other record derived under the same program.
	Tag = "marker"

	MaxSeedLen = 32
	MaxSeeds   = 16

	derivationSuffix = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLength = errors.New("seed exceeds 32 bytes")
	ErrTooManySeeds  = errors.New("more than 16 seeds")
	ErrOnCurve       = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump  = errors.New("no bump yields an off-curve address")
)

// CreateAddress derives the address for seeds that already include the bump.
func CreateAddress(seeds [][]byte, programID domain.Key) (domain.Address, error) {
	var out domain.Address
	if len(seeds) > MaxSeeds {
		return out, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return out, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationSuffix))
	copy(out[:], h.Sum(nil))

	if onCurve(out) {
		return domain.Address{}, ErrOnCurve
	}
	return out, nil
}

// FindAddress searches for the highest bump producing an off-curve address.
func FindAddress(seeds [][]byte, programID domain.Key) (domain.Address, uint8, error) {
	bumpSeed := []byte{0}
	withBump := append(append([][]byte{}, seeds...), bumpSeed)
	for bump := 255; bump >= 0; bump-- {
		bumpSeed[0] = uint8(bump)
		addr, err := CreateAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return domain.Address{}, 0, err
		}
	}
	return domain.Address{}, 0, ErrNoViableBump
}

func onCurve(a domain.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// Deriver computes marker addresses under a fixed program ID.
type Deriver struct {
	programID domain.Key
}

func NewDeriver(programID domain.Key) *Deriver {
	return &Deriver{programID: programID}
}

// ProgramID returns the key the deriver was built with.
func (d *Deriver) ProgramID() domain.Key {
	return d.programID
}

// Derive returns the address and bump for a domain name.
func (d *Deriver) Derive(name string) (domain.Address, uint8, error) {
	if name == "" {
		return domain.Address{}, 0, dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}
	addr, bump, err := FindAddress(Seeds(name), d.programID)
	if err != nil {
		if errors.Is(err, ErrMaxSeedLength) {
			return domain.Address{}, 0, dErrors.New(dErrors.CodeInvalidInput, "domain must be at most 32 bytes")
		}
		return domain.Address{}, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive marker address")
	}
	return addr, bump, nil
}

// Verify re-derives the address for name and compares it with the address the
// caller claims to be touching. A zero claimed address skips the comparison.
func (d *Deriver) Verify(name string, claimed domain.Address) (domain.Address, error) {
	addr, _, err := d.Derive(name)
	if err != nil {
		return domain.Address{}, err
	}
	if !claimed.IsZero() && claimed != addr {
		return domain.Address{}, dErrors.New(dErrors.CodeAddressMismatch, "address does not match domain")
	}
	return addr, nil
}

// Seeds returns the derivation seeds for a marker domain.
func Seeds(name string) [][]byte {
	return [][]byte{[]byte(Tag), []byte(name)}
}
