package models

import (
	"crypto/sha256"
	"encoding/binary"
	"time"
	"unicode/utf8"

	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
)

const (
	MaxDomainLen = 32

	discriminatorLen = 8
	// Space is the fixed on-store size of a record:
	// discriminator + authority + owner + (length prefix + domain) + mint.
	Space = discriminatorLen + domain.KeySize + domain.KeySize + (4 + MaxDomainLen) + domain.KeySize
)

// Discriminator tags encoded records so a foreign blob is never decoded as a marker.
var Discriminator = func() [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:Marker"))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}()

// Marker binds a domain name to its controlling authority and current owner.
//
// Invariants:
//   - Domain is 1..32 bytes of UTF-8 and never changes
//   - Authority is fixed at creation; there is no operation that rewrites it
//   - Owner changes only through an ownership update backed by custody proof
//   - Mint is zero for ungated markers and fixed otherwise
type Marker struct {
	Address   domain.Address `json:"address"`
	Authority domain.Key     `json:"authority"`
	Owner     domain.Key     `json:"owner"`
	Domain    string         `json:"domain"`
	Mint      domain.MintRef `json:"mint"`
	Deposit   uint64         `json:"deposit"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewMarker validates invariants and builds a record for addr.
func NewMarker(addr domain.Address, authority, owner domain.Key, name string, mint domain.MintRef, now time.Time) (*Marker, error) {
	if err := ValidateDomain(name); err != nil {
		return nil, err
	}
	if authority.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authority cannot be empty")
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner cannot be empty")
	}
	return &Marker{
		Address:   addr,
		Authority: authority,
		Owner:     owner,
		Domain:    name,
		Mint:      mint,
		Deposit:   RentExemptMinimum(Space),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateDomain enforces the length and encoding bounds of a domain name.
func ValidateDomain(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain cannot be empty")
	}
	if len(name) > MaxDomainLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain must be 32 bytes or less")
	}
	if !utf8.ValidString(name) {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain must be valid UTF-8")
	}
	return nil
}

// IsGated reports whether the marker is tied to a possession token.
func (m *Marker) IsGated() bool {
	return !m.Mint.IsZero()
}

// ApplyOwner records a new owner. Custody must be checked before calling.
func (m *Marker) ApplyOwner(owner domain.Key, now time.Time) {
	m.Owner = owner
	m.UpdatedAt = now
}

// Reclaim returns the deposit released when the record is deleted.
func (m *Marker) Reclaim() *Reclaim {
	return &Reclaim{Beneficiary: m.Authority, Amount: m.Deposit}
}

// MarshalBinary encodes the record in its fixed Space-byte layout.
func (m *Marker) MarshalBinary() ([]byte, error) {
	if err := ValidateDomain(m.Domain); err != nil {
		return nil, err
	}
	buf := make([]byte, Space)
	off := copy(buf, Discriminator[:])
	off += copy(buf[off:], m.Authority[:])
	off += copy(buf[off:], m.Owner[:])
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(m.Domain)))
	off += 4
	copy(buf[off:], m.Domain)
	off += MaxDomainLen
	copy(buf[off:], m.Mint[:])
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary. Address, deposit
// and timestamps live outside the layout and are left untouched.
func (m *Marker) UnmarshalBinary(data []byte) error {
	if len(data) != Space {
		return dErrors.New(dErrors.CodeInvariantViolation, "marker record has wrong size")
	}
	if [discriminatorLen]byte(data[:discriminatorLen]) != Discriminator {
		return dErrors.New(dErrors.CodeInvariantViolation, "record is not a marker")
	}
	off := discriminatorLen
	copy(m.Authority[:], data[off:off+domain.KeySize])
	off += domain.KeySize
	copy(m.Owner[:], data[off:off+domain.KeySize])
	off += domain.KeySize
	n := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if n == 0 || n > MaxDomainLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "marker domain length out of range")
	}
	m.Domain = string(data[off : off+int(n)])
	off += MaxDomainLen
	copy(m.Mint[:], data[off:off+domain.KeySize])
	return nil
}
