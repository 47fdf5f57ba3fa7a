package address

import (
	"strings"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
)

const programIDText = "7GAzi1mmd9CT3kgV8vL1RbvQJyTNYRjYfuJ7rV42vVoi"

func testDeriver(t *testing.T) *Deriver {
	t.Helper()
	programID, err := domain.ParseKey(programIDText)
	require.NoError(t, err)
	return NewDeriver(programID)
}

func TestDerive_KnownVectors(t *testing.T) {
	d := testDeriver(t)
	cases := []struct {
		name string
		addr string
		bump uint8
	}{
		{"alice.shop", "BqXfaeS9gGQayw1u7HwTueCDg92EtQSjHSUnJhckdX4A", 255},
		{"bob.shop", "Bn1MkorP7vzgj7mHdVoFbeKvj3th3iES8VkFnK3BWgX8", 254},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr, bump, err := d.Derive(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.addr, addr.String())
			assert.Equal(t, tc.bump, bump)

			again, err := CreateAddress(append(Seeds(tc.name), []byte{bump}), d.ProgramID())
			require.NoError(t, err)
			assert.Equal(t, addr, again)
		})
	}
}

func TestDerive_InputBounds(t *testing.T) {
	d := testDeriver(t)

	t.Run("empty domain rejected", func(t *testing.T) {
		_, _, err := d.Derive("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("32 bytes accepted", func(t *testing.T) {
		_, _, err := d.Derive(strings.Repeat("a", 32))
		assert.NoError(t, err)
	})

	t.Run("33 bytes rejected", func(t *testing.T) {
		_, _, err := d.Derive(strings.Repeat("a", 33))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("too many seeds rejected", func(t *testing.T) {
		_, err := CreateAddress(make([][]byte, MaxSeeds+1), d.ProgramID())
		assert.ErrorIs(t, err, ErrTooManySeeds)
	})
}

func TestVerify(t *testing.T) {
	d := testDeriver(t)
	alice, _, err := d.Derive("alice.shop")
	require.NoError(t, err)

	t.Run("zero claim is accepted", func(t *testing.T) {
		addr, err := d.Verify("alice.shop", domain.Address{})
		require.NoError(t, err)
		assert.Equal(t, alice, addr)
	})

	t.Run("matching claim is accepted", func(t *testing.T) {
		_, err := d.Verify("alice.shop", alice)
		assert.NoError(t, err)
	})

	t.Run("claim for another domain is rejected", func(t *testing.T) {
		_, err := d.Verify("bob.shop", alice)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAddressMismatch))
	})
}

// TestDerive_Properties checks determinism, off-curve placement and the
// absence of collisions between distinct names.
func TestDerive_Properties(t *testing.T) {
	d := testDeriver(t)
	name := rapid.StringMatching(`[a-z0-9.\-]{1,32}`)

	rapid.Check(t, func(t *rapid.T) {
		a := name.Draw(t, "a")
		b := name.Draw(t, "b")

		addrA, bumpA, err := d.Derive(a)
		if err != nil {
			t.Fatalf("derive %q: %v", a, err)
		}
		again, bumpAgain, err := d.Derive(a)
		if err != nil {
			t.Fatalf("re-derive %q: %v", a, err)
		}
		if addrA != again || bumpA != bumpAgain {
			t.Fatalf("derivation of %q is not deterministic", a)
		}
		if _, err := new(edwards25519.Point).SetBytes(addrA[:]); err == nil {
			t.Fatalf("address for %q lies on the curve", a)
		}

		addrB, _, err := d.Derive(b)
		if err != nil {
			t.Fatalf("derive %q: %v", b, err)
		}
		if a != b && addrA == addrB {
			t.Fatalf("%q and %q derive the same address", a, b)
		}
	})
}

func TestDerive_ProgramScoped(t *testing.T) {
	d := testDeriver(t)
	other := NewDeriver(domain.Key{1})

	a, _, err := d.Derive("alice.shop")
	require.NoError(t, err)
	b, _, err := other.Derive("alice.shop")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
