package domain

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "markers/pkg/domain-errors"
)

// TestParseKey_Invariants validates the parsing invariant:
// "identifiers are exactly 32 bytes of base58 text"
//
// Justification: parsing runs at the HTTP trust boundary for every signer,
// mint and holding account.
func TestParseKey_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseKey("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-base58 characters", func(t *testing.T) {
		_, err := ParseKey("0OIl")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects short payload", func(t *testing.T) {
		_, err := ParseMintRef(base58.Encode([]byte{1, 2, 3}))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts 32 bytes and round-trips", func(t *testing.T) {
		var raw Key
		for i := range raw {
			raw[i] = byte(i + 1)
		}
		parsed, err := ParseKey(raw.String())
		require.NoError(t, err)
		assert.Equal(t, raw, parsed)
	})
}

func TestKeyJSON(t *testing.T) {
	type payload struct {
		Owner Key        `json:"owner"`
		Mint  MintRef    `json:"mint"`
		Acct  AccountRef `json:"token_account"`
	}
	in := payload{Owner: Key{9}, Mint: MintRef{7}, Acct: AccountRef{5}}

	body, err := json.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, in, out)

	t.Run("invalid text surfaces a coded error", func(t *testing.T) {
		err := json.Unmarshal([]byte(`{"owner":"abc"}`), &out)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestFromBytes(t *testing.T) {
	_, err := KeyFromBytes(make([]byte, 31))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	m, err := MintFromBytes(make([]byte, KeySize))
	require.NoError(t, err)
	assert.True(t, m.IsZero())
}
