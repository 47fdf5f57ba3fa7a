package domain

import (
	"testing"
)

// FuzzParseKey tests that parsing never panics on arbitrary input and always
// returns either a valid key or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParseKey(f *testing.F) {
	f.Add("")
	f.Add("11111111111111111111111111111111")
	f.Add("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	f.Add("not base58 at all")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		key, err := ParseKey(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseKey(key.String())
		if err != nil {
			t.Errorf("valid key failed round-trip: %v", err)
		}
		if roundTrip != key {
			t.Error("round-trip changed key value")
		}
	})
}
