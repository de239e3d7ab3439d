// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"testing"
)

func TestCompactRoundTrip(t *testing.T) {
	// The compact form keeps only the three most significant bytes, so a
	// wider value comes back with its low bytes zeroed.
	tests := []struct{ in, want int64 }{
		{0, 0},
		{1, 1},
		{0x1234, 0x1234},
		{0x123456, 0x123456},
		{0x12345678, 0x12345600},
		{-0x1234, -0x1234},
	}

	for _, tc := range tests {
		n := big.NewInt(tc.in)
		got := CompactToBig(BigToCompact(n))
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("round trip for %d: got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBigToCompactKnownValues(t *testing.T) {
	tests := []struct {
		n    *big.Int
		want uint32
	}{
		{big.NewInt(0), 0},
		{big.NewInt(0x80), 0x02008000},
		{new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne), 0x1d00ffff},
	}

	for _, tc := range tests {
		got := BigToCompact(tc.n)
		if got != tc.want {
			t.Errorf("BigToCompact(%s) = 0x%08x, want 0x%08x", tc.n, got, tc.want)
		}
	}
}
