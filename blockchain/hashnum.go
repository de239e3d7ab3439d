// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
)

// HashToBig interprets a hash's bytes as a little-endian 256-bit integer,
// the convention proof-of-work target comparisons use.
func HashToBig(hash chainhash.Hash) *big.Int {
	var reversed chainhash.Hash
	for i, b := range hash {
		reversed[chainhash.HashSize-1-i] = b
	}
	return new(big.Int).SetBytes(reversed[:])
}

var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CalcWork returns the expected number of hashes needed to produce a block
// whose compact target is bits: 2^256 / (target + 1). Cumulative sums of
// this value order competing chains.
func CalcWork(bits uint32) *big.Int {
	target := chaincfg.CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(oneLsh256, denom)
}
