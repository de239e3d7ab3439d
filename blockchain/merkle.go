// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/corvid-chain/corvidd/chainhash"

// CalcMerkleRoot builds the Merkle tree over a block's transaction hashes,
// in order, and returns its root. An odd number of nodes at any level
// duplicates the final node, the classic Bitcoin-family construction.
func CalcMerkleRoot(transactions []*IndexedTransaction) chainhash.Hash {
	if len(transactions) == 0 {
		return chainhash.Hash{}
	}

	level := make([]chainhash.Hash, len(transactions))
	for i, tx := range transactions {
		level[i] = tx.Hash
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

// hashPair computes the double-SHA256 of the concatenation of left and
// right, the internal node operation of the Merkle tree.
func hashPair(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.HashH(buf[:])
}
