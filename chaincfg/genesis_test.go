// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"testing"

	"github.com/corvid-chain/corvidd/chainhash"
)

func TestGenesisBlocksAreSelfConsistent(t *testing.T) {
	nets := []struct {
		name   string
		params *Params
	}{
		{"mainnet", MainNetParams()},
		{"testnet", TestNetParams()},
		{"regtest", RegNetParams()},
		{"unitest", UniTestParams()},
	}

	seen := map[string]string{}
	for _, n := range nets {
		gb := n.params.GenesisBlock
		if gb.Header.PrevBlock != (chainhash.Hash{}) {
			t.Errorf("%s: genesis PrevBlock is not all-zero", n.name)
		}
		if gb.Header.MerkleRoot != gb.Transactions[0].TxHash() {
			t.Errorf("%s: genesis merkle root does not match its single transaction", n.name)
		}
		if n.params.GenesisHash != gb.BlockHash() {
			t.Errorf("%s: GenesisHash field does not match computed block hash", n.name)
		}

		hash := gb.BlockHash().String()
		if other, ok := seen[hash]; ok {
			t.Errorf("%s and %s share a genesis hash %s", n.name, other, hash)
		}
		seen[hash] = n.name
	}
}
