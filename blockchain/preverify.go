// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
)

// PreVerifier runs the context-free structural checks a block must pass
// before it is classified against the store: serialized size, Merkle
// root, first-tx-is-coinbase uniqueness, and duplicate transaction
// hashes. Proof of work and timestamp sanity are
// HeaderVerifier's responsibility and run before this.
type PreVerifier struct {
	block  *IndexedBlock
	params *chaincfg.Params
}

// NewPreVerifier constructs a PreVerifier for block against params.
func NewPreVerifier(block *IndexedBlock, params *chaincfg.Params) *PreVerifier {
	return &PreVerifier{block: block, params: params}
}

// Check runs every structural block-shape check, stopping at the first
// failure.
func (v *PreVerifier) Check() error {
	if v.block.Raw != nil && int64(v.block.Raw.SerializeSize()) > v.params.MaximumBlockSize {
		return fmt.Errorf("block size exceeds maximum of %d bytes", v.params.MaximumBlockSize)
	}

	if len(v.block.Transactions) == 0 {
		return fmt.Errorf("block has no transactions")
	}
	if !v.block.Transactions[0].Tx.IsCoinBase() {
		return &TransactionError{Index: 0, Kind: TxErrInput}
	}

	seen := make(map[chainhash.Hash]struct{}, len(v.block.Transactions))
	for i, itx := range v.block.Transactions {
		if i > 0 && itx.Tx.IsCoinBase() {
			return &TransactionError{Index: i, Kind: TxErrInput}
		}
		if _, dup := seen[itx.Hash]; dup {
			return fmt.Errorf("duplicate transaction %s in block", itx.Hash)
		}
		seen[itx.Hash] = struct{}{}
	}

	if CalcMerkleRoot(v.block.Transactions) != v.block.Header.Header.MerkleRoot {
		return fmt.Errorf("merkle root mismatch: block declares %s", v.block.Header.Header.MerkleRoot)
	}

	return nil
}
