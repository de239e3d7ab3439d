// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"sync"

	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// ForkView is a read-only overlay atop a ChainDB representing a side chain
// under verification: accepting a side-chain block only ever mutates this
// overlay's in-memory maps, never the base ChainDB's indices, until the
// fork's cumulative work overtakes the canon chain and the caller commits
// it block-by-block through ChainDB.InsertBlock.
//
// The overlay does not attempt to hide canon-chain outputs created after
// the fork point: reconstructing the exact historical UTXO set as of the
// fork point would require either a full copy (the thing this type exists
// to avoid) or an undo log the base ChainDB does not yet keep. In practice
// this only matters for an output created and spent entirely within the
// window between the fork point and the tip of a competing canon branch,
// a narrow edge a per-block undo journal would close.
type ForkView struct {
	mu sync.Mutex

	base       *ChainDB
	forkHash   chainhash.Hash
	forkHeight int64
	tipHeight  int64

	headers     map[chainhash.Hash]*wire.BlockHeader
	heightIndex map[int64]chainhash.Hash
	heightOf    map[chainhash.Hash]int64

	spent map[wire.OutPoint]bool
	added map[wire.OutPoint]*wire.TxOut
	meta  map[chainhash.Hash]txMetaRecord
}

func newForkView(base *ChainDB, forkHash chainhash.Hash) *ForkView {
	forkHeight, _ := base.BlockHeight(forkHash)
	return &ForkView{
		base:        base,
		forkHash:    forkHash,
		forkHeight:  forkHeight,
		tipHeight:   forkHeight,
		headers:     make(map[chainhash.Hash]*wire.BlockHeader),
		heightIndex: make(map[int64]chainhash.Hash),
		heightOf:    make(map[chainhash.Hash]int64),
		spent:       make(map[wire.OutPoint]bool),
		added:       make(map[wire.OutPoint]*wire.TxOut),
		meta:        make(map[chainhash.Hash]txMetaRecord),
	}
}

// Apply folds block, already accepted at height by the verifier, into the
// overlay so that subsequent blocks extending the same fork see its
// outputs and chain position without touching the base ChainDB.
func (fv *ForkView) Apply(block *wire.MsgBlock, height int64) {
	fv.mu.Lock()
	defer fv.mu.Unlock()

	hash := block.BlockHash()
	fv.headers[hash] = &block.Header
	fv.heightIndex[height] = hash
	fv.heightOf[hash] = height
	if height > fv.tipHeight {
		fv.tipHeight = height
	}

	for i, tx := range block.Transactions {
		txHash := tx.TxHash()
		isCoinbase := i == 0
		fv.meta[txHash] = txMetaRecord{Height: height, IsCoinbase: isCoinbase, BlockHash: hash}

		if !isCoinbase {
			for _, in := range tx.TxIn {
				fv.spent[in.PreviousOutPoint] = true
				delete(fv.added, in.PreviousOutPoint)
			}
		}
		for outIdx, out := range tx.TxOut {
			fv.added[wire.OutPoint{Hash: txHash, Index: uint32(outIdx)}] = out
		}
	}
}

// --- blockchain.HeaderProvider ---

// BlockHeight returns the height of hash within this fork, or falls back
// to the base chain for anything below the fork point.
func (fv *ForkView) BlockHeight(hash chainhash.Hash) (int64, bool) {
	fv.mu.Lock()
	if h, ok := fv.heightOf[hash]; ok {
		fv.mu.Unlock()
		return h, true
	}
	fv.mu.Unlock()
	return fv.base.BlockHeight(hash)
}

// BlockHeaderByHeight returns the header at height within this fork, or
// falls back to the base chain below the fork point.
func (fv *ForkView) BlockHeaderByHeight(height int64) (*wire.BlockHeader, bool) {
	fv.mu.Lock()
	if hash, ok := fv.heightIndex[height]; ok {
		header := fv.headers[hash]
		fv.mu.Unlock()
		return header, true
	}
	fv.mu.Unlock()
	if height <= fv.forkHeight {
		return fv.base.BlockHeaderByHeight(height)
	}
	return nil, false
}

// BestHeight returns the height of the fork's current tip.
func (fv *ForkView) BestHeight() int64 {
	fv.mu.Lock()
	defer fv.mu.Unlock()
	return fv.tipHeight
}

// --- blockchain.TransactionOutputProvider ---

// Output returns prevOut's referenced output as seen from this fork.
func (fv *ForkView) Output(prevOut wire.OutPoint) (*wire.TxOut, bool) {
	fv.mu.Lock()
	defer fv.mu.Unlock()
	if fv.spent[prevOut] {
		return nil, false
	}
	if out, ok := fv.added[prevOut]; ok {
		return out, true
	}
	return fv.base.Output(prevOut)
}

// --- blockchain.TransactionMetaProvider ---

// TransactionHeight returns where txHash sits as seen from this fork.
func (fv *ForkView) TransactionHeight(txHash chainhash.Hash) (int64, bool, bool) {
	fv.mu.Lock()
	if rec, ok := fv.meta[txHash]; ok {
		fv.mu.Unlock()
		return rec.Height, rec.IsCoinbase, true
	}
	fv.mu.Unlock()
	return fv.base.TransactionHeight(txHash)
}

// Origin classifies header relative to this fork rather than the base
// chain's tip: a block extending the fork's current head continues the
// same side chain, and once the branch would grow past the base chain's
// best height it classifies as overtaking it.
func (fv *ForkView) Origin(header *blockchain.IndexedBlockHeader) (blockchain.BlockOrigin, error) {
	fv.mu.Lock()
	tipHash := fv.forkHash
	if hash, ok := fv.heightIndex[fv.tipHeight]; ok {
		tipHash = hash
	}
	tipHeight := fv.tipHeight
	fv.mu.Unlock()

	if header.Header.PrevBlock != tipHash {
		return blockchain.BlockOrigin{}, &blockchain.DatabaseError{Kind: blockchain.ErrUnknownParent}
	}

	kind := blockchain.OriginSideChain
	if _, baseTip, _, err := fv.base.Tip(); err == nil && tipHeight+1 > baseTip {
		kind = blockchain.OriginSideChainBecomingCanonChain
	}
	return blockchain.BlockOrigin{
		Kind:        kind,
		BlockNumber: tipHeight + 1,
		ForkHash:    fv.forkHash,
	}, nil
}
