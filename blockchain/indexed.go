// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// IndexedTransaction pairs a transaction with its precomputed hash, so the
// hash is never recomputed across the several passes verification makes
// over a block.
type IndexedTransaction struct {
	Hash chainhash.Hash
	Tx   *wire.MsgTx
}

// NewIndexedTransaction wraps tx, computing its hash once.
func NewIndexedTransaction(tx *wire.MsgTx) *IndexedTransaction {
	return &IndexedTransaction{Hash: tx.TxHash(), Tx: tx}
}

// IndexedBlockHeader pairs a header with its precomputed hash.
type IndexedBlockHeader struct {
	Hash   chainhash.Hash
	Header *wire.BlockHeader
}

// NewIndexedBlockHeader wraps header, computing its hash once.
func NewIndexedBlockHeader(header *wire.BlockHeader) *IndexedBlockHeader {
	return &IndexedBlockHeader{Hash: header.BlockHash(), Header: header}
}

// IndexedBlock pairs a block with its header hash and the precomputed hash
// of every transaction it carries. Raw retains the original message so
// size-bound pre-verification checks never need to re-serialize the block.
type IndexedBlock struct {
	Header       IndexedBlockHeader
	Transactions []*IndexedTransaction
	Raw          *wire.MsgBlock
}

// NewIndexedBlock wraps block, computing its header hash and every
// transaction hash once, up front.
func NewIndexedBlock(block *wire.MsgBlock) *IndexedBlock {
	ib := &IndexedBlock{
		Header:       *NewIndexedBlockHeader(&block.Header),
		Transactions: make([]*IndexedTransaction, len(block.Transactions)),
		Raw:          block,
	}
	for i, tx := range block.Transactions {
		ib.Transactions[i] = NewIndexedTransaction(tx)
	}
	return ib
}

// Hash returns the block's header hash.
func (b *IndexedBlock) Hash() chainhash.Hash {
	return b.Header.Hash
}
