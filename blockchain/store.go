// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// BlockOriginKind classifies where an incoming block's previous_header_hash
// places it relative to the current best chain.
type BlockOriginKind int

const (
	// OriginKnownBlock indicates the block is already present in the
	// store under verification.
	OriginKnownBlock BlockOriginKind = iota

	// OriginCanonChain indicates the block directly extends the current
	// best chain.
	OriginCanonChain

	// OriginSideChain indicates the block extends a chain that is not
	// currently best, and does not overtake it.
	OriginSideChain

	// OriginSideChainBecomingCanonChain indicates the block extends a
	// side chain whose cumulative work now exceeds the current best
	// chain: accepting it triggers a reorg.
	OriginSideChainBecomingCanonChain
)

// BlockOrigin reports where a block under verification sits relative to
// the store.
type BlockOrigin struct {
	Kind        BlockOriginKind
	BlockNumber int64

	// ForkHash is the block hash at which a side chain diverges from the
	// canon chain. It is the zero hash when Kind is OriginCanonChain or
	// OriginKnownBlock.
	ForkHash chainhash.Hash
}

// HeaderProvider answers chain-position and header lookups by hash,
// implemented in production by the chain database and, for a side chain
// under verification, by a ForkView overlaying it.
type HeaderProvider interface {
	// BlockHeight returns the height of the block identified by hash, or
	// ok == false if it is unknown.
	BlockHeight(hash chainhash.Hash) (height int64, ok bool)

	// BlockHeaderByHeight returns the header at height, or ok == false if
	// the store has no block at that height.
	BlockHeaderByHeight(height int64) (header *wire.BlockHeader, ok bool)

	// BestHeight returns the height of the current best block.
	BestHeight() int64
}

// TransactionOutputProvider answers unspent-output lookups, implemented by
// the chain database's UTXO index and, for a side chain under
// verification, by a ForkView overlaying it with the side chain's own
// spends.
type TransactionOutputProvider interface {
	// Output returns the output referenced by prevOut, or ok == false if
	// it does not exist or has already been spent.
	Output(prevOut wire.OutPoint) (out *wire.TxOut, ok bool)
}

// TransactionMetaProvider answers "which block contains this transaction,
// and how deep is it buried" queries, used to enforce coinbase maturity.
type TransactionMetaProvider interface {
	// TransactionHeight returns the height of the block containing txHash
	// and whether that transaction is a coinbase, or ok == false if the
	// transaction is unknown.
	TransactionHeight(txHash chainhash.Hash) (height int64, isCoinbase bool, ok bool)
}
