// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"math/big"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// SyncListener receives notifications about sync progress and chain
// growth. Implementations must not block: callbacks run on the sync
// manager's handler goroutine.
type SyncListener interface {
	// SynchronizationStateSwitched fires when the manager enters or
	// leaves bulk-sync mode.
	SynchronizationStateSwitched(isSyncing bool)

	// BestStorageBlockInserted fires, in append order and strictly after
	// the block has been durably stored, for every new best block
	// accepted outside bulk-sync mode.
	BestStorageBlockInserted(hash chainhash.Hash)
}

// Chain is the slice of the chain database the sync manager drives.
type Chain interface {
	// Tip returns the current best block pointer.
	Tip() (chainhash.Hash, int64, *big.Int, error)

	// InsertBlock appends an already-verified block at height with the
	// given cumulative work.
	InsertBlock(block *wire.MsgBlock, height int64, work *big.Int) error

	// BlockHeight resolves a block hash to its height, ok == false when
	// the hash is unknown.
	BlockHeight(hash chainhash.Hash) (int64, bool)
}
