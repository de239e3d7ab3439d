// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sync"
	"time"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/txscript"
	"github.com/corvid-chain/corvidd/wire"
)

// VerificationLevel controls how much work Verify does for a given block.
type VerificationLevel int

const (
	// VerificationNone skips verification entirely; Verify always
	// succeeds. Used when re-importing a chain already known good (e.g.
	// from a trusted snapshot).
	VerificationNone VerificationLevel = iota

	// VerificationHeader checks only the header: proof of work and
	// timestamp. No transaction is inspected.
	VerificationHeader

	// VerificationFull runs every check: header, then per-transaction
	// maturity/input/script/fee/sigops acceptance.
	VerificationFull
)

// Store is everything a Verifier needs to resolve a block's position in
// the chain and validate its transactions against it. Production callers
// satisfy this with the chain database directly for a canon-chain block,
// or with a ForkView overlaying it for a side chain.
type Store interface {
	HeaderProvider
	TransactionOutputProvider
	TransactionMetaProvider

	// Origin classifies where a header sits relative to this store: the
	// canon chain, a side chain, a side chain about to become canon, or
	// already known.
	Origin(header *IndexedBlockHeader) (BlockOrigin, error)
}

// ForkProvider is implemented by a Store that can hand back an overlay
// for a side chain under verification. A Store that does not implement
// it (e.g. a bare in-memory test double) is verified directly against
// itself even for side-chain origins.
type ForkProvider interface {
	Fork(origin BlockOrigin) Store
}

// maxInFlightForks bounds how many side-chain overlays the verifier
// retains at once; branches beyond it are abandoned and must re-verify
// from their fork point.
const maxInFlightForks = 8

// Verifier is the single entry point a node calls to validate an incoming
// block against its chain store.
type Verifier struct {
	store   Store
	params  *chaincfg.Params
	checker txscript.SignatureChecker
	now     func() time.Time

	// forkMu guards forks: the in-flight side-chain overlays, keyed by
	// each overlay's current tip hash. Retaining them is what lets a
	// side chain grow past one block -- the base store never sees an
	// unaccepted branch, so a block extending one must classify and
	// verify against the overlay its parent was folded into.
	forkMu sync.Mutex
	forks  map[chainhash.Hash]Store
}

// NewVerifier constructs a Verifier reading chain state from store and
// validating against params, delegating signature checks to checker.
func NewVerifier(store Store, params *chaincfg.Params, checker txscript.SignatureChecker) *Verifier {
	return &Verifier{
		store:   store,
		params:  params,
		checker: checker,
		now:     time.Now,
		forks:   make(map[chainhash.Hash]Store),
	}
}

// classify resolves a block's origin, preferring a retained fork overlay
// whose tip is the block's parent over the base store.
func (v *Verifier) classify(header *IndexedBlockHeader) (BlockOrigin, Store, error) {
	v.forkMu.Lock()
	view, ok := v.forks[header.Header.PrevBlock]
	v.forkMu.Unlock()
	if ok {
		origin, err := view.Origin(header)
		if err == nil {
			return origin, view, nil
		}
	}
	origin, err := v.store.Origin(header)
	return origin, nil, err
}

// rememberFork re-keys an overlay under its new tip after a block is
// folded into it, evicting an arbitrary branch when too many are in
// flight.
func (v *Verifier) rememberFork(oldTip, newTip chainhash.Hash, view Store) {
	v.forkMu.Lock()
	defer v.forkMu.Unlock()
	delete(v.forks, oldTip)
	if len(v.forks) >= maxInFlightForks {
		for h := range v.forks {
			delete(v.forks, h)
			break
		}
	}
	v.forks[newTip] = view
}

// Verify validates block at the requested level, dispatching on the
// block's BlockOrigin.
func (v *Verifier) Verify(level VerificationLevel, block *IndexedBlock) error {
	if level == VerificationNone {
		return nil
	}

	origin, view, err := v.classify(&block.Header)
	if err == nil && origin.Kind == OriginKnownBlock {
		// Already present: treated as a successful no-op rather than an
		// assertion failure, before any check that could reject it.
		return ErrAlreadyKnown
	}

	if err := NewHeaderVerifier(&block.Header, v.params, v.now()).Check(); err != nil {
		return err
	}
	if level == VerificationFull {
		if err := NewPreVerifier(block, v.params).Check(); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	if level == VerificationHeader {
		// Header-only verification inspects no transactions.
		return nil
	}

	switch origin.Kind {
	case OriginCanonChain:
		acceptor := NewChainAcceptor(block, origin.BlockNumber, v.params, v.store, v.store, v.store, v.checker, level)
		return acceptor.Check()

	case OriginSideChain, OriginSideChainBecomingCanonChain:
		store := v.store
		if view == nil {
			if fp, ok := v.store.(ForkProvider); ok {
				view = fp.Fork(origin)
			}
		}
		if view != nil {
			store = view
		}
		acceptor := NewChainAcceptor(block, origin.BlockNumber, v.params, store, store, store, v.checker, level)
		if err := acceptor.Check(); err != nil {
			return err
		}
		if applier, ok := store.(interface {
			Apply(block *wire.MsgBlock, height int64)
		}); ok {
			applier.Apply(block.Raw, origin.BlockNumber)
			v.rememberFork(block.Header.Header.PrevBlock, block.Header.Hash, view)
		}
		return nil

	default:
		return &DatabaseError{Kind: ErrUnknownParent}
	}
}

// VerifyHeader runs only the structural header checks, used when a peer
// announces headers ahead of the blocks themselves.
func (v *Verifier) VerifyHeader(header *IndexedBlockHeader) error {
	return NewHeaderVerifier(header, v.params, v.now()).Check()
}

// chainedOutputs consults the canonical chain first, then the candidate
// pool, so a mempool transaction may spend an output created by another
// still-unconfirmed pooled transaction.
type chainedOutputs struct {
	chain TransactionOutputProvider
	pool  TransactionOutputProvider
}

// Output implements TransactionOutputProvider.
func (c chainedOutputs) Output(prevOut wire.OutPoint) (*wire.TxOut, bool) {
	if out, ok := c.chain.Output(prevOut); ok {
		return out, true
	}
	return c.pool.Output(prevOut)
}

// VerifyMempoolTransaction runs the same acceptance a block-bound
// transaction would receive, against the current chain tip instead of a
// specific block. pool, when non-nil, resolves inputs referencing
// outputs that exist only in the pending-transaction pool; such inputs
// carry no coinbase-maturity context and are treated as ordinary spends.
func (v *Verifier) VerifyMempoolTransaction(tx *IndexedTransaction, height int64, pool TransactionOutputProvider) error {
	outputs := TransactionOutputProvider(v.store)
	if pool != nil {
		outputs = chainedOutputs{chain: v.store, pool: pool}
	}
	block := &IndexedBlock{Transactions: []*IndexedTransaction{
		NewIndexedTransaction(makeNoopCoinbase()),
		tx,
	}}
	acceptor := NewChainAcceptor(block, height, v.params, outputs, v.store, v.store, v.checker, VerificationFull)
	return acceptor.Check()
}

// makeNoopCoinbase returns a placeholder coinbase satisfying
// ChainAcceptor's index-0 IsCoinBase check, used only to reuse the block
// acceptor's per-transaction pipeline for a single mempool candidate: its
// own value and sigops never factor into the candidate's acceptance.
func makeNoopCoinbase() *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0xffffffff},
		Sequence:         0xffffffff,
	})
	return tx
}
