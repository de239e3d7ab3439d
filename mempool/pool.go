// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool implements the pending-transaction pool: a keyed set of
// verified transactions with two secondary orderings (arrival order and
// fee-weighted package score), maintained with incremental ancestor-score
// recompute rather than a full-pool rescan on every insert.
package mempool

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// FeeCalculator computes the total fee (sum of inputs minus sum of
// outputs) a candidate transaction pays. Production callers implement it
// against the chain database's TransactionOutputProvider; tests can
// supply a table directly.
type FeeCalculator func(tx *wire.MsgTx) (int64, error)

// RemovalStrategy selects which transaction RemoveWithStrategy evicts.
type RemovalStrategy int

const (
	// ByLowestScore evicts the transaction (including its ancestors' fees
	// in its package score) with the worst fee-per-weight, the natural
	// strategy when the pool is over its configured byte limit.
	ByLowestScore RemovalStrategy = iota

	// ByOldestArrival evicts the longest-resident transaction, used when
	// expiring stale entries regardless of fee.
	ByOldestArrival
)

// entry is a pooled transaction together with its precomputed fee,
// weight, arrival time, and incrementally maintained ancestor totals.
type entry struct {
	tx        *wire.MsgTx
	hash      chainhash.Hash
	fee       int64
	weight    int64
	timestamp time.Time

	// ancestors is the full transitive set of in-pool ancestor hashes,
	// not including this entry itself.
	ancestors map[chainhash.Hash]struct{}
	// children is the set of in-pool transactions directly spending one
	// of this entry's outputs.
	children map[chainhash.Hash]struct{}

	ancestorFee    int64
	ancestorWeight int64
}

// score is the entry's package fee rate: its own fee plus every
// ancestor's fee, divided by the same over weight (sat/weight-unit).
func (e *entry) score() float64 {
	if e.ancestorWeight == 0 {
		return 0
	}
	return float64(e.ancestorFee) / float64(e.ancestorWeight)
}

// Pool is the mempool's keyed transaction set plus its two secondary
// orderings. All methods are safe for concurrent use.
type Pool struct {
	mu sync.RWMutex

	byHash      map[chainhash.Hash]*entry
	byTimestamp []chainhash.Hash // arrival order, oldest first
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{byHash: make(map[chainhash.Hash]*entry)}
}

// Contains reports whether hash is currently pooled.
func (p *Pool) Contains(hash chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns the pooled transaction for hash, if any.
func (p *Pool) Get(hash chainhash.Hash) (*wire.MsgTx, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// InsertVerified adds tx, already passed through
// blockchain.Verifier.VerifyMempoolTransaction by the caller, computing
// its fee via calc and folding it into its parents' ancestor totals.
// Callers are expected to insert in dependency order (a parent before
// any of its already-pooled children); InsertVerified does not itself
// search the pool for a transaction's not-yet-seen children.
func (p *Pool) InsertVerified(tx *wire.MsgTx, calc FeeCalculator) error {
	hash := tx.TxHash()

	fee, err := calc(tx)
	if err != nil {
		return fmt.Errorf("mempool: fee calculation for %s: %w", hash, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[hash]; exists {
		return fmt.Errorf("mempool: %s already pooled", hash)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return fmt.Errorf("mempool: serializing %s: %w", hash, err)
	}

	e := &entry{
		tx:        tx,
		hash:      hash,
		fee:       fee,
		weight:    int64(buf.Len()),
		timestamp: p.now(),
		ancestors: make(map[chainhash.Hash]struct{}),
		children:  make(map[chainhash.Hash]struct{}),
	}

	for _, in := range tx.TxIn {
		parentHash := in.PreviousOutPoint.Hash
		parent, ok := p.byHash[parentHash]
		if !ok {
			continue
		}
		parent.children[hash] = struct{}{}
		e.ancestors[parentHash] = struct{}{}
		for a := range parent.ancestors {
			e.ancestors[a] = struct{}{}
		}
	}

	e.ancestorFee = e.fee
	e.ancestorWeight = e.weight
	for a := range e.ancestors {
		e.ancestorFee += p.byHash[a].fee
		e.ancestorWeight += p.byHash[a].weight
	}

	p.byHash[hash] = e
	p.byTimestamp = append(p.byTimestamp, hash)
	return nil
}

// now returns the arrival time recorded for a newly inserted entry.
func (p *Pool) now() time.Time { return time.Now() }

// Ancestors returns the transitive set of in-pool ancestors of hash.
func (p *Pool) Ancestors(hash chainhash.Hash) ([]chainhash.Hash, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	out := make([]chainhash.Hash, 0, len(e.ancestors))
	for a := range e.ancestors {
		out = append(out, a)
	}
	return out, true
}

// Descendants returns the transitive set of in-pool descendants of hash.
func (p *Pool) Descendants(hash chainhash.Hash) ([]chainhash.Hash, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.byHash[hash]; !ok {
		return nil, false
	}
	seen := make(map[chainhash.Hash]struct{})
	p.collectDescendants(hash, seen)
	out := make([]chainhash.Hash, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	return out, true
}

func (p *Pool) collectDescendants(hash chainhash.Hash, seen map[chainhash.Hash]struct{}) {
	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	for child := range e.children {
		if _, already := seen[child]; already {
			continue
		}
		seen[child] = struct{}{}
		p.collectDescendants(child, seen)
	}
}

// Remove deletes hash and every in-pool descendant of it, children
// first, preserving the invariant that no pooled transaction's input
// ever references a hash no longer in the pool.
func (p *Pool) Remove(hash chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash chainhash.Hash) {
	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	for child := range e.children {
		p.removeLocked(child)
	}
	for a := range e.ancestors {
		if parent, ok := p.byHash[a]; ok {
			delete(parent.children, hash)
		}
	}
	delete(p.byHash, hash)
	for i, h := range p.byTimestamp {
		if h == hash {
			p.byTimestamp = append(p.byTimestamp[:i], p.byTimestamp[i+1:]...)
			break
		}
	}
}

// RemoveWithStrategy evicts and returns the single transaction strategy
// selects (cascading to its descendants, per Remove), or ok == false if
// the pool is empty.
func (p *Pool) RemoveWithStrategy(strategy RemovalStrategy) (tx *wire.MsgTx, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.byHash) == 0 {
		return nil, false
	}

	var victim chainhash.Hash
	switch strategy {
	case ByOldestArrival:
		victim = p.byTimestamp[0]
	case ByLowestScore:
		var worst *entry
		for h, e := range p.byHash {
			if worst == nil || e.score() < worst.score() {
				worst = e
				victim = h
			}
		}
	default:
		return nil, false
	}

	tx = p.byHash[victim].tx
	p.removeLocked(victim)
	return tx, true
}

// ByTransactionScore returns every pooled transaction ordered by
// descending package fee rate, the order a block template or
// `getrawmempool` walk would prefer.
func (p *Pool) ByTransactionScore() []*wire.MsgTx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.byHash))
	for _, e := range p.byHash {
		entries = append(entries, e)
	}
	sortEntriesByScoreDesc(entries)

	out := make([]*wire.MsgTx, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out
}

func sortEntriesByScoreDesc(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].score() > entries[j].score()
	})
}

// ByArrival returns every pooled transaction hash in arrival order.
func (p *Pool) ByArrival() []chainhash.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]chainhash.Hash, len(p.byTimestamp))
	copy(out, p.byTimestamp)
	return out
}
