// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
	"github.com/dchest/siphash"
)

// RejectingChecker is the safe default SignatureChecker: it refuses every
// signature presented to it. Chains whose output scripts never reach a
// CHECKSIG (anyone-can-spend test networks) validate fully under it; a
// deployment validating real signatures injects a curve-backed
// implementation instead.
type RejectingChecker struct{}

// CheckSig implements SignatureChecker.
func (RejectingChecker) CheckSig(sig, pubKey, sigHash []byte) bool { return false }

// TxAwareChecker is an optional extension of SignatureChecker for
// implementations that want the containing transaction alongside the
// signature triple, e.g. to group cached results by transaction.
type TxAwareChecker interface {
	SignatureChecker
	CheckSigWithTx(sig, pubKey, sigHash []byte, tx *wire.MsgTx) bool
}

// ProactiveEvictionDepth is the burial depth at which a block's
// signatures are nearly guaranteed to never be checked again, making its
// cached results safe to evict.
const ProactiveEvictionDepth = 2

// confirmedSig is one remembered verification result: the raw signature
// and public key the inner checker confirmed for a sighash, plus a keyed
// tag identifying the transaction it came from.
type confirmedSig struct {
	sig    []byte
	pubKey []byte
	txTag  uint64
}

// CachingChecker fronts an inner SignatureChecker with a bounded memory
// of triples the inner checker has already confirmed. A hit skips the
// inner check entirely, which both speeds up re-verification of
// transactions seen first in the mempool and blunts DoS attempts built
// on re-submitting expensive-to-verify data. Only confirmed triples are
// remembered: a rejected one costs the attacker as much to resubmit as
// it costs this node to recheck.
type CachingChecker struct {
	inner      SignatureChecker
	maxEntries int

	mu        sync.RWMutex
	confirmed map[chainhash.Hash]confirmedSig

	// tagKey0/tagKey1 key the SipHash transaction tagging so an attacker
	// cannot predict which cache entries a crafted transaction would
	// alias with.
	tagKey0 uint64
	tagKey1 uint64
}

// NewCachingChecker wraps inner with a cache remembering up to maxEntries
// confirmed triples. A maxEntries of zero disables remembering while
// leaving verification intact.
func NewCachingChecker(inner SignatureChecker, maxEntries int) (*CachingChecker, error) {
	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	return &CachingChecker{
		inner:      inner,
		maxEntries: maxEntries,
		confirmed:  make(map[chainhash.Hash]confirmedSig),
		tagKey0:    binary.LittleEndian.Uint64(key[0:8]),
		tagKey1:    binary.LittleEndian.Uint64(key[8:16]),
	}, nil
}

// CheckSig implements SignatureChecker.
func (c *CachingChecker) CheckSig(sig, pubKey, sigHash []byte) bool {
	return c.CheckSigWithTx(sig, pubKey, sigHash, nil)
}

// CheckSigWithTx implements TxAwareChecker: verify the triple, answering
// from the cache when the identical triple was already confirmed, and
// remember a fresh confirmation tagged with tx so EvictConfirmed can
// drop it once the transaction is buried.
func (c *CachingChecker) CheckSigWithTx(sig, pubKey, sigHash []byte, tx *wire.MsgTx) bool {
	var key chainhash.Hash
	copy(key[:], sigHash)

	c.mu.RLock()
	entry, hit := c.confirmed[key]
	c.mu.RUnlock()
	if hit && bytes.Equal(entry.sig, sig) && bytes.Equal(entry.pubKey, pubKey) {
		return true
	}

	if !c.inner.CheckSig(sig, pubKey, sigHash) {
		return false
	}

	c.remember(key, sig, pubKey, tx)
	return true
}

func (c *CachingChecker) remember(key chainhash.Hash, sig, pubKey []byte, tx *wire.MsgTx) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.confirmed) >= c.maxEntries {
		// Drop one arbitrary entry, relying on Go's randomized map
		// iteration order; steering eviction toward a chosen victim
		// would require defeating the hash behind sigHash itself.
		for victim := range c.confirmed {
			delete(c.confirmed, victim)
			break
		}
	}
	c.confirmed[key] = confirmedSig{
		sig:    append([]byte(nil), sig...),
		pubKey: append([]byte(nil), pubKey...),
		txTag:  c.txTag(tx),
	}
}

// txTag collapses a transaction's identity to a keyed 64-bit tag, small
// enough to store per entry and compare in bulk during eviction. The
// zero tag marks an entry with no transaction context; such entries age
// out only through capacity eviction.
func (c *CachingChecker) txTag(tx *wire.MsgTx) uint64 {
	if tx == nil {
		return 0
	}
	txHash := tx.TxHash()
	return siphash.Hash(c.tagKey0, c.tagKey1, txHash[:])
}

// EvictConfirmed forgets every remembered triple belonging to a
// transaction in block, called once the block is buried
// ProactiveEvictionDepth deep and its signatures will not be checked
// again.
func (c *CachingChecker) EvictConfirmed(block *wire.MsgBlock) {
	c.mu.RLock()
	empty := len(c.confirmed) == 0
	c.mu.RUnlock()
	if empty {
		return
	}

	buried := make(map[uint64]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		buried[c.txTag(tx)] = struct{}{}
	}

	c.mu.Lock()
	for key, entry := range c.confirmed {
		if entry.txTag == 0 {
			continue
		}
		if _, ok := buried[entry.txTag]; ok {
			delete(c.confirmed, key)
		}
	}
	c.mu.Unlock()
}
