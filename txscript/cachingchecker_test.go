// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"testing"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// countingChecker records how often the inner check actually runs.
type countingChecker struct {
	calls int
	valid bool
}

func (c *countingChecker) CheckSig(sig, pubKey, sigHash []byte) bool {
	c.calls++
	return c.valid
}

func taggedTx(tag byte) *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{tag},
		Sequence:         0xffffffff,
	})
	return tx
}

func TestCachingCheckerSkipsReverification(t *testing.T) {
	inner := &countingChecker{valid: true}
	c, err := NewCachingChecker(inner, 10)
	if err != nil {
		t.Fatalf("NewCachingChecker: %v", err)
	}

	sigHash := chainhash.HashH([]byte("sighash"))
	sig := []byte("signature")
	pubKey := []byte("pubkey")

	if !c.CheckSig(sig, pubKey, sigHash[:]) {
		t.Fatal("first check rejected a valid triple")
	}
	if !c.CheckSig(sig, pubKey, sigHash[:]) {
		t.Fatal("second check rejected a cached triple")
	}
	if inner.calls != 1 {
		t.Fatalf("inner checker ran %d times, want 1", inner.calls)
	}

	// A different signature under the same sighash is not a hit.
	if !c.CheckSig([]byte("other"), pubKey, sigHash[:]) {
		t.Fatal("mismatched triple rejected by a valid inner checker")
	}
	if inner.calls != 2 {
		t.Fatalf("inner checker ran %d times after mismatch, want 2", inner.calls)
	}
}

func TestCachingCheckerNeverRemembersFailures(t *testing.T) {
	inner := &countingChecker{valid: false}
	c, err := NewCachingChecker(inner, 10)
	if err != nil {
		t.Fatalf("NewCachingChecker: %v", err)
	}

	sigHash := chainhash.HashH([]byte("bad"))
	for i := 0; i < 2; i++ {
		if c.CheckSig([]byte("sig"), []byte("key"), sigHash[:]) {
			t.Fatal("rejected triple reported valid")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("inner checker ran %d times, want 2 (failures are rechecked)", inner.calls)
	}
	if len(c.confirmed) != 0 {
		t.Fatalf("%d failures remembered, want 0", len(c.confirmed))
	}
}

func TestCachingCheckerBounded(t *testing.T) {
	c, err := NewCachingChecker(&countingChecker{valid: true}, 1)
	if err != nil {
		t.Fatalf("NewCachingChecker: %v", err)
	}

	h1 := chainhash.HashH([]byte("one"))
	h2 := chainhash.HashH([]byte("two"))
	c.CheckSig([]byte("a"), []byte("b"), h1[:])
	c.CheckSig([]byte("c"), []byte("d"), h2[:])

	if len(c.confirmed) != 1 {
		t.Fatalf("%d entries after overflow, want 1", len(c.confirmed))
	}
}

func TestCachingCheckerZeroMaxRemembersNothing(t *testing.T) {
	inner := &countingChecker{valid: true}
	c, err := NewCachingChecker(inner, 0)
	if err != nil {
		t.Fatalf("NewCachingChecker: %v", err)
	}

	h := chainhash.HashH([]byte("x"))
	if !c.CheckSig([]byte("a"), []byte("b"), h[:]) {
		t.Fatal("verification must still succeed with remembering disabled")
	}
	if !c.CheckSig([]byte("a"), []byte("b"), h[:]) {
		t.Fatal("repeat verification failed")
	}
	if inner.calls != 2 {
		t.Fatalf("inner checker ran %d times, want 2", inner.calls)
	}
}

func TestEvictConfirmedDropsBuriedTransactions(t *testing.T) {
	c, err := NewCachingChecker(&countingChecker{valid: true}, 10)
	if err != nil {
		t.Fatalf("NewCachingChecker: %v", err)
	}

	buriedTx := taggedTx(1)
	liveTx := taggedTx(2)

	buriedHash := chainhash.HashH([]byte("buried"))
	liveHash := chainhash.HashH([]byte("live"))
	bareHash := chainhash.HashH([]byte("bare"))

	c.CheckSigWithTx([]byte("s1"), []byte("k1"), buriedHash[:], buriedTx)
	c.CheckSigWithTx([]byte("s2"), []byte("k2"), liveHash[:], liveTx)
	// No transaction context: exempt from proactive eviction.
	c.CheckSig([]byte("s3"), []byte("k3"), bareHash[:])

	block := &wire.MsgBlock{}
	block.AddTransaction(buriedTx)
	c.EvictConfirmed(block)

	var key chainhash.Hash
	copy(key[:], buriedHash[:])
	if _, ok := c.confirmed[key]; ok {
		t.Fatal("buried transaction's entry survived eviction")
	}
	copy(key[:], liveHash[:])
	if _, ok := c.confirmed[key]; !ok {
		t.Fatal("unrelated entry evicted")
	}
	copy(key[:], bareHash[:])
	if _, ok := c.confirmed[key]; !ok {
		t.Fatal("context-free entry evicted")
	}
}
