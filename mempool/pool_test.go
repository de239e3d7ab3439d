// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/corvid-chain/corvidd/wire"
)

func flatFee(fee int64) FeeCalculator {
	return func(tx *wire.MsgTx) (int64, error) { return fee, nil }
}

func txSpending(prev *wire.MsgTx, outIdx uint32, tag byte) *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1}
	prevHash := prev.TxHash()
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: prevHash, Index: outIdx}})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{tag}})
	return tx
}

func rootTx(tag byte) *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}, SignatureScript: []byte{tag}})
	tx.AddTxOut(&wire.TxOut{Value: 10000, PkScript: []byte{tag}})
	return tx
}

func TestPoolInsertContainsAndAncestors(t *testing.T) {
	p := New()

	parent := rootTx(1)
	if err := p.InsertVerified(parent, flatFee(1000)); err != nil {
		t.Fatalf("InsertVerified(parent): %v", err)
	}

	child := txSpending(parent, 0, 2)
	if err := p.InsertVerified(child, flatFee(500)); err != nil {
		t.Fatalf("InsertVerified(child): %v", err)
	}

	childHash := child.TxHash()
	parentHash := parent.TxHash()

	if !p.Contains(childHash) || !p.Contains(parentHash) {
		t.Fatalf("expected both transactions pooled")
	}

	ancestors, ok := p.Ancestors(childHash)
	if !ok || len(ancestors) != 1 || ancestors[0] != parentHash {
		t.Fatalf("Ancestors(child) = %v, %v; want [parent], true", ancestors, ok)
	}

	descendants, ok := p.Descendants(parentHash)
	if !ok || len(descendants) != 1 || descendants[0] != childHash {
		t.Fatalf("Descendants(parent) = %v, %v; want [child], true", descendants, ok)
	}
}

func TestPoolRemoveCascadesToDescendants(t *testing.T) {
	p := New()

	parent := rootTx(1)
	_ = p.InsertVerified(parent, flatFee(1000))
	child := txSpending(parent, 0, 2)
	_ = p.InsertVerified(child, flatFee(500))

	p.Remove(parent.TxHash())

	if p.Contains(parent.TxHash()) || p.Contains(child.TxHash()) {
		t.Fatalf("expected Remove to cascade to the descendant")
	}
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", p.Len())
	}
}

func TestPoolRemoveWithStrategyByLowestScore(t *testing.T) {
	p := New()

	cheap := rootTx(1)
	_ = p.InsertVerified(cheap, flatFee(10))
	rich := rootTx(2)
	_ = p.InsertVerified(rich, flatFee(100000))

	victim, ok := p.RemoveWithStrategy(ByLowestScore)
	if !ok {
		t.Fatalf("expected a victim transaction")
	}
	if victim.TxHash() != cheap.TxHash() {
		t.Fatalf("RemoveWithStrategy(ByLowestScore) evicted the wrong transaction")
	}
	if !p.Contains(rich.TxHash()) {
		t.Fatalf("the higher-fee transaction should remain pooled")
	}
}

func TestPoolByTransactionScoreOrdersDescending(t *testing.T) {
	p := New()

	low := rootTx(1)
	_ = p.InsertVerified(low, flatFee(10))
	high := rootTx(2)
	_ = p.InsertVerified(high, flatFee(100000))

	ordered := p.ByTransactionScore()
	if len(ordered) != 2 {
		t.Fatalf("ByTransactionScore() returned %d entries, want 2", len(ordered))
	}
	if ordered[0].TxHash() != high.TxHash() {
		t.Fatalf("expected the higher-fee transaction first")
	}
}

func TestPoolByArrivalPreservesInsertionOrder(t *testing.T) {
	p := New()

	first := rootTx(1)
	_ = p.InsertVerified(first, flatFee(10))
	second := rootTx(2)
	_ = p.InsertVerified(second, flatFee(10))

	arrival := p.ByArrival()
	if len(arrival) != 2 || arrival[0] != first.TxHash() || arrival[1] != second.TxHash() {
		t.Fatalf("ByArrival() = %v, want [first, second]", arrival)
	}
}
