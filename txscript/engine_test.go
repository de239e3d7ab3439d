// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"

	"github.com/corvid-chain/corvidd/wire"
)

func TestEngineExecuteAnyoneCanSpend(t *testing.T) {
	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{SignatureScript: nil})

	e := NewEngine(stubChecker{valid: false}, tx, 0, 0)
	ok, err := e.Execute([]byte{OpTrue})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ok {
		t.Fatal("expected anyone-can-spend script to validate unconditionally")
	}
}

func TestEngineExecuteBareCheckSig(t *testing.T) {
	pubKey := bytes.Repeat([]byte{0x02}, 33)
	pkScript := append(append([]byte{byte(len(pubKey))}, pubKey...), OpCheckSig)

	sig := []byte("a-signature")
	sigScript := append([]byte{byte(len(sig))}, sig...)

	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{SignatureScript: sigScript})

	e := NewEngine(stubChecker{valid: true}, tx, 0, 0)
	ok, err := e.Execute(pkScript)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ok {
		t.Fatal("expected valid signature to pass execution")
	}

	e = NewEngine(stubChecker{valid: false}, tx, 0, 0)
	ok, err = e.Execute(pkScript)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ok {
		t.Fatal("expected rejected signature to fail execution")
	}
}

func TestEngineExecuteOutOfRangeIndex(t *testing.T) {
	tx := &wire.MsgTx{Version: 1}
	e := NewEngine(stubChecker{valid: true}, tx, 0, 0)
	if _, err := e.Execute([]byte{OpTrue}); err == nil {
		t.Fatal("expected error for out-of-range input index")
	}
}
