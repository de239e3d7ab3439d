// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txscript implements output-script classification, signature
// operation accounting, and a minimal script execution engine. Actual
// signature-scheme cryptography (ECDSA/Schnorr verification) and hash160
// address derivation are not implemented here; script execution is
// reached through the injected SignatureChecker interface so the rest of
// the verification pipeline never depends on a specific curve library, and
// script classification is limited to the bare pay-to-pubkey and
// pay-to-anything (always-true) forms a minimal test network needs.
package txscript

import "github.com/corvid-chain/corvidd/wire"

// SignatureChecker verifies a single (signature, public key, sighash)
// triple for a specific input of a specific transaction. Production
// callers inject an implementation backed by a real signature scheme;
// tests inject a stub that always accepts or always rejects.
type SignatureChecker interface {
	CheckSig(sig, pubKey, sigHash []byte) bool
}

// ScriptFlags adjusts Engine behavior for rules that activate via
// soft-fork deployment. The caller (the chain verifier) derives the flag
// set for a block's height from the deployment state machine; the engine
// only consumes it.
type ScriptFlags uint32

const (
	// ScriptVerifyCSV enforces relative lock-time semantics
	// (OP_CHECKSEQUENCEVERIFY) once the CSV deployment is active.
	ScriptVerifyCSV ScriptFlags = 1 << iota

	// ScriptVerifyWitness requires witness program validation once the
	// segwit deployment is active.
	ScriptVerifyWitness

	// ScriptVerifyStrictEncoding rejects non-canonical signature pushes.
	ScriptVerifyStrictEncoding
)

// Engine executes an input's signature script against its referenced
// output's public key script. It recognizes only the bare
// pay-to-pubkey/CHECKSIG form and the always-true anyone-can-spend form;
// anything else is non-standard and always fails, so the deployment flags
// currently gate no additional opcodes -- they are carried so a fuller
// opcode set slots in without changing the verifier seam.
type Engine struct {
	checker SignatureChecker
	tx      *wire.MsgTx
	txIndex int
	flags   ScriptFlags
}

// NewEngine constructs an Engine for validating the txIndex'th input of tx
// against its referenced output script, using checker for the underlying
// signature-scheme verification and flags for deployment-gated rules.
func NewEngine(checker SignatureChecker, tx *wire.MsgTx, txIndex int, flags ScriptFlags) *Engine {
	return &Engine{checker: checker, tx: tx, txIndex: txIndex, flags: flags}
}

// Execute runs the input's signature script against prevPkScript, returning
// whether the combined script validates.
func (e *Engine) Execute(prevPkScript []byte) (bool, error) {
	if e.txIndex < 0 || e.txIndex >= len(e.tx.TxIn) {
		return false, errTxIndexOutOfRange
	}

	class, data := ClassifyScript(prevPkScript)
	switch class {
	case ScriptAnyoneCanSpend:
		return true, nil
	case ScriptPubKey:
		return e.executeBareCheckSig(data)
	default:
		return false, nil
	}
}

func (e *Engine) executeBareCheckSig(pubKey []byte) (bool, error) {
	sig, ok := extractSignature(e.tx.TxIn[e.txIndex].SignatureScript)
	if !ok {
		return false, nil
	}
	sigHash := e.tx.TxHash()
	if ta, ok := e.checker.(TxAwareChecker); ok {
		return ta.CheckSigWithTx(sig, pubKey, sigHash[:], e.tx), nil
	}
	return e.checker.CheckSig(sig, pubKey, sigHash[:]), nil
}

var errTxIndexOutOfRange = engineError("input index out of range")

type engineError string

func (e engineError) Error() string { return string(e) }
