// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// Opcodes this package recognizes. The full opcode table a production
// interpreter would need is not defined here; only the handful needed to
// classify scripts and count signature operations are defined.
const (
	OpFalse               = 0x00
	OpPushData1           = 0x4c
	OpTrue                = 0x51
	OpCheckSig            = 0xac
	OpCheckSigVerify      = 0xad
	OpCheckMultiSig       = 0xae
	OpCheckMultiSigVerify = 0xaf
)

// ScriptClass classifies a public key script into one of the forms this
// package recognizes, the way stdscript.DetermineScriptType does in the
// full reference implementation.
type ScriptClass int

const (
	// ScriptNonStandard is any script this package does not recognize.
	ScriptNonStandard ScriptClass = iota

	// ScriptAnyoneCanSpend is the single OP_TRUE (0x51) script: it is
	// satisfied unconditionally. It exists purely so test fixtures and
	// the regtest/unitest networks can build a chain without a real
	// signature scheme.
	ScriptAnyoneCanSpend

	// ScriptPubKey is a bare "<pubkey> OP_CHECKSIG" script.
	ScriptPubKey
)

// ClassifyScript identifies script's form and, for forms that carry one,
// returns the embedded public key.
func ClassifyScript(script []byte) (ScriptClass, []byte) {
	if len(script) == 1 && script[0] == OpTrue {
		return ScriptAnyoneCanSpend, nil
	}
	if pubKey, ok := extractBareCheckSig(script); ok {
		return ScriptPubKey, pubKey
	}
	return ScriptNonStandard, nil
}

// extractBareCheckSig recognizes "<push pubkey> OP_CHECKSIG": a single data
// push (33 or 65 bytes, as a compressed or uncompressed public key would
// be) followed immediately by OP_CHECKSIG.
func extractBareCheckSig(script []byte) ([]byte, bool) {
	if len(script) < 2 {
		return nil, false
	}
	if script[len(script)-1] != OpCheckSig {
		return nil, false
	}
	pushLen := int(script[0])
	if pushLen == 0 || pushLen >= OpPushData1 {
		return nil, false
	}
	if len(script) != 1+pushLen+1 {
		return nil, false
	}
	if pushLen != 33 && pushLen != 65 {
		return nil, false
	}
	return script[1 : 1+pushLen], true
}

// extractSignature recognizes a signature script consisting of a single
// data push and returns the pushed bytes.
func extractSignature(script []byte) ([]byte, bool) {
	if len(script) < 1 {
		return nil, false
	}
	pushLen := int(script[0])
	if pushLen == 0 || pushLen >= OpPushData1 || len(script) != 1+pushLen {
		return nil, false
	}
	return script[1 : 1+pushLen], true
}

// CountSigOps returns the number of signature operations script carries.
// Bare CHECKSIG/CHECKSIGVERIFY each count as one; bare CHECKMULTISIG/
// CHECKMULTISIGVERIFY count as up to 20 per spec, but since this engine
// never constructs a multisig output, they are counted as a fixed 20 to
// match the reference implementation's "non-accurate" counting mode for
// scripts it cannot statically analyze the exact key count for.
func CountSigOps(script []byte) int {
	n := 0
	for i := 0; i < len(script); i++ {
		switch script[i] {
		case OpCheckSig, OpCheckSigVerify:
			n++
		case OpCheckMultiSig, OpCheckMultiSigVerify:
			n += 20
		case OpPushData1:
			if i+1 < len(script) {
				i += 1 + int(script[i+1])
			}
		default:
			if script[i] > OpFalse && script[i] < OpPushData1 {
				i += int(script[i])
			}
		}
	}
	return n
}
