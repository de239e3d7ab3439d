// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"
)

func TestClassifyScript(t *testing.T) {
	pubKey := bytes.Repeat([]byte{0x02}, 33)
	bareCheckSig := append(append([]byte{byte(len(pubKey))}, pubKey...), OpCheckSig)

	tests := []struct {
		name   string
		script []byte
		want   ScriptClass
	}{
		{"anyone-can-spend", []byte{OpTrue}, ScriptAnyoneCanSpend},
		{"bare pubkey checksig", bareCheckSig, ScriptPubKey},
		{"empty", nil, ScriptNonStandard},
		{"garbage", []byte{0xff, 0xff}, ScriptNonStandard},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			class, _ := ClassifyScript(tc.script)
			if class != tc.want {
				t.Errorf("ClassifyScript(%x) class = %v, want %v", tc.script, class, tc.want)
			}
		})
	}
}

func TestCountSigOps(t *testing.T) {
	pubKey := bytes.Repeat([]byte{0x03}, 33)
	script := append(append([]byte{byte(len(pubKey))}, pubKey...), OpCheckSig)

	if got := CountSigOps(script); got != 1 {
		t.Errorf("CountSigOps(bare checksig) = %d, want 1", got)
	}

	multi := []byte{OpCheckMultiSig}
	if got := CountSigOps(multi); got != 20 {
		t.Errorf("CountSigOps(bare checkmultisig) = %d, want 20", got)
	}

	repeated := bytes.Repeat([]byte{OpCheckSig}, 5)
	if got := CountSigOps(repeated); got != 5 {
		t.Errorf("CountSigOps(5x checksig) = %d, want 5", got)
	}
}

type stubChecker struct{ valid bool }

func (s stubChecker) CheckSig(sig, pubKey, sigHash []byte) bool { return s.valid }
