// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"math/big"
	"testing"
	"time"

	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/wire"
)

type acceptAllChecker struct{}

func (acceptAllChecker) CheckSig(sig, pubKey, sigHash []byte) bool { return true }

// solvedBlock builds a coinbase-only block on prev that passes full
// verification at unitest difficulty; tag keeps competing branches'
// coinbase hashes distinct.
func solvedBlock(t *testing.T, params *chaincfg.Params, prev *wire.MsgBlock, tag byte) *wire.MsgBlock {
	t.Helper()

	cb := &wire.MsgTx{Version: 1}
	cb.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{tag, 0x00},
		Sequence:         0xffffffff,
	})
	cb.AddTxOut(&wire.TxOut{Value: params.BaseSubsidy, PkScript: []byte{0x51}})

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prev.BlockHash(),
			Timestamp: prev.Header.Timestamp.Add(time.Minute),
			Bits:      params.PowLimitBits,
		},
	}
	block.AddTransaction(cb)
	block.Header.MerkleRoot = blockchain.CalcMerkleRoot(
		blockchain.NewIndexedBlock(block).Transactions)

	target := chaincfg.CompactToBig(block.Header.Bits)
	for nonce := uint32(0); ; nonce++ {
		block.Header.Nonce = nonce
		if blockchain.HashToBig(block.BlockHash()).Cmp(target) <= 0 {
			return block
		}
		if nonce == 1<<24 {
			t.Fatal("no nonce solution found")
		}
	}
}

// TestVerifierAcceptsChainedSideChainBlocks drives two full Verify calls
// over the same unaccepted branch: the second side-chain block's parent
// exists only in the fork overlay the first call built, so acceptance
// depends on the verifier retaining that overlay between calls.
func TestVerifierAcceptsChainedSideChainBlocks(t *testing.T) {
	params := chaincfg.UniTestParams()
	db := openTestDB(t)
	if err := db.InitGenesis(params.GenesisBlock); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	v := blockchain.NewVerifier(db, params, acceptAllChecker{})

	// Grow the canon chain to height 2 so a fresh branch from genesis
	// classifies as a side chain rather than extending the tip.
	prev := params.GenesisBlock
	for height := int64(1); height <= 2; height++ {
		b := solvedBlock(t, params, prev, byte(height))
		if err := v.Verify(blockchain.VerificationFull, blockchain.NewIndexedBlock(b)); err != nil {
			t.Fatalf("canon block at height %d: %v", height, err)
		}
		if err := db.InsertBlock(b, height, big.NewInt(height)); err != nil {
			t.Fatalf("InsertBlock at height %d: %v", height, err)
		}
		prev = b
	}

	// The competing branch from genesis: none of its blocks is inserted
	// into the base database.
	s1 := solvedBlock(t, params, params.GenesisBlock, 0xaa)
	if err := v.Verify(blockchain.VerificationFull, blockchain.NewIndexedBlock(s1)); err != nil {
		t.Fatalf("first side-chain block: %v", err)
	}

	// s2's parent exists only in the overlay s1 was folded into.
	s2 := solvedBlock(t, params, s1, 0xab)
	if err := v.Verify(blockchain.VerificationFull, blockchain.NewIndexedBlock(s2)); err != nil {
		t.Fatalf("second side-chain block: %v", err)
	}

	// s3 grows the branch past the canon tip, the reorg trigger.
	s3 := solvedBlock(t, params, s2, 0xac)
	if err := v.Verify(blockchain.VerificationFull, blockchain.NewIndexedBlock(s3)); err != nil {
		t.Fatalf("overtaking side-chain block: %v", err)
	}

	// Verification alone never mutates the base chain.
	tipHash, tipHeight, _, err := db.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	if tipHeight != 2 || tipHash != prev.BlockHash() {
		t.Fatalf("base tip moved to %s at height %d during side-chain verification",
			tipHash, tipHeight)
	}
	if _, ok := db.BlockHeight(s1.BlockHash()); ok {
		t.Fatal("side-chain block leaked into the base indices")
	}
}
