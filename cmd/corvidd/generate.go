// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// maxGenerateAttempts bounds the nonce search per block; on the minimum
// difficulty networks generate is meant for, a solution arrives in a
// handful of attempts.
const maxGenerateAttempts = 1 << 30

// generateBlocks mines count empty blocks onto the current tip at the
// network's minimum difficulty, the regtest/unitest convenience backing
// the generate RPC. Each block's coinbase claims the full subsidy to an
// anyone-can-spend output.
func (s *server) generateBlocks(count int) ([]chainhash.Hash, error) {
	params := s.cfg.params.Params
	hashes := make([]chainhash.Hash, 0, count)

	for i := 0; i < count; i++ {
		tipHash, tipHeight, _, err := s.db.Tip()
		if err != nil {
			return hashes, err
		}
		height := tipHeight + 1

		block, err := buildEmptyBlock(params, tipHash, height)
		if err != nil {
			return hashes, err
		}
		if !solveBlock(&block.Header, params) {
			return hashes, fmt.Errorf("no solution found for block at height %d", height)
		}
		if err := s.syncMgr.SubmitBlock(block); err != nil {
			return hashes, fmt.Errorf("generated block rejected: %w", err)
		}
		hashes = append(hashes, block.BlockHash())
	}
	return hashes, nil
}

// buildEmptyBlock assembles a coinbase-only block extending prev at
// height.
func buildEmptyBlock(params *chaincfg.Params, prev chainhash.Hash, height int64) (*wire.MsgBlock, error) {
	coinbase := &wire.MsgTx{Version: 1}
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		// The height push keeps coinbase hashes unique across heights.
		SignatureScript: []byte{
			byte(height), byte(height >> 8), byte(height >> 16), byte(height >> 24),
		},
		Sequence: 0xffffffff,
	})
	coinbase.AddTxOut(&wire.TxOut{
		Value:    blockchain.CalcBlockSubsidy(height, params),
		PkScript: []byte{0x51},
	})

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prev,
			Timestamp: time.Now().Truncate(time.Second),
			Bits:      params.PowLimitBits,
		},
	}
	block.AddTransaction(coinbase)
	block.Header.MerkleRoot = blockchain.CalcMerkleRoot(
		blockchain.NewIndexedBlock(block).Transactions)
	return block, nil
}

// solveBlock searches the nonce space until the header hash meets its own
// declared target.
func solveBlock(header *wire.BlockHeader, params *chaincfg.Params) bool {
	target := chaincfg.CompactToBig(header.Bits)
	for nonce := uint32(0); nonce < maxGenerateAttempts; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if blockchain.HashToBig(hash).Cmp(target) <= 0 {
			return true
		}
	}
	return false
}
