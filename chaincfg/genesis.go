// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"encoding/hex"
	"time"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

func hexDecode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// genesisCoinbaseTx is the single transaction carried by every network's
// genesis block. It is never spendable: its single input's previous
// outpoint is fully null, the same construction every other coinbase uses,
// and its output pays an unparsed placeholder script since no wallet or
// address-encoding layer exists in this build.
func genesisCoinbaseTx(pkScript []byte) *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  chainhash.Hash{},
			Index: 0xffffffff,
		},
		SignatureScript: hexDecode("04ffff001d0104"),
		Sequence:        0xffffffff,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    50 * 1e8,
		PkScript: pkScript,
	})
	return tx
}

// genesisMerkleRoot is the merkle root of a block containing exactly the
// genesis coinbase transaction: the hash of that single transaction.
func genesisMerkleRoot(tx *wire.MsgTx) chainhash.Hash {
	return tx.TxHash()
}

func buildGenesisBlock(version int32, timestamp time.Time, bits, nonce uint32, pkScript []byte) *wire.MsgBlock {
	coinbase := genesisCoinbaseTx(pkScript)
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    version,
			PrevBlock:  chainhash.Hash{},
			MerkleRoot: genesisMerkleRoot(coinbase),
			Timestamp:  timestamp,
			Bits:       bits,
			Nonce:      nonce,
		},
	}
	block.AddTransaction(coinbase)
	return block
}
