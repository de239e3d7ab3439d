// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/corvid-chain/corvidd/chainhash"
)

// MaxTxPerBlock bounds the number of transactions a single block message
// may declare.
const MaxTxPerBlock = 1_000_000

// MsgBlock implements the Message interface and represents a Corvid block:
// a header followed by its ordered transactions.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// Command implements Message.
func (msg *MsgBlock) Command() string { return CmdBlock }

// MinVersion implements Message.
func (msg *MsgBlock) MinVersion() uint32 { return 0 }

// AddTransaction appends a transaction to the block.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// BlockHash returns the hash of the block's header.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	return msg.Header.BlockHash()
}

// TxHashes returns the hash of every transaction in the block, in order.
func (msg *MsgBlock) TxHashes() []chainhash.Hash {
	hashes := make([]chainhash.Hash, len(msg.Transactions))
	for i, tx := range msg.Transactions {
		hashes[i] = tx.TxHash()
	}
	return hashes
}

// Serialize writes the full wire encoding of the block to w.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	return msg.BtcEncode(w, 0)
}

// Deserialize reads the wire encoding of a block from r into msg.
func (msg *MsgBlock) Deserialize(r io.Reader) error {
	return msg.BtcDecode(r, 0)
}

// BtcEncode implements Message.
func (msg *MsgBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}
	if err := writeVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.BtcEncode(w, pver); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode implements Message.
func (msg *MsgBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := msg.Header.Deserialize(r); err != nil {
		return err
	}
	count, err := readVarInt(r)
	if err != nil {
		return err
	}
	if err := checkVarIntCount(count, MaxTxPerBlock, "block transactions"); err != nil {
		return err
	}
	msg.Transactions = make([]*MsgTx, count)
	for i := range msg.Transactions {
		tx := &MsgTx{}
		if err := tx.BtcDecode(r, pver); err != nil {
			return err
		}
		msg.Transactions[i] = tx
	}
	return nil
}

// SerializeSize returns the number of bytes the block's wire encoding
// occupies, used by the verifier's max-block-size pre-check.
func (msg *MsgBlock) SerializeSize() int {
	var buf bytes.Buffer
	_ = msg.Serialize(&buf)
	return buf.Len()
}
