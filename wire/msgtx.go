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

// MaxTxInPerMessage and MaxTxOutPerMessage bound the number of inputs and
// outputs a single transaction may declare, guarding against a hostile
// length prefix forcing an unbounded allocation.
const (
	MaxTxInPerMessage  = 1_000_000
	MaxTxOutPerMessage = 1_000_000
)

// OutPoint identifies a single transaction output by the hash of the
// transaction that created it and the output's index within it.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new OutPoint for the given hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

// TxIn defines a transaction input: a reference to a prior output, the
// signature script that satisfies its encumbrance, and an optional witness.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Witness          [][]byte
	Sequence         uint32
}

// TxOut defines a transaction output: a value and the script that encumbers
// its future spending.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// MsgTx implements the Message interface and represents a Corvid
// transaction: version, inputs, outputs, lock time.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// Command implements Message.
func (msg *MsgTx) Command() string { return CmdTx }

// MinVersion implements Message.
func (msg *MsgTx) MinVersion() uint32 { return 0 }

// AddTxIn appends an input to the transaction.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut appends an output to the transaction.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// IsCoinBase reports whether msg is a coinbase transaction: exactly one
// input referencing a fully-null previous outpoint.
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prev := &msg.TxIn[0].PreviousOutPoint
	return prev.Index == 0xffffffff && prev.Hash == (chainhash.Hash{})
}

// TxHash returns the double-SHA256 hash of the transaction's serialization,
// excluding witness data (so that witness malleability cannot change a
// transaction's canonical identity).
func (msg *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.serialize(&buf, false)
	return chainhash.HashH(buf.Bytes())
}

// WitnessHash returns the double-SHA256 hash of the full transaction
// serialization, including witness data.
func (msg *MsgTx) WitnessHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.serialize(&buf, true)
	return chainhash.HashH(buf.Bytes())
}

// Serialize writes the full (witness-included) wire encoding of msg to w.
func (msg *MsgTx) Serialize(w io.Writer) error {
	return msg.serialize(w, true)
}

// Deserialize reads the wire encoding of a transaction from r into msg.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	return msg.decode(r, true)
}

// BtcEncode implements Message.
func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	return msg.serialize(w, true)
}

// BtcDecode implements Message.
func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	return msg.decode(r, true)
}

// hasWitness reports whether any input of msg carries witness data.
func (msg *MsgTx) hasWitness() bool {
	for _, in := range msg.TxIn {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

func (msg *MsgTx) serialize(w io.Writer, includeWitness bool) error {
	if err := writeElement(w, msg.Version); err != nil {
		return err
	}

	witnessFlag := includeWitness && msg.hasWitness()
	if witnessFlag {
		if _, err := w.Write([]byte{0x00, 0x01}); err != nil {
			return err
		}
	}

	if err := writeVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if _, err := w.Write(ti.PreviousOutPoint.Hash[:]); err != nil {
			return err
		}
		if err := writeElement(w, ti.PreviousOutPoint.Index); err != nil {
			return err
		}
		if err := writeVarBytes(w, ti.SignatureScript); err != nil {
			return err
		}
		if err := writeElement(w, ti.Sequence); err != nil {
			return err
		}
	}

	if err := writeVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeElement(w, to.Value); err != nil {
			return err
		}
		if err := writeVarBytes(w, to.PkScript); err != nil {
			return err
		}
	}

	if witnessFlag {
		for _, ti := range msg.TxIn {
			if err := writeVarInt(w, uint64(len(ti.Witness))); err != nil {
				return err
			}
			for _, item := range ti.Witness {
				if err := writeVarBytes(w, item); err != nil {
					return err
				}
			}
		}
	}

	return writeElement(w, msg.LockTime)
}

func (msg *MsgTx) decode(r io.Reader, allowWitness bool) error {
	if err := readElement(r, &msg.Version); err != nil {
		return err
	}

	inCount, err := readVarInt(r)
	if err != nil {
		return err
	}

	witnessFlag := false
	if allowWitness && inCount == 0 {
		// Possible witness marker: a real zero-input transaction is
		// invalid, so a leading zero count is read as (marker, flag).
		var flag [1]byte
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return err
		}
		if flag[0] != 0x01 {
			return messageError(ErrInvalidCommand, "invalid transaction witness flag")
		}
		witnessFlag = true
		inCount, err = readVarInt(r)
		if err != nil {
			return err
		}
	}
	if err := checkVarIntCount(inCount, MaxTxInPerMessage, "transaction inputs"); err != nil {
		return err
	}

	msg.TxIn = make([]*TxIn, inCount)
	for i := range msg.TxIn {
		ti := &TxIn{}
		if _, err := io.ReadFull(r, ti.PreviousOutPoint.Hash[:]); err != nil {
			return err
		}
		if err := readElement(r, &ti.PreviousOutPoint.Index); err != nil {
			return err
		}
		sig, err := readVarBytes(r, MaxMessagePayload, "signature script")
		if err != nil {
			return err
		}
		ti.SignatureScript = sig
		if err := readElement(r, &ti.Sequence); err != nil {
			return err
		}
		msg.TxIn[i] = ti
	}

	outCount, err := readVarInt(r)
	if err != nil {
		return err
	}
	if err := checkVarIntCount(outCount, MaxTxOutPerMessage, "transaction outputs"); err != nil {
		return err
	}
	msg.TxOut = make([]*TxOut, outCount)
	for i := range msg.TxOut {
		to := &TxOut{}
		if err := readElement(r, &to.Value); err != nil {
			return err
		}
		script, err := readVarBytes(r, MaxMessagePayload, "pk script")
		if err != nil {
			return err
		}
		to.PkScript = script
		msg.TxOut[i] = to
	}

	if witnessFlag {
		for _, ti := range msg.TxIn {
			itemCount, err := readVarInt(r)
			if err != nil {
				return err
			}
			ti.Witness = make([][]byte, itemCount)
			for j := range ti.Witness {
				item, err := readVarBytes(r, MaxMessagePayload, "witness item")
				if err != nil {
					return err
				}
				ti.Witness[j] = item
			}
		}
	}

	return readElement(r, &msg.LockTime)
}
