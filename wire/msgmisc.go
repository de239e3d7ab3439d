// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/corvid-chain/corvidd/chainhash"
)

// MsgMemPool implements the Message interface and requests an inv of the
// receiving peer's mempool contents.
type MsgMemPool struct{}

// Command implements Message.
func (msg *MsgMemPool) Command() string { return CmdMemPool }

// MinVersion implements Message.
func (msg *MsgMemPool) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgMemPool) BtcEncode(w io.Writer, pver uint32) error { return nil }

// BtcDecode implements Message.
func (msg *MsgMemPool) BtcDecode(r io.Reader, pver uint32) error { return nil }

// RejectCode represents a reason a message was rejected by a peer.
type RejectCode uint8

// Known reject codes.
const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

// MsgReject implements the Message interface and communicates to a peer why
// one of its previous messages was rejected.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   chainhash.Hash
}

// Command implements Message.
func (msg *MsgReject) Command() string { return CmdReject }

// MinVersion implements Message.
func (msg *MsgReject) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeVarString(w, msg.Cmd); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(msg.Code)}); err != nil {
		return err
	}
	if err := writeVarString(w, msg.Reason); err != nil {
		return err
	}
	if msg.Cmd == CmdBlock || msg.Cmd == CmdTx {
		_, err := w.Write(msg.Hash[:])
		return err
	}
	return nil
}

// BtcDecode implements Message.
func (msg *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	cmd, err := readVarString(r, CommandSize*2)
	if err != nil {
		return err
	}
	msg.Cmd = cmd
	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return err
	}
	msg.Code = RejectCode(code[0])
	reason, err := readVarString(r, MaxMessagePayload)
	if err != nil {
		return err
	}
	msg.Reason = reason
	if msg.Cmd == CmdBlock || msg.Cmd == CmdTx {
		if _, err := io.ReadFull(r, msg.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

// MsgSendHeaders implements the Message interface and asks a peer to
// announce new blocks with a headers message instead of an inv.
type MsgSendHeaders struct{}

// Command implements Message.
func (msg *MsgSendHeaders) Command() string { return CmdSendHeaders }

// MinVersion implements Message.
func (msg *MsgSendHeaders) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgSendHeaders) BtcEncode(w io.Writer, pver uint32) error { return nil }

// BtcDecode implements Message.
func (msg *MsgSendHeaders) BtcDecode(r io.Reader, pver uint32) error { return nil }

// MsgSendCmpct implements the Message interface and negotiates compact
// block relay: Announce requests the mode, Version identifies the
// negotiated compact-block encoding version.
type MsgSendCmpct struct {
	Announce bool
	Version  uint64
}

// Command implements Message.
func (msg *MsgSendCmpct) Command() string { return CmdSendCmpct }

// MinVersion implements Message.
func (msg *MsgSendCmpct) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgSendCmpct) BtcEncode(w io.Writer, pver uint32) error {
	announce := byte(0)
	if msg.Announce {
		announce = 1
	}
	if _, err := w.Write([]byte{announce}); err != nil {
		return err
	}
	return writeElement(w, msg.Version)
}

// BtcDecode implements Message.
func (msg *MsgSendCmpct) BtcDecode(r io.Reader, pver uint32) error {
	var announce [1]byte
	if _, err := io.ReadFull(r, announce[:]); err != nil {
		return err
	}
	msg.Announce = announce[0] != 0
	return readElement(r, &msg.Version)
}
