// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPing implements the Message interface and represents the liveness
// probe half of the liveness protocol.
type MsgPing struct {
	Nonce uint64
}

// NewMsgPing returns a new ping message carrying nonce.
func NewMsgPing(nonce uint64) *MsgPing { return &MsgPing{Nonce: nonce} }

// Command implements Message.
func (msg *MsgPing) Command() string { return CmdPing }

// MinVersion implements Message.
func (msg *MsgPing) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgPing) BtcEncode(w io.Writer, pver uint32) error {
	return writeElement(w, msg.Nonce)
}

// BtcDecode implements Message.
func (msg *MsgPing) BtcDecode(r io.Reader, pver uint32) error {
	return readElement(r, &msg.Nonce)
}

// MsgPong implements the Message interface and represents the reply to a
// ping, echoing the nonce it carried.
type MsgPong struct {
	Nonce uint64
}

// NewMsgPong returns a new pong message carrying nonce.
func NewMsgPong(nonce uint64) *MsgPong { return &MsgPong{Nonce: nonce} }

// Command implements Message.
func (msg *MsgPong) Command() string { return CmdPong }

// MinVersion implements Message.
func (msg *MsgPong) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgPong) BtcEncode(w io.Writer, pver uint32) error {
	return writeElement(w, msg.Nonce)
}

// BtcDecode implements Message.
func (msg *MsgPong) BtcDecode(r io.Reader, pver uint32) error {
	return readElement(r, &msg.Nonce)
}
