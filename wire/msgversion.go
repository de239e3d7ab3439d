// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field
// carried in a version message.
const MaxUserAgentLen = 256

// MsgVersion implements the Message interface and represents the version
// handshake message: protocol version, services, local time, nonce, user
// agent, start height, relay.
type MsgVersion struct {
	ProtocolVersion uint32
	Services        ServiceFlag
	Timestamp       int64
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
	Relay           bool
}

// Command implements Message.
func (msg *MsgVersion) Command() string { return CmdVersion }

// MinVersion implements Message.
func (msg *MsgVersion) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeElement(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := writeElement(w, uint64(msg.Services)); err != nil {
		return err
	}
	if err := writeElement(w, msg.Timestamp); err != nil {
		return err
	}
	if err := writeElement(w, msg.Nonce); err != nil {
		return err
	}
	if err := writeVarString(w, msg.UserAgent); err != nil {
		return err
	}
	if err := writeElement(w, msg.StartHeight); err != nil {
		return err
	}
	relay := byte(0)
	if msg.Relay {
		relay = 1
	}
	_, err := w.Write([]byte{relay})
	return err
}

// BtcDecode implements Message.
func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.ProtocolVersion); err != nil {
		return err
	}
	var services uint64
	if err := readElement(r, &services); err != nil {
		return err
	}
	msg.Services = ServiceFlag(services)
	if err := readElement(r, &msg.Timestamp); err != nil {
		return err
	}
	if err := readElement(r, &msg.Nonce); err != nil {
		return err
	}
	ua, err := readVarString(r, MaxUserAgentLen)
	if err != nil {
		return err
	}
	msg.UserAgent = ua
	if err := readElement(r, &msg.StartHeight); err != nil {
		return err
	}
	var relay [1]byte
	if _, err := io.ReadFull(r, relay[:]); err != nil {
		return err
	}
	msg.Relay = relay[0] != 0
	return nil
}

// MsgVerAck implements the Message interface and represents the empty
// handshake acknowledgement.
type MsgVerAck struct{}

// Command implements Message.
func (msg *MsgVerAck) Command() string { return CmdVerAck }

// MinVersion implements Message.
func (msg *MsgVerAck) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgVerAck) BtcEncode(w io.Writer, pver uint32) error { return nil }

// BtcDecode implements Message.
func (msg *MsgVerAck) BtcDecode(r io.Reader, pver uint32) error { return nil }
