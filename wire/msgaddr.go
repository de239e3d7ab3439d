// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxAddrPerMsg is the maximum number of addresses a single addr message
// may carry.
const MaxAddrPerMsg = 1000

// MsgAddr implements the Message interface and represents a batch of known
// peer addresses, exchanged in response to getaddr.
type MsgAddr struct {
	AddrList []*NetAddress
}

// AddAddress appends a single address to the message.
func (msg *MsgAddr) AddAddress(na *NetAddress) {
	msg.AddrList = append(msg.AddrList, na)
}

// Command implements Message.
func (msg *MsgAddr) Command() string { return CmdAddr }

// MinVersion implements Message.
func (msg *MsgAddr) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgAddr) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeVarInt(w, uint64(len(msg.AddrList))); err != nil {
		return err
	}
	for _, na := range msg.AddrList {
		if err := na.encode(w, true); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode implements Message.
func (msg *MsgAddr) BtcDecode(r io.Reader, pver uint32) error {
	count, err := readVarInt(r)
	if err != nil {
		return err
	}
	if err := checkVarIntCount(count, MaxAddrPerMsg, "addresses"); err != nil {
		return err
	}
	msg.AddrList = make([]*NetAddress, count)
	for i := range msg.AddrList {
		na := &NetAddress{}
		if err := na.decode(r, true); err != nil {
			return err
		}
		msg.AddrList[i] = na
	}
	return nil
}

// MsgGetAddr implements the Message interface and requests a peer's known
// address set.
type MsgGetAddr struct{}

// Command implements Message.
func (msg *MsgGetAddr) Command() string { return CmdGetAddr }

// MinVersion implements Message.
func (msg *MsgGetAddr) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgGetAddr) BtcEncode(w io.Writer, pver uint32) error { return nil }

// BtcDecode implements Message.
func (msg *MsgGetAddr) BtcDecode(r io.Reader, pver uint32) error { return nil }
