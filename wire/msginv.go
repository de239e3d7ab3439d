// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// invList is the shared wire shape of inv, getdata, and notfound: a
// var-int count followed by that many InvVects.
type invList struct {
	InvList []*InvVect
}

func (l *invList) addInvVect(iv *InvVect) {
	l.InvList = append(l.InvList, iv)
}

func (l *invList) encode(w io.Writer) error {
	if err := writeVarInt(w, uint64(len(l.InvList))); err != nil {
		return err
	}
	for _, iv := range l.InvList {
		if err := iv.encode(w); err != nil {
			return err
		}
	}
	return nil
}

func (l *invList) decode(r io.Reader) error {
	count, err := readVarInt(r)
	if err != nil {
		return err
	}
	if err := checkVarIntCount(count, MaxInvPerMsg, "inventory vectors"); err != nil {
		return err
	}
	l.InvList = make([]*InvVect, count)
	for i := range l.InvList {
		iv := &InvVect{}
		if err := iv.decode(r); err != nil {
			return err
		}
		l.InvList[i] = iv
	}
	return nil
}

// MsgInv implements the Message interface and announces data the sender
// has available, by inventory vector.
type MsgInv struct{ invList }

// AddInvVect appends an inventory vector to the message.
func (msg *MsgInv) AddInvVect(iv *InvVect) { msg.addInvVect(iv) }

// Command implements Message.
func (msg *MsgInv) Command() string { return CmdInv }

// MinVersion implements Message.
func (msg *MsgInv) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }

// BtcDecode implements Message.
func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }

// MsgGetData implements the Message interface and requests the data
// identified by the carried inventory vectors.
type MsgGetData struct{ invList }

// AddInvVect appends an inventory vector to the message.
func (msg *MsgGetData) AddInvVect(iv *InvVect) { msg.addInvVect(iv) }

// Command implements Message.
func (msg *MsgGetData) Command() string { return CmdGetData }

// MinVersion implements Message.
func (msg *MsgGetData) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgGetData) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }

// BtcDecode implements Message.
func (msg *MsgGetData) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }

// MsgNotFound implements the Message interface and is the response to a
// getdata request for inventory the sender could not satisfy.
type MsgNotFound struct{ invList }

// AddInvVect appends an inventory vector to the message.
func (msg *MsgNotFound) AddInvVect(iv *InvVect) { msg.addInvVect(iv) }

// Command implements Message.
func (msg *MsgNotFound) Command() string { return CmdNotFound }

// MinVersion implements Message.
func (msg *MsgNotFound) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgNotFound) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }

// BtcDecode implements Message.
func (msg *MsgNotFound) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }
