// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/corvid-chain/corvidd/chainhash"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes a
// getblocks or getheaders message may carry.
const MaxBlockLocatorsPerMsg = 500

// blockLocator is the shared shape of getblocks and getheaders: a
// protocol version, a list of locator hashes (most recent first, thinning
// exponentially toward genesis), and a stop hash.
type blockLocator struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

func (l *blockLocator) addBlockLocatorHash(hash *chainhash.Hash) {
	l.BlockLocatorHashes = append(l.BlockLocatorHashes, hash)
}

func (l *blockLocator) encode(w io.Writer) error {
	if err := writeElement(w, l.ProtocolVersion); err != nil {
		return err
	}
	if err := writeVarInt(w, uint64(len(l.BlockLocatorHashes))); err != nil {
		return err
	}
	for _, h := range l.BlockLocatorHashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	_, err := w.Write(l.HashStop[:])
	return err
}

func (l *blockLocator) decode(r io.Reader) error {
	if err := readElement(r, &l.ProtocolVersion); err != nil {
		return err
	}
	count, err := readVarInt(r)
	if err != nil {
		return err
	}
	if err := checkVarIntCount(count, MaxBlockLocatorsPerMsg, "block locator hashes"); err != nil {
		return err
	}
	l.BlockLocatorHashes = make([]*chainhash.Hash, count)
	for i := range l.BlockLocatorHashes {
		h := &chainhash.Hash{}
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return err
		}
		l.BlockLocatorHashes[i] = h
	}
	_, err = io.ReadFull(r, l.HashStop[:])
	return err
}

// MsgGetBlocks implements the Message interface and requests an inv of
// block hashes starting after the most recent locator hash the receiver
// recognizes, up to HashStop.
type MsgGetBlocks struct{ blockLocator }

// AddBlockLocatorHash appends a locator hash to the message.
func (msg *MsgGetBlocks) AddBlockLocatorHash(hash *chainhash.Hash) {
	msg.addBlockLocatorHash(hash)
}

// Command implements Message.
func (msg *MsgGetBlocks) Command() string { return CmdGetBlocks }

// MinVersion implements Message.
func (msg *MsgGetBlocks) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgGetBlocks) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }

// BtcDecode implements Message.
func (msg *MsgGetBlocks) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }

// MsgGetHeaders implements the Message interface and requests a headers
// message starting after the most recent locator hash the receiver
// recognizes, up to HashStop.
type MsgGetHeaders struct{ blockLocator }

// AddBlockLocatorHash appends a locator hash to the message.
func (msg *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) {
	msg.addBlockLocatorHash(hash)
}

// Command implements Message.
func (msg *MsgGetHeaders) Command() string { return CmdGetHeaders }

// MinVersion implements Message.
func (msg *MsgGetHeaders) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }

// BtcDecode implements Message.
func (msg *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }

// MaxBlockHeadersPerMsg is the maximum number of headers a single headers
// message may carry.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders implements the Message interface and carries a batch of block
// headers in response to getheaders.
type MsgHeaders struct {
	Headers []*BlockHeader
}

// AddBlockHeader appends a header to the message.
func (msg *MsgHeaders) AddBlockHeader(h *BlockHeader) {
	msg.Headers = append(msg.Headers, h)
}

// Command implements Message.
func (msg *MsgHeaders) Command() string { return CmdHeaders }

// MinVersion implements Message.
func (msg *MsgHeaders) MinVersion() uint32 { return 0 }

// BtcEncode implements Message.
func (msg *MsgHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeVarInt(w, uint64(len(msg.Headers))); err != nil {
		return err
	}
	for _, h := range msg.Headers {
		if err := h.Serialize(w); err != nil {
			return err
		}
		// A zero tx-count trailer keeps the framing compatible with
		// implementations that reuse the block decoder for headers.
		if err := writeVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode implements Message.
func (msg *MsgHeaders) BtcDecode(r io.Reader, pver uint32) error {
	count, err := readVarInt(r)
	if err != nil {
		return err
	}
	if err := checkVarIntCount(count, MaxBlockHeadersPerMsg, "headers"); err != nil {
		return err
	}
	msg.Headers = make([]*BlockHeader, count)
	for i := range msg.Headers {
		h := &BlockHeader{}
		if err := h.Deserialize(r); err != nil {
			return err
		}
		if _, err := readVarInt(r); err != nil {
			return err
		}
		msg.Headers[i] = h
	}
	return nil
}
