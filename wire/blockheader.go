// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/corvid-chain/corvidd/chainhash"
)

// MaxBlockHeaderPayload is the number of bytes the fixed 80-byte block
// header serializes to: 4 version + 32 prev hash + 32 merkle root + 4 time
// + 4 bits + 4 nonce.
const MaxBlockHeaderPayload = 4 + chainhash.HashSize + chainhash.HashSize + 4 + 4 + 4

// BlockHeader defines a block header as a fixed 80-byte record.
// Its hash is the double-SHA256 of its little-endian field serialization.
type BlockHeader struct {
	// Version is the block version, used to signal soft-fork deployments.
	Version int32

	// PrevBlock is the hash of the previous block header in the chain.
	PrevBlock chainhash.Hash

	// MerkleRoot is the Merkle root over the block's transaction hashes.
	MerkleRoot chainhash.Hash

	// Timestamp is the time the block was created, as a Unix time.
	Timestamp time.Time

	// Bits is the compact representation of the proof-of-work target.
	Bits uint32

	// Nonce is the value miners vary to produce a PoW-satisfying hash.
	Nonce uint32
}

// BlockHash computes the double-SHA256 hash of the header's serialization.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	var buf bytes.Buffer
	buf.Grow(MaxBlockHeaderPayload)
	// Serialization errors are impossible here: buf is an in-memory
	// bytes.Buffer and every field has a fixed, already-validated size.
	_ = writeBlockHeader(&buf, h)
	return chainhash.HashH(buf.Bytes())
}

// Serialize writes the block header to w using the wire encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// Deserialize reads a block header from r using the wire encoding.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

func readBlockHeader(r io.Reader, h *BlockHeader) error {
	if err := readElement(r, &h.Version); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return err
	}
	var secs uint32
	if err := readElement(r, &secs); err != nil {
		return err
	}
	h.Timestamp = time.Unix(int64(secs), 0)
	if err := readElement(r, &h.Bits); err != nil {
		return err
	}
	return readElement(r, &h.Nonce)
}

func writeBlockHeader(w io.Writer, h *BlockHeader) error {
	if err := writeElement(w, h.Version); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := writeElement(w, uint32(h.Timestamp.Unix())); err != nil {
		return err
	}
	if err := writeElement(w, h.Bits); err != nil {
		return err
	}
	return writeElement(w, h.Nonce)
}
