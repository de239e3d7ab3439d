// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/corvid-chain/corvidd/chainhash"
)

// InvType represents the type of inventory vector.
type InvType uint32

// Inventory vector types.
const (
	InvTypeError InvType = iota
	InvTypeTx
	InvTypeBlock
	InvTypeFilteredBlock
)

// String implements fmt.Stringer.
func (t InvType) String() string {
	switch t {
	case InvTypeError:
		return "ERROR"
	case InvTypeTx:
		return "MSG_TX"
	case InvTypeBlock:
		return "MSG_BLOCK"
	case InvTypeFilteredBlock:
		return "MSG_FILTERED_BLOCK"
	default:
		return fmt.Sprintf("Unknown InvType (%d)", uint32(t))
	}
}

// InvVect defines a bitcoin inventory vector, an identifier describing data
// of the given type and hash.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect for the given type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func (iv *InvVect) encode(w io.Writer) error {
	if err := writeElement(w, uint32(iv.Type)); err != nil {
		return err
	}
	_, err := w.Write(iv.Hash[:])
	return err
}

func (iv *InvVect) decode(r io.Reader) error {
	var typ uint32
	if err := readElement(r, &typ); err != nil {
		return err
	}
	iv.Type = InvType(typ)
	_, err := io.ReadFull(r, iv.Hash[:])
	return err
}

// MaxInvPerMsg is the maximum number of inventory vectors a single inv,
// getdata, or notfound message may carry.
const MaxInvPerMsg = 50000
