// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package database implements the node's storage substrate: a paged
// append-mostly blob store (PagedStore) holding raw block bytes, and a
// leveldb-backed chain index layered over it for everything keyed by
// hash, height, or outpoint rather than by page offset.
package database

import "encoding/binary"

// PageSize is the fixed size, in bytes, of every page the store manages.
const PageSize = 4096

// PRef identifies a page by its byte offset within the logical store.
// PRefs are always page-aligned: PRef % PageSize == 0.
type PRef uint64

// Offset returns pref as a plain byte offset.
func (pref PRef) Offset() uint64 { return uint64(pref) }

// Next returns the PRef immediately following pref, one page later.
func (pref PRef) Next() PRef { return pref + PageSize }

// Add returns the PRef n pages after pref.
func (pref PRef) Add(n uint64) PRef { return pref + PRef(n*PageSize) }

// Page is an opaque fixed-size unit of the paged store, identified by the
// offset it is stored at.
type Page struct {
	Pref PRef
	Data [PageSize]byte
}

// NewPage returns a zeroed page addressed at pref.
func NewPage(pref PRef) *Page {
	return &Page{Pref: pref}
}

// PutUint64 writes v as little-endian at the given byte offset within the
// page.
func (p *Page) PutUint64(off int, v uint64) {
	binary.LittleEndian.PutUint64(p.Data[off:off+8], v)
}

// Uint64 reads a little-endian uint64 from the given byte offset.
func (p *Page) Uint64(off int) uint64 {
	return binary.LittleEndian.Uint64(p.Data[off : off+8])
}
