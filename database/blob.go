// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import "encoding/binary"

// blobHeaderSize is the fixed-size length prefix written ahead of every
// blob: a single page is rarely enough to hold a full block, so a blob
// spans as many pages as its length requires.
const blobHeaderSize = 8

// AppendBlob writes data to the store starting at its current logical
// end, prefixed by its length, and returns the PRef the blob was written
// at (the caller's key for a later ReadBlob).
func (s *PagedStore) AppendBlob(data []byte) (PRef, error) {
	start := PRef(s.Len())

	buf := make([]byte, blobHeaderSize+len(data))
	binary.LittleEndian.PutUint64(buf[:blobHeaderSize], uint64(len(data)))
	copy(buf[blobHeaderSize:], data)

	for written := 0; written < len(buf); written += PageSize {
		page := NewPage(start.Add(uint64(written / PageSize)))
		end := written + PageSize
		if end > len(buf) {
			end = len(buf)
		}
		copy(page.Data[:], buf[written:end])
		if _, err := s.UpdatePage(page); err != nil {
			return 0, err
		}
	}
	return start, nil
}

// ReadBlob reads back the blob written by a prior AppendBlob at pref.
func (s *PagedStore) ReadBlob(pref PRef) ([]byte, error) {
	first, err := s.ReadPage(pref)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, ErrNotFound
	}
	length := binary.LittleEndian.Uint64(first.Data[:blobHeaderSize])

	total := blobHeaderSize + int(length)
	buf := make([]byte, 0, total)
	buf = append(buf, first.Data[:min(PageSize, total)]...)

	for uint64(len(buf)) < uint64(total) {
		next, err := s.ReadPage(pref.Add(uint64(len(buf) / PageSize)))
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, &CorruptedError{Reason: "blob truncated"}
		}
		remaining := total - len(buf)
		if remaining > PageSize {
			remaining = PageSize
		}
		buf = append(buf, next.Data[:remaining]...)
	}
	return buf[blobHeaderSize:total], nil
}
