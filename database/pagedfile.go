// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"os"
	"sync"
)

// PagedFile is a single physical file covering the logical byte range
// [base, base+fileSize). One mutex serializes every reader and the one
// writer,
// and len tracks the file's current extent so UpdatePage can grow it
// lazily rather than pre-allocating fileSize up front.
type PagedFile struct {
	mu       sync.Mutex
	file     *os.File
	base     uint64
	fileSize uint64
	len      uint64
}

// OpenPagedFile opens (creating if necessary) the file at path as a
// PagedFile responsible for the logical range [base, base+fileSize).
func OpenPagedFile(path string, base, fileSize uint64) (*PagedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &PagedFile{file: f, base: base, fileSize: fileSize, len: uint64(info.Size())}, nil
}

// Len returns the file's current length, always a multiple of PageSize
// except for a final short read at end-of-file.
func (f *PagedFile) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.len
}

// ReadPage returns the page at pref, or nil if pref falls past the
// current end of file. It returns a *CorruptedError if pref falls outside
// this file's configured [base, base+fileSize) range.
func (f *PagedFile) ReadPage(pref PRef) (*Page, error) {
	pos := pref.Offset()
	if pos < f.base || pos >= f.base+f.fileSize {
		return nil, &CorruptedError{Reason: "read from wrong file"}
	}
	pos -= f.base

	f.mu.Lock()
	defer f.mu.Unlock()

	if pos >= f.len {
		return nil, nil
	}

	readLen := PageSize
	if rem := f.len % PageSize; rem > 0 && pos+PageSize > f.len {
		readLen = int(rem)
	}

	page := NewPage(pref)
	if _, err := f.file.ReadAt(page.Data[:readLen], int64(pos)); err != nil {
		return nil, &CorruptedError{Reason: err.Error()}
	}
	return page, nil
}

// UpdatePage writes page to its declared offset, extending the file's
// tracked length to max(len, offset+PageSize), and returns the resulting
// length.
func (f *PagedFile) UpdatePage(page *Page) (uint64, error) {
	pos := page.Pref.Offset()
	if pos < f.base || pos >= f.base+f.fileSize {
		return 0, &CorruptedError{Reason: "write to wrong file"}
	}
	pos -= f.base

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.file.WriteAt(page.Data[:], int64(pos)); err != nil {
		return 0, &CorruptedError{Reason: err.Error()}
	}
	if newLen := pos + PageSize; newLen > f.len {
		f.len = newLen
	}
	return f.len, nil
}

// Truncate shrinks the file to newLen bytes (relative to this file's base).
func (f *PagedFile) Truncate(newLen uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.file.Truncate(int64(newLen)); err != nil {
		return &CorruptedError{Reason: err.Error()}
	}
	f.len = newLen
	return nil
}

// Sync flushes previously accepted UpdatePage calls durably to disk: it
// returns only after the data is synced.
func (f *PagedFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.file.Sync(); err != nil {
		return &CorruptedError{Reason: err.Error()}
	}
	return nil
}

// Flush is a weaker durability barrier than Sync: it ensures writes have
// left process memory without necessarily forcing platform-level fsync.
// For *os.File there is nothing below the kernel page cache to flush
// separately from Sync, so this is a no-op kept for interface parity
// with the original PagedFile trait's split flush/sync methods.
func (f *PagedFile) Flush() error {
	return nil
}

// Shutdown releases the underlying OS file handle.
func (f *PagedFile) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}
