// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jrick/bitset"
)

// DefaultSegmentSize bounds how many bytes of logical address space each
// physical file backing a PagedStore covers before a new segment is
// opened, keeping any single file from growing without bound on
// filesystems that handle huge sparse files poorly.
const DefaultSegmentSize = 1 << 30 // 1 GiB per segment

// PagedStore presents a single logical byte-addressed file composed of
// one or more physical segment files. New segments are opened lazily as
// writes reach the end of the current one.
type PagedStore struct {
	mu       sync.Mutex
	dir      string
	name     string
	segSize  uint64
	segments []*PagedFile

	// dirty tracks, one bit per segment, which segments have accepted a
	// write since the last Sync, so a sync never touches clean files.
	dirty bitset.Bytes
}

// OpenPagedStore opens or creates the paged store named name under dir.
// The name prefixes each segment file, <name>.<index>.page (e.g. "bc" for
// the block blob store).
func OpenPagedStore(dir, name string) (*PagedStore, error) {
	s := &PagedStore{dir: dir, name: name, segSize: DefaultSegmentSize, dirty: bitset.NewBytes(8)}
	first, err := OpenPagedFile(s.segmentPath(0), 0, s.segSize)
	if err != nil {
		return nil, err
	}
	s.segments = append(s.segments, first)

	// Re-open any additional segments a previous run already created, in
	// order, so Len() reflects the store's full prior extent.
	for i := 1; ; i++ {
		path := s.segmentPath(i)
		seg, err := OpenPagedFile(path, uint64(i)*s.segSize, s.segSize)
		if err != nil {
			return nil, err
		}
		if seg.Len() == 0 {
			seg.Shutdown()
			break
		}
		s.segments = append(s.segments, seg)
	}
	return s, nil
}

func (s *PagedStore) segmentPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%d.%s", s.name, index, "page"))
}

// segmentFor returns the segment covering pref, opening a new one if
// needed when pref addresses the store's next segment.
func (s *PagedStore) segmentFor(pref PRef, forWrite bool) (*PagedFile, error) {
	index := int(pref.Offset() / s.segSize)
	if index < len(s.segments) {
		return s.segments[index], nil
	}
	if !forWrite || index != len(s.segments) {
		return nil, &CorruptedError{Reason: "pref outside store range"}
	}
	seg, err := OpenPagedFile(s.segmentPath(index), uint64(index)*s.segSize, s.segSize)
	if err != nil {
		return nil, err
	}
	s.segments = append(s.segments, seg)
	return seg, nil
}

// ReadPage returns the page at pref, or nil if pref is past the current
// end of the logical file.
func (s *PagedStore) ReadPage(pref PRef) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, err := s.segmentFor(pref, false)
	if err != nil {
		return nil, nil
	}
	return seg.ReadPage(pref)
}

// UpdatePage writes page to its declared offset, extending the store as
// needed, and returns the store's new logical length.
func (s *PagedStore) UpdatePage(page *Page) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, err := s.segmentFor(page.Pref, true)
	if err != nil {
		return 0, err
	}
	if _, err := seg.UpdatePage(page); err != nil {
		return 0, err
	}
	s.markDirty(int(page.Pref.Offset() / s.segSize))
	last := s.segments[len(s.segments)-1]
	return uint64(len(s.segments)-1)*s.segSize + last.Len(), nil
}

// Len returns the store's total logical length across every segment.
func (s *PagedStore) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.segments) == 0 {
		return 0
	}
	last := s.segments[len(s.segments)-1]
	return uint64(len(s.segments)-1)*s.segSize + last.Len()
}

// Truncate shrinks the store's logical length to newLen, dropping any
// segments entirely past it and truncating the segment newLen falls
// within.
func (s *PagedStore) Truncate(newLen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepIndex := int(newLen / s.segSize)
	for i := len(s.segments) - 1; i > keepIndex; i-- {
		if err := s.segments[i].Shutdown(); err != nil {
			return err
		}
		s.segments = s.segments[:i]
	}
	if keepIndex < len(s.segments) {
		s.markDirty(keepIndex)
		return s.segments[keepIndex].Truncate(newLen - uint64(keepIndex)*s.segSize)
	}
	return nil
}

// markDirty flags the segment at index as needing a durable flush,
// growing the bitset as new segments appear.
func (s *PagedStore) markDirty(index int) {
	for index >= len(s.dirty)*8 {
		s.dirty = append(s.dirty, 0)
	}
	s.dirty.Set(index)
}

// Sync durably flushes every segment written since the last Sync.
func (s *PagedStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, seg := range s.segments {
		if i < len(s.dirty)*8 && !s.dirty.Get(i) {
			continue
		}
		if err := seg.Sync(); err != nil {
			return err
		}
		if i < len(s.dirty)*8 {
			s.dirty.Unset(i)
		}
	}
	return nil
}

// Flush flushes every segment.
func (s *PagedStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if err := seg.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown releases every segment's underlying file handle.
func (s *PagedStore) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if err := seg.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}
