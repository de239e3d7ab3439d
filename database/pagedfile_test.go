// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestPagedFileUpdateAndReadPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.page")
	f, err := OpenPagedFile(path, 0, DefaultSegmentSize)
	if err != nil {
		t.Fatalf("OpenPagedFile: %v", err)
	}
	defer f.Shutdown()

	page := NewPage(0)
	copy(page.Data[:], bytes.Repeat([]byte{0xab}, PageSize))
	if _, err := f.UpdatePage(page); err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}

	got, err := f.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got == nil || !bytes.Equal(got.Data[:], page.Data[:]) {
		t.Fatalf("read page does not match written page")
	}
}

func TestPagedFileReadPastEndReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.page")
	f, err := OpenPagedFile(path, 0, DefaultSegmentSize)
	if err != nil {
		t.Fatalf("OpenPagedFile: %v", err)
	}
	defer f.Shutdown()

	got, err := f.ReadPage(PRef(PageSize * 5))
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil page past end of file, got %v", got)
	}
}

func TestPagedFileRejectsOutOfRangeOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.page")
	f, err := OpenPagedFile(path, 0, PageSize*4)
	if err != nil {
		t.Fatalf("OpenPagedFile: %v", err)
	}
	defer f.Shutdown()

	page := NewPage(PRef(PageSize * 10))
	if _, err := f.UpdatePage(page); err == nil {
		t.Fatalf("expected error writing outside configured file range")
	}
}

func TestPagedFileTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.page")
	f, err := OpenPagedFile(path, 0, DefaultSegmentSize)
	if err != nil {
		t.Fatalf("OpenPagedFile: %v", err)
	}
	defer f.Shutdown()

	for i := uint64(0); i < 3; i++ {
		if _, err := f.UpdatePage(NewPage(PRef(i * PageSize))); err != nil {
			t.Fatalf("UpdatePage: %v", err)
		}
	}
	if err := f.Truncate(PageSize); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got, want := f.Len(), uint64(PageSize); got != want {
		t.Fatalf("Len after truncate = %d, want %d", got, want)
	}
}
