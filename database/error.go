// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import "fmt"

// CorruptedError reports an I/O failure the paged store cannot recover
// from on its own: the caller upstream must
// quiesce writers, re-open, and re-replay from the last synced position.
type CorruptedError struct {
	Reason string
}

// Error implements the error interface.
func (e *CorruptedError) Error() string {
	return fmt.Sprintf("corrupted: %s", e.Reason)
}

// ErrUnknownParent indicates a block's previous_header_hash is not a block
// the chain database knows about.
var ErrUnknownParent = fmt.Errorf("database: unknown parent")

// ErrNotFound indicates a lookup found no record for the requested key.
var ErrNotFound = fmt.Errorf("database: not found")
