// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockFilename = "corvidd.lock"

// acquireLock creates the data directory's lockfile, failing when another
// corvidd instance already holds it. The returned release function removes
// the file.
func acquireLock(netDir string) (release func(), err error) {
	path := filepath.Join(netDir, lockFilename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("data directory %s is locked by another corvidd instance "+
				"(remove %s if that instance is no longer running)", netDir, path)
		}
		return nil, err
	}
	fmt.Fprintln(f, strconv.Itoa(os.Getpid()))
	f.Close()
	return func() { os.Remove(path) }, nil
}
