// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"os/exec"
	"strings"
	"sync"

	"github.com/corvid-chain/corvidd/chainhash"
)

// notifyQueueDepth bounds how many unprocessed hashes the worker may hold
// before new ones are dropped; the operator command is best-effort.
const notifyQueueDepth = 32

// BlockNotify runs an operator-configured command for every new best
// block, with %s in the command substituted by the block's hex hash. It
// is a SyncListener; command failures are logged and never propagated.
type BlockNotify struct {
	command string

	hashes  chan chainhash.Hash
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	// runCommand is replaceable for tests.
	runCommand func(cmdline string) error
}

// NewBlockNotify returns a worker invoking command per new best block.
func NewBlockNotify(command string) *BlockNotify {
	return &BlockNotify{
		command:    command,
		hashes:     make(chan chainhash.Hash, notifyQueueDepth),
		quit:       make(chan struct{}),
		runCommand: runShellCommand,
	}
}

func runShellCommand(cmdline string) error {
	return exec.Command("/bin/sh", "-c", cmdline).Run()
}

// Start launches the worker goroutine.
func (bn *BlockNotify) Start() {
	bn.mu.Lock()
	defer bn.mu.Unlock()
	if bn.started {
		return
	}
	bn.started = true
	bn.wg.Add(1)
	go bn.worker()
}

// Stop halts the worker after it finishes the command in flight.
func (bn *BlockNotify) Stop() {
	bn.mu.Lock()
	if !bn.started {
		bn.mu.Unlock()
		return
	}
	bn.started = false
	bn.mu.Unlock()
	close(bn.quit)
	bn.wg.Wait()
}

// SynchronizationStateSwitched implements SyncListener; the notify hook
// only cares about individual best blocks.
func (bn *BlockNotify) SynchronizationStateSwitched(isSyncing bool) {}

// BestStorageBlockInserted implements SyncListener, queueing the hash for
// the worker. The sync manager's handler must never block here, so a full
// queue drops the notification with a log line.
func (bn *BlockNotify) BestStorageBlockInserted(hash chainhash.Hash) {
	select {
	case bn.hashes <- hash:
	default:
		log.Warnf("Blocknotify queue full; dropping %s", hash)
	}
}

func (bn *BlockNotify) worker() {
	defer bn.wg.Done()
	for {
		select {
		case hash := <-bn.hashes:
			cmdline := strings.ReplaceAll(bn.command, "%s", hash.String())
			if err := bn.runCommand(cmdline); err != nil {
				log.Errorf("Blocknotify command failed for %s: %v", hash, err)
			}
		case <-bn.quit:
			return
		}
	}
}
