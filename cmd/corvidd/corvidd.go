// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// corvidd is a full validating node for the Corvid network: it speaks the
// peer-to-peer wire protocol, validates blocks and transactions against
// consensus rules, persists the chain, and serves a JSON-RPC interface.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/database"
)

// version is the release string reported to peers and printed by
// --version.
const version = "0.1.0"

func main() {
	if err := corviddMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func corviddMain() error {
	cfg, args, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("corvidd version %s\n", version)
		return nil
	}

	if err := initLogRotator(filepath.Join(cfg.netDir, defaultLogFilename)); err != nil {
		return err
	}
	defer logRotator.Close()
	setLogLevels(cfg.DebugLevel)

	command := "start"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "start":
		return startCommand(cfg)
	case "verify":
		return verifyCommand(cfg)
	case "stats":
		return statsCommand(cfg)
	default:
		return fmt.Errorf("unknown command %q (want start, verify, or stats)", command)
	}
}

// startCommand runs the node until an interrupt or an RPC stop.
func startCommand(cfg *config) error {
	release, err := acquireLock(cfg.netDir)
	if err != nil {
		return err
	}
	defer release()

	s, err := newServer(cfg)
	if err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-interrupt
		corvLog.Infof("Received signal %v, shutting down", sig)
		s.requestShutdown()
	}()

	corvLog.Infof("corvidd version %s starting on %s", version, cfg.params.Name)
	return s.run()
}

// verifyCommand re-validates the local chain from genesis and exits,
// reporting the first inconsistency found.
func verifyCommand(cfg *config) error {
	db, err := database.Open(cfg.netDir, cfg.DbCache)
	if err != nil {
		return fmt.Errorf("opening chain database: %w", err)
	}
	defer db.Close()

	_, tipHeight, _, err := db.Tip()
	if err != nil {
		return err
	}
	if tipHeight < 0 {
		fmt.Println("chain is empty; nothing to verify")
		return nil
	}

	corvLog.Infof("Verifying %d blocks", tipHeight+1)
	var prevHash *blockchain.IndexedBlockHeader
	for height := int64(0); height <= tipHeight; height++ {
		hash, ok := db.BlockHash(height)
		if !ok {
			return fmt.Errorf("height index missing entry at height %d", height)
		}
		block, ok := db.Block(hash)
		if !ok {
			return fmt.Errorf("block %s at height %d is unreadable", hash, height)
		}
		ib := blockchain.NewIndexedBlock(block)

		if ib.Hash() != hash {
			return fmt.Errorf("block at height %d hashes to %s, index says %s",
				height, ib.Hash(), hash)
		}
		if height > 0 && block.Header.PrevBlock != prevHash.Hash {
			return fmt.Errorf("block at height %d does not link to its parent", height)
		}
		if err := blockchain.NewPreVerifier(ib, cfg.params.Params).Check(); err != nil {
			return fmt.Errorf("block at height %d fails verification: %w", height, err)
		}
		prevHash = &ib.Header

		if height%10000 == 0 && height > 0 {
			corvLog.Infof("Verified through height %d", height)
		}
	}
	fmt.Printf("chain OK: %d blocks\n", tipHeight+1)
	return nil
}

// statsCommand prints database statistics and exits.
func statsCommand(cfg *config) error {
	db, err := database.Open(cfg.netDir, cfg.DbCache)
	if err != nil {
		return fmt.Errorf("opening chain database: %w", err)
	}
	defer db.Close()

	tipHash, tipHeight, work, err := db.Tip()
	if err != nil {
		return err
	}

	fmt.Printf("network:     %s\n", cfg.params.Name)
	fmt.Printf("data dir:    %s\n", cfg.netDir)
	fmt.Printf("best height: %d\n", tipHeight)
	fmt.Printf("best hash:   %s\n", tipHash)
	fmt.Printf("chain work:  %s\n", work.Text(16))

	var txCount int
	for height := int64(0); height <= tipHeight; height++ {
		hash, ok := db.BlockHash(height)
		if !ok {
			break
		}
		if block, ok := db.Block(hash); ok {
			txCount += len(block.Transactions)
		}
	}
	fmt.Printf("transactions: %d\n", txCount)
	return nil
}
