// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/corvid-chain/corvidd/addrmgr"
	"github.com/corvid-chain/corvidd/connmgr"
	"github.com/corvid-chain/corvidd/netsync"
	"github.com/corvid-chain/corvidd/peer"
	"github.com/corvid-chain/corvidd/rpc"
)

// logWriter implements an io.Writer that outputs to both standard output
// and the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	// backendLog is the logging backend used to create all subsystem
	// loggers. The backend must not be used before the log rotator has
	// been initialized, or data races and/or nil pointer dereferences
	// will occur.
	backendLog = slog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	corvLog = backendLog.Logger("CRVD")
	peerLog = backendLog.Logger("PEER")
	syncLog = backendLog.Logger("SYNC")
	amgrLog = backendLog.Logger("AMGR")
	cmgrLog = backendLog.Logger("CMGR")
	rpcsLog = backendLog.Logger("RPCS")
)

// subsystemLoggers maps each subsystem identifier to its associated
// logger.
var subsystemLoggers = map[string]slog.Logger{
	"CRVD": corvLog,
	"PEER": peerLog,
	"SYNC": syncLog,
	"AMGR": amgrLog,
	"CMGR": cmgrLog,
	"RPCS": rpcsLog,
}

func init() {
	peer.UseLogger(peerLog)
	netsync.UseLogger(syncLog)
	addrmgr.UseLogger(amgrLog)
	connmgr.UseLogger(cmgrLog)
	rpc.UseLogger(rpcsLog)
}

// initLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory. It must be called before
// the package-global log rotator variables are used.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	logRotator = r
	return nil
}

// setLogLevels sets the log level for every subsystem to the provided
// level name, silently ignoring an unknown name.
func setLogLevels(levelName string) {
	level, ok := slog.LevelFromString(levelName)
	if !ok {
		return
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
