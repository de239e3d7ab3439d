// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import "github.com/decred/slog"

// log is the subsystem logger, disabled until the host binary installs a
// backend via UseLogger.
var log = slog.Disabled

// UseLogger sets the subsystem logger used by this package. Calling it is
// optional: unless called, all logging is performed using a no-op logger.
func UseLogger(logger slog.Logger) {
	log = logger
}
