// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/corvid-chain/corvidd/chaincfg"

// DeploymentState is a soft-fork deployment's position in its activation
// state machine.
type DeploymentState int

const (
	// StateDefined is the initial state: the deployment's start time has
	// not yet arrived.
	StateDefined DeploymentState = iota

	// StateStarted indicates the deployment's signaling window is open;
	// blocks may set its bit to vote for activation.
	StateStarted

	// StateLockedIn indicates a full RuleChangeActivationInterval window
	// met quorum; the deployment activates at the start of the next
	// window unconditionally.
	StateLockedIn

	// StateActive indicates the deployment's rules are in force.
	StateActive

	// StateFailed indicates the deployment's expire time passed without
	// reaching StateLockedIn; it will never activate.
	StateFailed
)

// String implements fmt.Stringer.
func (s DeploymentState) String() string {
	switch s {
	case StateDefined:
		return "defined"
	case StateStarted:
		return "started"
	case StateLockedIn:
		return "locked_in"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BlockDeployments computes, for a specific point in the chain, the
// activation state of every deployment a network's consensus parameters
// define. It is rebuilt per verified block rather than cached, since its
// inputs (block height, ancestor headers) change with every block.
type BlockDeployments struct {
	height    int64
	headers   HeaderProvider
	consensus *chaincfg.Params
}

// NewBlockDeployments constructs a BlockDeployments for a block about to be
// accepted at height, with headers answering lookups against the chain (or
// fork) it is being verified against.
func NewBlockDeployments(height int64, headers HeaderProvider, consensus *chaincfg.Params) *BlockDeployments {
	return &BlockDeployments{height: height, headers: headers, consensus: consensus}
}

// State returns the activation state of the deployment keyed by id. A
// deployment absent from the network's Deployments map is permanently
// StateDefined: it was never configured for this network, so it can never
// be observed as active.
func (d *BlockDeployments) State(id uint32) DeploymentState {
	dep, ok := d.consensus.Deployments[id]
	if !ok {
		return StateDefined
	}

	interval := int64(d.consensus.RuleChangeActivationInterval)
	if interval <= 0 {
		return StateDefined
	}

	// The state at height H is determined by walking forward from
	// genesis in whole RuleChangeActivationInterval windows, the BIP9
	// confirmation-window algorithm: each window's outcome depends only
	// on the previous window's state plus whether this window met
	// quorum, so it is safe to fold rather than replay block-by-block.
	windowStart := (d.height / interval) * interval

	state := StateDefined
	for start := int64(0); start <= windowStart; start += interval {
		medianTime := d.medianTimePast(start)
		switch state {
		case StateDefined:
			if medianTime >= dep.StartTime {
				state = StateStarted
			}
		case StateStarted:
			if medianTime >= dep.ExpireTime {
				state = StateFailed
				break
			}
			if d.signalCount(start, interval, dep.BitNumber) >= int64(d.consensus.RuleChangeActivationQuorum) {
				state = StateLockedIn
			}
		case StateLockedIn:
			state = StateActive
		}
	}
	return state
}

// medianTimePast approximates BIP9's median-time-past gate using the
// timestamp of the window's first block, which is monotonic enough for
// this implementation's purposes (a true median over 11 blocks requires
// direct header-provider support this interface does not expose).
func (d *BlockDeployments) medianTimePast(windowStart int64) uint64 {
	header, ok := d.headers.BlockHeaderByHeight(windowStart)
	if !ok {
		return 0
	}
	return uint64(header.Timestamp.Unix())
}

// signalCount counts how many of the interval blocks starting at
// windowStart set bitNumber in their version field.
func (d *BlockDeployments) signalCount(windowStart, interval int64, bitNumber uint8) int64 {
	var count int64
	mask := int32(1) << bitNumber
	for h := windowStart; h < windowStart+interval; h++ {
		header, ok := d.headers.BlockHeaderByHeight(h)
		if !ok {
			break
		}
		if header.Version&mask != 0 {
			count++
		}
	}
	return count
}
