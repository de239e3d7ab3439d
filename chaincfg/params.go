// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the per-network consensus parameters a Corvid
// node runs against: genesis block, proof-of-work limits, subsidy and
// retarget schedules, checkpoints, and the rule-change activation
// constants the soft-fork deployment state machine needs.
package chaincfg

import (
	"math/big"
	"time"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// DNSSeed identifies a DNS seed and whether it supports filtering
// by service bits.
type DNSSeed struct {
	Host         string
	HasFiltering bool
}

// Checkpoint identifies a known-good block by height and hash. A node may
// skip full validation of any ancestor of its highest checkpoint.
type Checkpoint struct {
	Height int64
	Hash   *chainhash.Hash
}

// ConsensusDeployment defines the specific parameters for a soft-fork
// deployment tracked by BlockDeployments: the bit position a block version
// sets to signal readiness, and the start/expire times bounding the
// signaling window.
type ConsensusDeployment struct {
	BitNumber  uint8
	StartTime  uint64
	ExpireTime uint64
}

// Deployment IDs used to key a Params.Deployments map.
const (
	DeploymentTestDummy = iota
	DeploymentCSV
	DeploymentSegwit

	// DefinedDeployments is the number of deployments the Params type knows
	// the name of. It is not a hard limit: callers may also key
	// Deployments with their own well-known IDs for custom networks.
	DefinedDeployments
)

// Params holds the consensus-critical parameters for a Corvid network, plus
// the peer-facing defaults (port, DNS seeds) a node needs to join it.
type Params struct {
	Name        string
	Net         wire.BitcoinNet
	DefaultPort string
	DNSSeeds    []DNSSeed

	// Chain parameters.
	GenesisBlock *wire.MsgBlock
	GenesisHash  chainhash.Hash
	PowLimit     *big.Int
	PowLimitBits uint32

	// BIP34-style height at which the coinbase must carry the block
	// height as its first script push. Zero disables the check.
	BIP34Height int64

	// TargetTimePerBlock is the intended spacing between blocks.
	TargetTimePerBlock time.Duration

	// TargetTimespan is the interval over which difficulty is retargeted.
	TargetTimespan time.Duration

	// RetargetAdjustmentFactor bounds how far a single retarget may move
	// the difficulty, up or down, in one window.
	RetargetAdjustmentFactor int64

	// ReduceMinDifficulty, when true, allows blocks with the minimum
	// difficulty if no block has been found within
	// MinDiffReductionTime of the previous block (test networks only).
	ReduceMinDifficulty  bool
	MinDiffReductionTime time.Duration

	// Subsidy parameters: subsidy halves by MulSubsidy/DivSubsidy every
	// SubsidyReductionInterval blocks, starting from BaseSubsidy.
	BaseSubsidy              int64
	MulSubsidy               int64
	DivSubsidy               int64
	SubsidyReductionInterval int64

	// CoinbaseMaturity is the number of blocks a coinbase output must
	// be buried under before it may be spent.
	CoinbaseMaturity int64

	// Max sizes.
	MaximumBlockSize int64
	MaxTxSize        int64

	// Checkpoints, ordered oldest to newest.
	Checkpoints []Checkpoint

	// AssumeValid is the hash of a block externally verified to be valid;
	// signature checks may be skipped for any of its ancestors. The zero
	// hash disables the optimization.
	AssumeValid chainhash.Hash

	// MinKnownChainWork is the minimum cumulative proof of work a chain
	// must carry to be considered for reorg. Nil disables the check.
	MinKnownChainWork *big.Int

	// Rule-change activation window, used by BlockDeployments: a
	// deployment's state is recomputed every RuleChangeActivationInterval
	// blocks, and requires signaling in at least
	// RuleChangeActivationQuorum of those blocks to transition from
	// started to locked_in.
	RuleChangeActivationQuorum   uint32
	RuleChangeActivationInterval uint32

	// Deployments maps a deployment ID to the per-network window in
	// which it is eligible to activate. Unset networks (e.g. unitest)
	// leave this empty, which disables every deployment's start/expire
	// check and leaves it permanently in the "defined" state.
	Deployments map[uint32]ConsensusDeployment
}

var bigOne = big.NewInt(1)

// hexDecodeHash decodes a big-endian hex string into a *chainhash.Hash,
// panicking on malformed input. It is used only for compile-time constant
// tables in this package's per-network parameter files.
func hexDecodeHash(s string) *chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return h
}
