// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
)

// MainNetParams returns the consensus parameters for the main Corvid
// network.
func MainNetParams() *Params {
	// mainPowLimit is the lowest possible difficulty a main network block
	// can have: 2^224 - 1.
	mainPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	genesisBlock := buildGenesisBlock(
		1,
		time.Unix(1531731600, 0),
		BigToCompact(mainPowLimit),
		0x7c2bac1d,
		hexDecode("4104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac"),
	)

	return &Params{
		Name:        "mainnet",
		Net:         wire.MainNet,
		DefaultPort: "9666",
		DNSSeeds: []DNSSeed{
			{"seed.corvid-chain.org", true},
			{"seed2.corvid-chain.org", true},
		},

		GenesisBlock: genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     mainPowLimit,
		PowLimitBits: BigToCompact(mainPowLimit),
		BIP34Height:  227931,

		TargetTimePerBlock:       10 * time.Minute,
		TargetTimespan:           14 * 24 * time.Hour,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      false,

		BaseSubsidy:              50 * 1e8,
		MulSubsidy:               1,
		DivSubsidy:               2,
		SubsidyReductionInterval: 210000,
		CoinbaseMaturity:         100,

		MaximumBlockSize: 4_000_000,
		MaxTxSize:        1_000_000,

		Checkpoints: []Checkpoint{
			{11111, hexDecodeHash("0000000069e244f73d78e8fd29ba2fd2ed618bd6fa2ee92559f542fdb26e7c1d")},
			{33333, hexDecodeHash("000000002dd5588a74784eaa7ab0507a18ad16a236e7b1ce69f00d7ddfb5d0a1")},
		},

		AssumeValid:       chainhash.Hash{},
		MinKnownChainWork: nil,

		RuleChangeActivationQuorum:   1916,
		RuleChangeActivationInterval: 2016,
		Deployments: map[uint32]ConsensusDeployment{
			DeploymentCSV: {
				BitNumber:  0,
				StartTime:  1462060800,
				ExpireTime: 1493596800,
			},
			DeploymentSegwit: {
				BitNumber:  1,
				StartTime:  1479168000,
				ExpireTime: 1510704000,
			},
		},
	}
}
