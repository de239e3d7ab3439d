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

// UniTestParams returns the consensus parameters used exclusively by unit
// tests: trivial difficulty, no peers, no checkpoints, and no deployment
// windows, so that BlockDeployments never observes a defined deployment
// unless a test installs one explicitly.
func UniTestParams() *Params {
	uniPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	genesisBlock := buildGenesisBlock(
		1,
		time.Unix(1296688602, 0),
		BigToCompact(uniPowLimit),
		0,
		hexDecode("04ffff001d0104"),
	)

	return &Params{
		Name:        "unitest",
		Net:         wire.UniTest,
		DefaultPort: "19999",
		DNSSeeds:    nil,

		GenesisBlock: genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     uniPowLimit,
		PowLimitBits: BigToCompact(uniPowLimit),
		BIP34Height:  0,

		TargetTimePerBlock:       10 * time.Minute,
		TargetTimespan:           14 * 24 * time.Hour,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     20 * time.Minute,

		BaseSubsidy:              50 * 1e8,
		MulSubsidy:               1,
		DivSubsidy:               2,
		SubsidyReductionInterval: 150,
		CoinbaseMaturity:         100,

		MaximumBlockSize: 4_000_000,
		MaxTxSize:        1_000_000,

		Checkpoints:       nil,
		AssumeValid:       chainhash.Hash{},
		MinKnownChainWork: nil,

		RuleChangeActivationQuorum:   108,
		RuleChangeActivationInterval: 144,
		Deployments:                  map[uint32]ConsensusDeployment{},
	}
}
