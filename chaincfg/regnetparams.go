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

// RegNetParams returns the consensus parameters for the regression test
// network: a single operator-controlled chain with a trivial difficulty
// and no checkpoints, used for scripted integration testing.
func RegNetParams() *Params {
	regPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	genesisBlock := buildGenesisBlock(
		1,
		time.Unix(1296688602, 0),
		BigToCompact(regPowLimit),
		2,
		hexDecode("04ffff001d0104"),
	)

	return &Params{
		Name:        "regtest",
		Net:         wire.RegNet,
		DefaultPort: "19777",
		DNSSeeds:    nil,

		GenesisBlock: genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     regPowLimit,
		PowLimitBits: BigToCompact(regPowLimit),
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
		Deployments: map[uint32]ConsensusDeployment{
			DeploymentCSV:    {BitNumber: 0},
			DeploymentSegwit: {BitNumber: 1},
		},
	}
}
