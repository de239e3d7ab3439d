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

// TestNetParams returns the consensus parameters for the Corvid test
// network. Difficulty retargets the same as mainnet, but
// ReduceMinDifficulty allows a fast-forward to minimum difficulty when the
// network goes quiet, the way every Bitcoin-family testnet behaves.
func TestNetParams() *Params {
	testPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	genesisBlock := buildGenesisBlock(
		1,
		time.Unix(1296688602, 0),
		BigToCompact(testPowLimit),
		414098458,
		hexDecode("04ffff001d0104"),
	)

	return &Params{
		Name:        "testnet",
		Net:         wire.TestNet,
		DefaultPort: "19666",
		DNSSeeds: []DNSSeed{
			{"testnet-seed.corvid-chain.org", true},
		},

		GenesisBlock: genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     testPowLimit,
		PowLimitBits: BigToCompact(testPowLimit),
		BIP34Height:  21111,

		TargetTimePerBlock:       10 * time.Minute,
		TargetTimespan:           14 * 24 * time.Hour,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     20 * time.Minute,

		BaseSubsidy:              50 * 1e8,
		MulSubsidy:               1,
		DivSubsidy:               2,
		SubsidyReductionInterval: 210000,
		CoinbaseMaturity:         100,

		MaximumBlockSize: 4_000_000,
		MaxTxSize:        1_000_000,

		Checkpoints: []Checkpoint{
			{546, hexDecodeHash("000000002a936ca763904c3c35fce2f3556c559c0214345d31b1bcebf76acb70")},
		},

		AssumeValid:       chainhash.Hash{},
		MinKnownChainWork: nil,

		RuleChangeActivationQuorum:   1512,
		RuleChangeActivationInterval: 2016,
		Deployments: map[uint32]ConsensusDeployment{
			DeploymentCSV: {
				BitNumber:  0,
				StartTime:  1456790400,
				ExpireTime: 1493596800,
			},
			DeploymentSegwit: {
				BitNumber:  1,
				StartTime:  1462060800,
				ExpireTime: 1493596800,
			},
		},
	}
}
