// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"time"

	"github.com/corvid-chain/corvidd/chaincfg"
)

// CalcNextRequiredDifficulty computes the Bits field the next block after
// lastHeader must carry, retargeting every TargetTimespan/TargetTimePerBlock
// blocks by comparing the actual time the previous window took against the
// target, bounded by RetargetAdjustmentFactor either way.
func CalcNextRequiredDifficulty(height int64, lastBits uint32, firstBlockTime, lastBlockTime time.Time, params *chaincfg.Params) uint32 {
	blocksPerWindow := int64(params.TargetTimespan / params.TargetTimePerBlock)
	if blocksPerWindow <= 0 {
		return lastBits
	}

	if (height+1)%blocksPerWindow != 0 {
		if params.ReduceMinDifficulty {
			if lastBlockTime.Sub(firstBlockTime) > 2*params.TargetTimePerBlock {
				return chaincfg.BigToCompact(params.PowLimit)
			}
		}
		return lastBits
	}

	actualTimespan := lastBlockTime.Sub(firstBlockTime)
	minTimespan := params.TargetTimespan / time.Duration(params.RetargetAdjustmentFactor)
	maxTimespan := params.TargetTimespan * time.Duration(params.RetargetAdjustmentFactor)
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := chaincfg.CompactToBig(lastBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(params.TargetTimespan)))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget = params.PowLimit
	}
	return chaincfg.BigToCompact(newTarget)
}
