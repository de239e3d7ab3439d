// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/corvid-chain/corvidd/chaincfg"

// CalcBlockSubsidy returns the base block subsidy for a block at height,
// halving every SubsidyReductionInterval blocks per params: the schedule
// every Bitcoin-family chain uses.
func CalcBlockSubsidy(height int64, params *chaincfg.Params) int64 {
	if params.SubsidyReductionInterval <= 0 {
		return params.BaseSubsidy
	}
	reductions := height / params.SubsidyReductionInterval
	if reductions >= 64 {
		return 0
	}
	subsidy := params.BaseSubsidy
	for i := int64(0); i < reductions; i++ {
		subsidy = (subsidy * params.MulSubsidy) / params.DivSubsidy
		if subsidy == 0 {
			return 0
		}
	}
	return subsidy
}
