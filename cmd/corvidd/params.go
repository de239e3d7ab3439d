// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/wire"
)

// netParams groups a chaincfg.Params with the RPC port that network listens
// on by default.
type netParams struct {
	*chaincfg.Params
	rpcPort string
}

var mainNetParams = netParams{
	Params:  chaincfg.MainNetParams(),
	rpcPort: "9332",
}

var testNetParams = netParams{
	Params:  chaincfg.TestNetParams(),
	rpcPort: "19332",
}

var regNetParams = netParams{
	Params:  chaincfg.RegNetParams(),
	rpcPort: "19777",
}

var uniTestParams = netParams{
	Params:  chaincfg.UniTestParams(),
	rpcPort: "19999",
}

// netName returns the directory-safe name for a network, used to namespace
// the data directory and log file per active network.
func netName(p *netParams) string {
	switch p.Net {
	case wire.TestNet:
		return "testnet"
	case wire.RegNet:
		return "regtest"
	case wire.UniTest:
		return "unitest"
	default:
		return p.Name
	}
}
