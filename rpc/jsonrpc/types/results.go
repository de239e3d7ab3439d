// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package types defines the JSON shapes the corvidd RPC server marshals
// its replies into.
package types

// GetBlockVerboseResult models the data from the getblock command when the
// verbose flag is set.
type GetBlockVerboseResult struct {
	Hash          string   `json:"hash"`
	Confirmations int64    `json:"confirmations"`
	Size          int32    `json:"size"`
	Height        int64    `json:"height"`
	Version       int32    `json:"version"`
	MerkleRoot    string   `json:"merkleroot"`
	Tx            []string `json:"tx"`
	Time          int64    `json:"time"`
	Nonce         uint32   `json:"nonce"`
	Bits          string   `json:"bits"`
	PreviousHash  string   `json:"previousblockhash,omitempty"`
	NextHash      string   `json:"nextblockhash,omitempty"`
}

// TxRawResult models the data from the getrawtransaction command.
type TxRawResult struct {
	Hex           string `json:"hex"`
	Txid          string `json:"txid"`
	Version       int32  `json:"version"`
	LockTime      uint32 `json:"locktime"`
	BlockHash     string `json:"blockhash,omitempty"`
	BlockHeight   int64  `json:"blockheight,omitempty"`
	Confirmations int64  `json:"confirmations,omitempty"`
}

// GetPeerInfoResult models the data returned for each connected peer from
// the getpeerinfo command.
type GetPeerInfoResult struct {
	ID             int32  `json:"id"`
	Addr           string `json:"addr"`
	Services       string `json:"services"`
	LastSend       int64  `json:"lastsend"`
	LastRecv       int64  `json:"lastrecv"`
	ConnTime       int64  `json:"conntime"`
	Version        uint32 `json:"version"`
	SubVer         string `json:"subver"`
	Inbound        bool   `json:"inbound"`
	StartingHeight int64  `json:"startingheight"`
	SyncNode       bool   `json:"syncnode"`
}

// GetBlockChainInfoResult models the data returned from the
// getblockchaininfo command.
type GetBlockChainInfoResult struct {
	Chain                string `json:"chain"`
	Blocks               int64  `json:"blocks"`
	BestBlockHash        string `json:"bestblockhash"`
	Difficulty           uint32 `json:"difficulty"`
	ChainWork            string `json:"chainwork"`
	InitialBlockDownload bool   `json:"initialblockdownload"`
	MaxBlockSize         int64  `json:"maxblocksize"`
}

// BlockConnectedNtfn is the shape pushed to websocket clients when a new
// best block is accepted.
type BlockConnectedNtfn struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
}
