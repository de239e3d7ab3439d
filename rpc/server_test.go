// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/rpc/jsonrpc/types"
	"github.com/corvid-chain/corvidd/wire"
)

// stubChain serves a two-block chain from literals.
type stubChain struct {
	blocks []*wire.MsgBlock
	byHash map[chainhash.Hash]int64
}

func newStubChain() *stubChain {
	genesis := &wire.MsgBlock{Header: wire.BlockHeader{
		Version: 1, Timestamp: time.Unix(1700000000, 0), Bits: 0x207fffff,
	}}
	cb := &wire.MsgTx{Version: 1}
	cb.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}, Sequence: 0xffffffff})
	cb.AddTxOut(&wire.TxOut{Value: 50_0000_0000, PkScript: []byte{0x51}})
	genesis.AddTransaction(cb)

	b1 := &wire.MsgBlock{Header: wire.BlockHeader{
		Version: 1, PrevBlock: genesis.BlockHash(),
		Timestamp: time.Unix(1700000060, 0), Bits: 0x207fffff, Nonce: 1,
	}}
	cb1 := &wire.MsgTx{Version: 1}
	cb1.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}, SignatureScript: []byte{0x01}, Sequence: 0xffffffff})
	cb1.AddTxOut(&wire.TxOut{Value: 50_0000_0000, PkScript: []byte{0x51}})
	b1.AddTransaction(cb1)

	sc := &stubChain{blocks: []*wire.MsgBlock{genesis, b1}, byHash: make(map[chainhash.Hash]int64)}
	for i, b := range sc.blocks {
		sc.byHash[b.BlockHash()] = int64(i)
	}
	return sc
}

func (sc *stubChain) Tip() (chainhash.Hash, int64, *big.Int, error) {
	best := sc.blocks[len(sc.blocks)-1]
	return best.BlockHash(), int64(len(sc.blocks) - 1), big.NewInt(2), nil
}

func (sc *stubChain) BlockHash(height int64) (chainhash.Hash, bool) {
	if height < 0 || height >= int64(len(sc.blocks)) {
		return chainhash.Hash{}, false
	}
	return sc.blocks[height].BlockHash(), true
}

func (sc *stubChain) Block(hash chainhash.Hash) (*wire.MsgBlock, bool) {
	h, ok := sc.byHash[hash]
	if !ok {
		return nil, false
	}
	return sc.blocks[h], true
}

func (sc *stubChain) BlockHeight(hash chainhash.Hash) (int64, bool) {
	h, ok := sc.byHash[hash]
	return h, ok
}

func (sc *stubChain) Transaction(txHash chainhash.Hash) (*wire.MsgTx, chainhash.Hash, int64, bool) {
	for i, b := range sc.blocks {
		for _, tx := range b.Transactions {
			if tx.TxHash() == txHash {
				return tx, b.BlockHash(), int64(i), true
			}
		}
	}
	return nil, chainhash.Hash{}, 0, false
}

// stubSyncer records submissions.
type stubSyncer struct {
	submittedTx []*wire.MsgTx
}

func (ss *stubSyncer) SubmitBlock(block *wire.MsgBlock) error { return nil }
func (ss *stubSyncer) SubmitTx(tx *wire.MsgTx) error {
	ss.submittedTx = append(ss.submittedTx, tx)
	return nil
}
func (ss *stubSyncer) IsSyncing() bool { return false }

func newTestServer(t *testing.T, mutate func(*Config)) (*httptest.Server, *stubChain, *stubSyncer) {
	t.Helper()
	chain := newStubChain()
	syncer := &stubSyncer{}
	cfg := &Config{
		Chain:  chain,
		Syncer: syncer,
		Params: chaincfg.RegNetParams(),
	}
	if mutate != nil {
		mutate(cfg)
	}
	s := NewServer(cfg)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts, chain, syncer
}

func call(t *testing.T, url, method string, params ...interface{}) response {
	t.Helper()
	rawParams := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshaling param %d: %v", i, err)
		}
		rawParams[i] = b
	}
	body, err := json.Marshal(map[string]interface{}{
		"id": 1, "method": method, "params": rawParams,
	})
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	httpResp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("posting %s: %v", method, err)
	}
	defer httpResp.Body.Close()
	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding %s response: %v", method, err)
	}
	return resp
}

func TestGetBlockHash(t *testing.T) {
	ts, chain, _ := newTestServer(t, nil)

	resp := call(t, ts.URL, "getblockhash", 1)
	if resp.Error != nil {
		t.Fatalf("getblockhash: %v", resp.Error)
	}
	want, _ := chain.BlockHash(1)
	if resp.Result != want.String() {
		t.Fatalf("getblockhash = %v, want %s", resp.Result, want)
	}

	resp = call(t, ts.URL, "getblockhash", 99)
	if resp.Error == nil || resp.Error.Code != errCodeBlockNotFound {
		t.Fatalf("missing height: error = %v, want code %d", resp.Error, errCodeBlockNotFound)
	}
}

func TestGetBlockVerbose(t *testing.T) {
	ts, chain, _ := newTestServer(t, nil)
	hash, _ := chain.BlockHash(1)

	resp := call(t, ts.URL, "getblock", hash.String())
	if resp.Error != nil {
		t.Fatalf("getblock: %v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var result types.GetBlockVerboseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decoding verbose result: %v", err)
	}
	if result.Height != 1 || result.Confirmations != 1 {
		t.Fatalf("height/confirmations = %d/%d, want 1/1", result.Height, result.Confirmations)
	}
	if len(result.Tx) != 1 {
		t.Fatalf("verbose result lists %d txids, want 1", len(result.Tx))
	}
	genesisHash, _ := chain.BlockHash(0)
	if result.PreviousHash != genesisHash.String() {
		t.Fatalf("previousblockhash = %s, want genesis", result.PreviousHash)
	}
}

func TestGetBlockRaw(t *testing.T) {
	ts, chain, _ := newTestServer(t, nil)
	hash, _ := chain.BlockHash(0)

	resp := call(t, ts.URL, "getblock", hash.String(), false)
	if resp.Error != nil {
		t.Fatalf("getblock raw: %v", resp.Error)
	}
	rawHex, ok := resp.Result.(string)
	if !ok {
		t.Fatalf("raw getblock returned %T, want hex string", resp.Result)
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		t.Fatalf("result is not hex: %v", err)
	}
	decoded := &wire.MsgBlock{}
	if err := decoded.Deserialize(bytes.NewReader(raw)); err != nil {
		t.Fatalf("result does not deserialize: %v", err)
	}
	if decoded.BlockHash() != hash {
		t.Fatal("raw block round trip changed the hash")
	}
}

func TestSendRawTransaction(t *testing.T) {
	ts, chain, syncer := newTestServer(t, nil)

	coinbase := chain.blocks[0].Transactions[0]
	spend := &wire.MsgTx{Version: 1}
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: coinbase.TxHash(), Index: 0}})
	spend.AddTxOut(&wire.TxOut{Value: 49_0000_0000, PkScript: []byte{0x51}})
	var buf bytes.Buffer
	if err := spend.Serialize(&buf); err != nil {
		t.Fatalf("serializing spend: %v", err)
	}

	resp := call(t, ts.URL, "sendrawtransaction", hex.EncodeToString(buf.Bytes()))
	if resp.Error != nil {
		t.Fatalf("sendrawtransaction: %v", resp.Error)
	}
	if resp.Result != spend.TxHash().String() {
		t.Fatalf("sendrawtransaction = %v, want txid", resp.Result)
	}
	if len(syncer.submittedTx) != 1 {
		t.Fatalf("%d transactions reached the sync driver, want 1", len(syncer.submittedTx))
	}

	resp = call(t, ts.URL, "sendrawtransaction", "zzzz")
	if resp.Error == nil || resp.Error.Code != errCodeDeserialize {
		t.Fatalf("malformed hex: error = %v, want code %d", resp.Error, errCodeDeserialize)
	}
}

func TestGetRawTransaction(t *testing.T) {
	ts, chain, _ := newTestServer(t, nil)
	txid := chain.blocks[1].Transactions[0].TxHash()

	resp := call(t, ts.URL, "getrawtransaction", txid.String(), true)
	if resp.Error != nil {
		t.Fatalf("getrawtransaction: %v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var result types.TxRawResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Txid != txid.String() || result.BlockHeight != 1 {
		t.Fatalf("txid/height = %s/%d, want %s/1", result.Txid, result.BlockHeight, txid)
	}
}

func TestMethodNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp := call(t, ts.URL, "getstakeinfo")
	if resp.Error == nil || resp.Error.Code != errCodeMethodNotFound {
		t.Fatalf("unknown method: error = %v, want code %d", resp.Error, errCodeMethodNotFound)
	}
}

func TestAPIFamilyAllowList(t *testing.T) {
	ts, _, _ := newTestServer(t, func(cfg *Config) {
		cfg.AllowedAPIs = []string{"blockchain"}
	})

	// blockchain family stays reachable.
	if resp := call(t, ts.URL, "getblockhash", 0); resp.Error != nil {
		t.Fatalf("allowed family rejected: %v", resp.Error)
	}

	// raw family is not in the allow list.
	resp := call(t, ts.URL, "getrawtransaction", strings.Repeat("00", 32))
	if resp.Error == nil || resp.Error.Code != errCodeForbidden {
		t.Fatalf("disabled family: error = %v, want code %d", resp.Error, errCodeForbidden)
	}
}

func TestHostAllowList(t *testing.T) {
	ts, _, _ := newTestServer(t, func(cfg *Config) {
		cfg.AllowedHosts = []string{"rpc.example.org"}
	})

	body := []byte(`{"id":1,"method":"getblockhash","params":[0]}`)
	httpResp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("posting: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d for disallowed host, want 403", httpResp.StatusCode)
	}
}

func TestStopInvokesShutdown(t *testing.T) {
	requested := make(chan struct{}, 1)
	ts, _, _ := newTestServer(t, func(cfg *Config) {
		cfg.RequestShutdown = func() { requested <- struct{}{} }
	})

	resp := call(t, ts.URL, "stop")
	if resp.Error != nil {
		t.Fatalf("stop: %v", resp.Error)
	}
	select {
	case <-requested:
	case <-time.After(time.Second):
		t.Fatal("stop did not invoke the shutdown request")
	}
}
