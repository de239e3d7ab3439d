// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/txscript"
	"github.com/corvid-chain/corvidd/wire"
)

// memStore is an in-memory Store sufficient for verifier tests: a linear
// chain with a UTXO view and transaction metadata.
type memStore struct {
	byHash   map[chainhash.Hash]int64
	byHeight map[int64]*wire.MsgBlock
	utxos    map[wire.OutPoint]*wire.TxOut
	txMeta   map[chainhash.Hash]txMeta
	tip      int64
}

type txMeta struct {
	height     int64
	isCoinbase bool
}

func newMemStore(genesis *wire.MsgBlock) *memStore {
	ms := &memStore{
		byHash:   make(map[chainhash.Hash]int64),
		byHeight: make(map[int64]*wire.MsgBlock),
		utxos:    make(map[wire.OutPoint]*wire.TxOut),
		txMeta:   make(map[chainhash.Hash]txMeta),
		tip:      -1,
	}
	ms.insert(genesis)
	return ms
}

// insert appends block at the next height, maintaining every index.
func (ms *memStore) insert(block *wire.MsgBlock) {
	height := ms.tip + 1
	ms.byHash[block.BlockHash()] = height
	ms.byHeight[height] = block
	ms.tip = height

	for i, tx := range block.Transactions {
		txHash := tx.TxHash()
		ms.txMeta[txHash] = txMeta{height: height, isCoinbase: i == 0}
		if i > 0 {
			for _, in := range tx.TxIn {
				delete(ms.utxos, in.PreviousOutPoint)
			}
		}
		for outIdx, out := range tx.TxOut {
			ms.utxos[wire.OutPoint{Hash: txHash, Index: uint32(outIdx)}] = out
		}
	}
}

func (ms *memStore) BlockHeight(hash chainhash.Hash) (int64, bool) {
	h, ok := ms.byHash[hash]
	return h, ok
}

func (ms *memStore) BlockHeaderByHeight(height int64) (*wire.BlockHeader, bool) {
	block, ok := ms.byHeight[height]
	if !ok {
		return nil, false
	}
	return &block.Header, true
}

func (ms *memStore) BestHeight() int64 { return ms.tip }

func (ms *memStore) Output(prevOut wire.OutPoint) (*wire.TxOut, bool) {
	out, ok := ms.utxos[prevOut]
	return out, ok
}

func (ms *memStore) TransactionHeight(txHash chainhash.Hash) (int64, bool, bool) {
	meta, ok := ms.txMeta[txHash]
	if !ok {
		return 0, false, false
	}
	return meta.height, meta.isCoinbase, true
}

func (ms *memStore) Origin(header *IndexedBlockHeader) (BlockOrigin, error) {
	if _, known := ms.byHash[header.Hash]; known {
		return BlockOrigin{Kind: OriginKnownBlock}, nil
	}
	parentHeight, ok := ms.byHash[header.Header.PrevBlock]
	if !ok {
		return BlockOrigin{}, &DatabaseError{Kind: ErrUnknownParent}
	}
	height := parentHeight + 1
	if parentHeight == ms.tip {
		return BlockOrigin{Kind: OriginCanonChain, BlockNumber: height}, nil
	}
	if height > ms.tip {
		return BlockOrigin{
			Kind:        OriginSideChainBecomingCanonChain,
			BlockNumber: height,
			ForkHash:    header.Header.PrevBlock,
		}, nil
	}
	return BlockOrigin{Kind: OriginSideChain, BlockNumber: height, ForkHash: header.Header.PrevBlock}, nil
}

// testParams returns unitest parameters with the subsidy used throughout
// these tests.
func testParams() *chaincfg.Params {
	return chaincfg.UniTestParams()
}

// anyoneCanSpend is the OP_TRUE output script, satisfiable without a
// signature scheme.
var anyoneCanSpend = []byte{txscript.OpTrue}

// solveHeader searches the nonce space until the header meets its own
// declared target; trivial at unitest difficulty.
func solveHeader(t *testing.T, header *wire.BlockHeader, params *chaincfg.Params) {
	t.Helper()
	target := chaincfg.CompactToBig(header.Bits)
	for nonce := uint32(0); nonce < 1<<24; nonce++ {
		header.Nonce = nonce
		if HashToBig(header.BlockHash()).Cmp(target) <= 0 {
			return
		}
	}
	t.Fatal("no nonce solution found")
}

// sealBlock assembles a block on prev from already-built transactions
// (the first must be the coinbase), fills in the Merkle root, and solves
// the nonce.
func sealBlock(t *testing.T, params *chaincfg.Params, prev *wire.MsgBlock, txs ...*wire.MsgTx) *wire.MsgBlock {
	t.Helper()

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prev.BlockHash(),
			Timestamp: prev.Header.Timestamp.Add(time.Minute),
			Bits:      params.PowLimitBits,
		},
	}
	for _, tx := range txs {
		block.AddTransaction(tx)
	}
	block.Header.MerkleRoot = CalcMerkleRoot(NewIndexedBlock(block).Transactions)
	solveHeader(t, &block.Header, params)
	return block
}

// makeCoinbase builds a coinbase for height carrying the given outputs.
func makeCoinbase(height int64, outputs ...*wire.TxOut) *wire.MsgTx {
	coinbase := &wire.MsgTx{Version: 1}
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{byte(height), byte(height >> 8)},
		Sequence:         0xffffffff,
	})
	for _, out := range outputs {
		coinbase.AddTxOut(out)
	}
	return coinbase
}

// blockOn assembles and solves a block on prev carrying txs after the
// standard coinbase, which claims coinbaseValue.
func blockOn(t *testing.T, params *chaincfg.Params, prev *wire.MsgBlock, height int64, coinbaseValue int64, coinbaseScript []byte, txs ...*wire.MsgTx) *wire.MsgBlock {
	t.Helper()

	coinbase := makeCoinbase(height, &wire.TxOut{Value: coinbaseValue, PkScript: coinbaseScript})
	return sealBlock(t, params, prev, append([]*wire.MsgTx{coinbase}, txs...)...)
}

// spendTx builds a transaction spending prevOut into a single
// anyone-can-spend output of value.
func spendTx(prevHash chainhash.Hash, prevIdx uint32, value int64, pkScript []byte) *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prevHash, Index: prevIdx},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(&wire.TxOut{Value: value, PkScript: pkScript})
	return tx
}

type acceptAllChecker struct{}

func (acceptAllChecker) CheckSig(sig, pubKey, sigHash []byte) bool { return true }

func newTestVerifier(store Store, params *chaincfg.Params) *Verifier {
	return NewVerifier(store, params, acceptAllChecker{})
}

// TestVerifyOrphanRejected: a block whose parent is unknown fails with
// UnknownParent and leaves the store's best block untouched.
func TestVerifyOrphanRejected(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	b1 := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
	b2 := blockOn(t, params, b1, 2, params.BaseSubsidy, anyoneCanSpend)

	// b1 is never inserted: b2's parent is unknown.
	err := v.Verify(VerificationFull, NewIndexedBlock(b2))
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) || dbErr.Kind != ErrUnknownParent {
		t.Fatalf("err = %v, want DatabaseError{UnknownParent}", err)
	}
	if store.BestHeight() != 0 {
		t.Fatalf("best height moved to %d on an orphan", store.BestHeight())
	}
}

// TestVerifySmokeAcceptance: a well-formed child of genesis passes full
// verification and extends the chain to height 1.
func TestVerifySmokeAcceptance(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	b1 := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
	if err := v.Verify(VerificationFull, NewIndexedBlock(b1)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	store.insert(b1)
	if store.BestHeight() != 1 {
		t.Fatalf("best height = %d, want 1", store.BestHeight())
	}
}

// TestVerifyKnownBlock: re-verifying a block already in the store reports
// ErrAlreadyKnown rather than asserting.
func TestVerifyKnownBlock(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	err := v.Verify(VerificationFull, NewIndexedBlock(params.GenesisBlock))
	if !errors.Is(err, ErrAlreadyKnown) {
		t.Fatalf("err = %v, want ErrAlreadyKnown", err)
	}
}

// TestCoinbaseOverspend: a coinbase claiming one atom over subsidy at
// height 1 fails with the exact expected/actual pair.
func TestCoinbaseOverspend(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	const subsidy = 5_000_000_000
	if params.BaseSubsidy != subsidy {
		t.Fatalf("unexpected base subsidy %d", params.BaseSubsidy)
	}
	b1 := blockOn(t, params, params.GenesisBlock, 1, subsidy+1, anyoneCanSpend)

	err := v.Verify(VerificationFull, NewIndexedBlock(b1))
	var overspend *CoinbaseOverspendError
	if !errors.As(err, &overspend) {
		t.Fatalf("err = %v, want CoinbaseOverspendError", err)
	}
	if overspend.ExpectedMax != subsidy || overspend.Actual != subsidy+1 {
		t.Fatalf("overspend = {%d %d}, want {%d %d}",
			overspend.ExpectedMax, overspend.Actual, int64(subsidy), int64(subsidy+1))
	}
}

// TestBlockSigopsCap: a block whose total sigop count crosses the
// block-wide cap is rejected with ErrMaximumSigops. The sigops ride on
// the coinbase's outputs, which have no per-transaction cap.
func TestBlockSigopsCap(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	overCap := bytes.Repeat([]byte{txscript.OpCheckSig}, maxBlockSigOps+1)
	b1 := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, overCap)

	err := v.Verify(VerificationFull, NewIndexedBlock(b1))
	if !errors.Is(err, ErrMaximumSigops) {
		t.Fatalf("err = %v, want ErrMaximumSigops", err)
	}
}

// TestTransactionSigopsCap: a single non-coinbase transaction over the
// per-transaction sigop limit is rejected with its index and kind.
func TestTransactionSigopsCap(t *testing.T) {
	params := testParams()
	params.CoinbaseMaturity = 1
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	funding := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
	store.insert(funding)

	overCap := bytes.Repeat([]byte{txscript.OpCheckSig}, maxTxSigOps+1)
	spend := spendTx(funding.Transactions[0].TxHash(), 0, 0, overCap)
	b2 := blockOn(t, params, funding, 2, params.BaseSubsidy, anyoneCanSpend, spend)

	err := v.Verify(VerificationFull, NewIndexedBlock(b2))
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Kind != TxErrMaximumSigops {
		t.Fatalf("err = %v, want TransactionError{MaximumSigops}", err)
	}
	if txErr.Index != 1 {
		t.Fatalf("failing index = %d, want 1", txErr.Index)
	}
}

// TestSignatureScriptSigopsCap: two transactions carrying 81,000 and
// 81,001 OP_CHECKSIG opcodes in their signature scripts are rejected for
// exceeding the sigop bounds. The opcodes ride on the inputs, not the
// outputs: signature scripts count the same.
func TestSignatureScriptSigopsCap(t *testing.T) {
	params := testParams()
	params.CoinbaseMaturity = 1
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	funding := sealBlock(t, params, params.GenesisBlock, makeCoinbase(1,
		&wire.TxOut{Value: params.BaseSubsidy / 2, PkScript: anyoneCanSpend},
		&wire.TxOut{Value: params.BaseSubsidy / 2, PkScript: anyoneCanSpend},
	))
	store.insert(funding)

	fundingHash := funding.Transactions[0].TxHash()
	tx1 := spendTx(fundingHash, 0, 0, anyoneCanSpend)
	tx1.TxIn[0].SignatureScript = bytes.Repeat([]byte{txscript.OpCheckSig}, 81_000)
	tx2 := spendTx(fundingHash, 1, 0, anyoneCanSpend)
	tx2.TxIn[0].SignatureScript = bytes.Repeat([]byte{txscript.OpCheckSig}, 81_001)

	b2 := blockOn(t, params, funding, 2, params.BaseSubsidy, anyoneCanSpend, tx1, tx2)

	err := v.Verify(VerificationFull, NewIndexedBlock(b2))
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Kind != TxErrMaximumSigops {
		t.Fatalf("err = %v, want TransactionError{MaximumSigops}", err)
	}
	if txErr.Index != 1 {
		t.Fatalf("failing index = %d, want 1", txErr.Index)
	}
}

// TestBlockSigopsCapViaSignatureScripts: transactions each individually
// under the per-transaction limit still trip the block-wide cap when
// their signature-script sigops sum past it.
func TestBlockSigopsCapViaSignatureScripts(t *testing.T) {
	params := testParams()
	params.CoinbaseMaturity = 1
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	// Enough spends at exactly the per-transaction limit to cross the
	// block cap.
	spends := maxBlockSigOps/maxTxSigOps + 1
	outputs := make([]*wire.TxOut, spends)
	for i := range outputs {
		outputs[i] = &wire.TxOut{Value: 0, PkScript: anyoneCanSpend}
	}
	funding := sealBlock(t, params, params.GenesisBlock, makeCoinbase(1, outputs...))
	store.insert(funding)

	fundingHash := funding.Transactions[0].TxHash()
	txs := make([]*wire.MsgTx, spends)
	for i := range txs {
		txs[i] = spendTx(fundingHash, uint32(i), 0, anyoneCanSpend)
		txs[i].TxIn[0].SignatureScript = bytes.Repeat([]byte{txscript.OpCheckSig}, maxTxSigOps)
	}

	b2 := blockOn(t, params, funding, 2, params.BaseSubsidy, anyoneCanSpend, txs...)

	err := v.Verify(VerificationFull, NewIndexedBlock(b2))
	if !errors.Is(err, ErrMaximumSigops) {
		t.Fatalf("err = %v, want ErrMaximumSigops", err)
	}
}

// TestCoinbaseMaturity: spending a coinbase output before it has cleared
// CoinbaseMaturity confirmations fails with the Maturity kind.
func TestCoinbaseMaturity(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	funding := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
	store.insert(funding)

	// Height 2 minus height 1 is far below the default maturity of 100.
	spend := spendTx(funding.Transactions[0].TxHash(), 0, params.BaseSubsidy, anyoneCanSpend)
	b2 := blockOn(t, params, funding, 2, params.BaseSubsidy, anyoneCanSpend, spend)

	err := v.Verify(VerificationFull, NewIndexedBlock(b2))
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Kind != TxErrMaturity {
		t.Fatalf("err = %v, want TransactionError{Maturity}", err)
	}
}

// TestIntraBlockDependency: with maturity 1, a block carrying tx1
// spending a matured coinbase and tx2 spending tx1's output, in that
// order, verifies cleanly.
func TestIntraBlockDependency(t *testing.T) {
	params := testParams()
	params.CoinbaseMaturity = 1
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	funding := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
	store.insert(funding)

	tx1 := spendTx(funding.Transactions[0].TxHash(), 0, params.BaseSubsidy, anyoneCanSpend)
	tx2 := spendTx(tx1.TxHash(), 0, params.BaseSubsidy, anyoneCanSpend)
	b2 := blockOn(t, params, funding, 2, params.BaseSubsidy, anyoneCanSpend, tx1, tx2)

	if err := v.Verify(VerificationFull, NewIndexedBlock(b2)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// TestInputOverspend: a transaction whose outputs exceed its inputs is
// rejected with the Overspend kind.
func TestInputOverspend(t *testing.T) {
	params := testParams()
	params.CoinbaseMaturity = 1
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	funding := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
	store.insert(funding)

	spend := spendTx(funding.Transactions[0].TxHash(), 0, params.BaseSubsidy+1, anyoneCanSpend)
	b2 := blockOn(t, params, funding, 2, params.BaseSubsidy, anyoneCanSpend, spend)

	err := v.Verify(VerificationFull, NewIndexedBlock(b2))
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Kind != TxErrOverspend {
		t.Fatalf("err = %v, want TransactionError{Overspend}", err)
	}
}

// TestFeesFlowToCoinbase: a coinbase may claim the subsidy plus the fees
// its block's transactions pay, and not one atom more.
func TestFeesFlowToCoinbase(t *testing.T) {
	params := testParams()
	params.CoinbaseMaturity = 1
	const fee = 1_000_000

	build := func(claim int64) (*Verifier, *wire.MsgBlock) {
		store := newMemStore(params.GenesisBlock)
		v := newTestVerifier(store, params)
		funding := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy, anyoneCanSpend)
		store.insert(funding)
		spend := spendTx(funding.Transactions[0].TxHash(), 0, params.BaseSubsidy-fee, anyoneCanSpend)
		return v, blockOn(t, params, funding, 2, claim, anyoneCanSpend, spend)
	}

	v, ok := build(params.BaseSubsidy + fee)
	if err := v.Verify(VerificationFull, NewIndexedBlock(ok)); err != nil {
		t.Fatalf("claiming subsidy+fees: %v", err)
	}

	v, over := build(params.BaseSubsidy + fee + 1)
	err := v.Verify(VerificationFull, NewIndexedBlock(over))
	var overspend *CoinbaseOverspendError
	if !errors.As(err, &overspend) {
		t.Fatalf("claiming one atom over: err = %v, want CoinbaseOverspendError", err)
	}
}

// TestVerificationLevels: header-only verification skips transaction
// context entirely, and none skips everything.
func TestVerificationLevels(t *testing.T) {
	params := testParams()
	store := newMemStore(params.GenesisBlock)
	v := newTestVerifier(store, params)

	// A coinbase overspend is invisible below full verification.
	b1 := blockOn(t, params, params.GenesisBlock, 1, params.BaseSubsidy+1, anyoneCanSpend)
	if err := v.Verify(VerificationNone, NewIndexedBlock(b1)); err != nil {
		t.Fatalf("none level: %v", err)
	}
	if err := v.Verify(VerificationHeader, NewIndexedBlock(b1)); err != nil {
		t.Fatalf("header level: %v", err)
	}

	if err := v.Verify(VerificationFull, NewIndexedBlock(b1)); err == nil {
		t.Fatal("full level accepted a coinbase overspend")
	}
}
