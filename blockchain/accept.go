// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/txscript"
	"github.com/corvid-chain/corvidd/wire"
)

// ChainAcceptor runs full per-transaction acceptance for every transaction
// in a block being added at blockHeight, in a fixed order: per input,
// existence, then coinbase maturity, then script execution; then the
// transaction's sigop limit, then its fee/value balance.
type ChainAcceptor struct {
	block       *IndexedBlock
	blockHeight int64
	params      *chaincfg.Params
	outputs     TransactionOutputProvider
	meta        TransactionMetaProvider
	headers     HeaderProvider
	checker     txscript.SignatureChecker
	level       VerificationLevel

	// scriptFlags is derived once per block from the deployment state
	// machine at blockHeight.
	scriptFlags txscript.ScriptFlags
}

// NewChainAcceptor constructs a ChainAcceptor for block, to be inserted at
// blockHeight, resolving chain context through the given providers (the
// chain database, or a fork view overlaying it).
func NewChainAcceptor(
	block *IndexedBlock,
	blockHeight int64,
	params *chaincfg.Params,
	outputs TransactionOutputProvider,
	meta TransactionMetaProvider,
	headers HeaderProvider,
	checker txscript.SignatureChecker,
	level VerificationLevel,
) *ChainAcceptor {
	return &ChainAcceptor{
		block:       block,
		blockHeight: blockHeight,
		params:      params,
		outputs:     outputs,
		meta:        meta,
		headers:     headers,
		checker:     checker,
		level:       level,
	}
}

// Check runs acceptance over the whole block: per-transaction checks for
// every transaction, then the block-wide sigop cap and the coinbase
// overspend check, which depend on every transaction's fee having already
// been computed.
func (a *ChainAcceptor) Check() error {
	if a.level == VerificationNone {
		return nil
	}

	// The synthetic single-transaction block the mempool path builds has
	// no real header; header-context checks only apply to real blocks.
	if a.block.Raw != nil {
		if err := a.checkDifficulty(); err != nil {
			return err
		}
	}
	a.scriptFlags = a.deploymentFlags()

	var totalFees int64
	var totalSigOps int
	spent := newBlockSpendSet()

	for i, itx := range a.block.Transactions {
		isCoinbase := i == 0
		fee, sigOps, err := a.checkTransaction(i, itx, isCoinbase, spent)
		if err != nil {
			return err
		}
		if !isCoinbase {
			totalFees += fee
		}
		totalSigOps += sigOps
	}

	if totalSigOps > maxBlockSigOps {
		return ErrMaximumSigops
	}

	return a.checkCoinbaseValue(totalFees)
}

// maxBlockSigOps bounds the total signature operations a block may carry,
// the classic Bitcoin-family constant (20000 for a 1MB block, scaled
// linearly so larger-block networks keep the same density).
const maxBlockSigOpsPerByte = 20000.0 / 1_000_000.0

var maxBlockSigOps = int(4_000_000 * maxBlockSigOpsPerByte)

// checkTransaction runs the per-transaction acceptance order: per input,
// existence, then maturity, then script execution (if VerificationLevel is
// Full); then the transaction's own sigop count and fee accounting.
func (a *ChainAcceptor) checkTransaction(index int, itx *IndexedTransaction, isCoinbase bool, spent *blockSpendSet) (fee int64, sigOps int, err error) {
	tx := itx.Tx

	if isCoinbase {
		if !tx.IsCoinBase() {
			return 0, 0, &TransactionError{Index: index, Kind: TxErrInput}
		}
		sigOps += txscript.CountSigOps(tx.TxIn[0].SignatureScript)
		for _, out := range tx.TxOut {
			sigOps += txscript.CountSigOps(out.PkScript)
		}
		return 0, sigOps, nil
	}

	var totalIn, totalOut int64
	for j, in := range tx.TxIn {
		// Signature scripts count toward the sigop totals the same as
		// output scripts; an attacker controls both.
		sigOps += txscript.CountSigOps(in.SignatureScript)

		out, height, isCoinbaseOut, ok := a.resolveOutput(in.PreviousOutPoint, spent)
		if !ok {
			return 0, 0, &TransactionError{Index: index, Kind: TxErrInput}
		}

		if isCoinbaseOut {
			if a.blockHeight-height < a.params.CoinbaseMaturity {
				return 0, 0, &TransactionError{Index: index, Kind: TxErrMaturity}
			}
		}

		if a.level == VerificationFull {
			engine := txscript.NewEngine(a.checker, tx, j, a.scriptFlags)
			ok, execErr := engine.Execute(out.PkScript)
			if execErr != nil {
				return 0, 0, execErr
			}
			if !ok {
				return 0, 0, &TransactionError{Index: index, Kind: TxErrSignatureInvalid}
			}
		}

		totalIn += out.Value
		spent.markSpent(in.PreviousOutPoint)
	}

	for _, out := range tx.TxOut {
		totalOut += out.Value
		sigOps += txscript.CountSigOps(out.PkScript)
	}

	if sigOps > maxTxSigOps {
		return 0, 0, &TransactionError{Index: index, Kind: TxErrMaximumSigops}
	}
	if totalOut > totalIn {
		return 0, 0, &TransactionError{Index: index, Kind: TxErrOverspend}
	}

	// Record this transaction's own outputs so a later transaction in the
	// same block may spend them.
	spent.addBlockOutputs(tx, a.blockHeight, false)

	return totalIn - totalOut, sigOps, nil
}

// maxTxSigOps bounds signature operations within a single transaction.
const maxTxSigOps = 4000

// deploymentFlags maps the active soft-fork deployments at this block's
// height to the script flags the execution engine consumes.
func (a *ChainAcceptor) deploymentFlags() txscript.ScriptFlags {
	if a.headers == nil {
		return 0
	}
	deps := NewBlockDeployments(a.blockHeight, a.headers, a.params)
	var flags txscript.ScriptFlags
	if deps.State(chaincfg.DeploymentCSV) == StateActive {
		flags |= txscript.ScriptVerifyCSV
	}
	if deps.State(chaincfg.DeploymentSegwit) == StateActive {
		flags |= txscript.ScriptVerifyWitness | txscript.ScriptVerifyStrictEncoding
	}
	return flags
}

// checkDifficulty verifies the block's declared Bits equal the difficulty
// its ancestry requires.
func (a *ChainAcceptor) checkDifficulty() error {
	if a.headers == nil {
		return nil
	}
	parent, ok := a.headers.BlockHeaderByHeight(a.blockHeight - 1)
	if !ok {
		return nil
	}

	firstTime := parent.Timestamp
	if blocksPerWindow := int64(a.params.TargetTimespan / a.params.TargetTimePerBlock); blocksPerWindow > 0 {
		windowStart := a.blockHeight - blocksPerWindow
		if windowStart < 0 {
			windowStart = 0
		}
		if first, ok := a.headers.BlockHeaderByHeight(windowStart); ok {
			firstTime = first.Timestamp
		}
	}

	required := CalcNextRequiredDifficulty(a.blockHeight-1, parent.Bits, firstTime, parent.Timestamp, a.params)
	got := a.block.Header.Header.Bits
	if got != required {
		// Networks with difficulty reduction also accept the minimum.
		if a.params.ReduceMinDifficulty && got == chaincfg.BigToCompact(a.params.PowLimit) {
			return nil
		}
		return fmt.Errorf("block difficulty %08x does not match required %08x", got, required)
	}
	return nil
}

// resolveOutput looks up prevOut first among this block's own earlier
// transactions, then falls back to the store/fork-view TransactionOutputProvider.
func (a *ChainAcceptor) resolveOutput(prevOut wire.OutPoint, spent *blockSpendSet) (out *wire.TxOut, height int64, isCoinbase, ok bool) {
	if o, h, cb, found := spent.lookup(prevOut); found {
		return o, h, cb, true
	}
	if spent.isSpent(prevOut) {
		return nil, 0, false, false
	}
	o, found := a.outputs.Output(prevOut)
	if !found {
		return nil, 0, false, false
	}
	h, cb, metaOK := a.meta.TransactionHeight(prevOut.Hash)
	if !metaOK {
		return o, 0, false, true
	}
	return o, h, cb, true
}

func (a *ChainAcceptor) checkCoinbaseValue(fees int64) error {
	coinbase := a.block.Transactions[0].Tx
	var coinbaseOut int64
	for _, out := range coinbase.TxOut {
		coinbaseOut += out.Value
	}

	maxAllowed := CalcBlockSubsidy(a.blockHeight, a.params) + fees
	if coinbaseOut > maxAllowed {
		return &CoinbaseOverspendError{ExpectedMax: maxAllowed, Actual: coinbaseOut}
	}
	return nil
}

// blockSpendSet tracks, within the scope of a single block's acceptance,
// which outputs earlier transactions in this same block created (so later
// transactions may spend them) and which prior-block outputs have already
// been spent by an earlier transaction in this block (so a double-spend
// within the block is rejected instead of silently re-reading the store).
type blockSpendSet struct {
	blockOutputs map[wire.OutPoint]blockOutputEntry
	spentPrior   map[wire.OutPoint]struct{}
}

type blockOutputEntry struct {
	out        *wire.TxOut
	height     int64
	isCoinbase bool
}

func newBlockSpendSet() *blockSpendSet {
	return &blockSpendSet{
		blockOutputs: make(map[wire.OutPoint]blockOutputEntry),
		spentPrior:   make(map[wire.OutPoint]struct{}),
	}
}

func (s *blockSpendSet) addBlockOutputs(tx *wire.MsgTx, height int64, isCoinbase bool) {
	hash := tx.TxHash()
	for i, out := range tx.TxOut {
		s.blockOutputs[wire.OutPoint{Hash: hash, Index: uint32(i)}] = blockOutputEntry{
			out:        out,
			height:     height,
			isCoinbase: isCoinbase,
		}
	}
}

func (s *blockSpendSet) lookup(prevOut wire.OutPoint) (*wire.TxOut, int64, bool, bool) {
	entry, ok := s.blockOutputs[prevOut]
	if !ok {
		return nil, 0, false, false
	}
	return entry.out, entry.height, entry.isCoinbase, true
}

func (s *blockSpendSet) markSpent(prevOut wire.OutPoint) {
	delete(s.blockOutputs, prevOut)
	s.spentPrior[prevOut] = struct{}{}
}

func (s *blockSpendSet) isSpent(prevOut wire.OutPoint) bool {
	_, ok := s.spentPrior[prevOut]
	return ok
}
