// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netsync drives the node toward the network's best chain: it
// accepts blocks and transactions surfaced by peers, runs them through the
// verifier, commits accepted blocks to the chain database, and publishes
// progress to registered listeners (the block-notify hook among them).
package netsync

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/corvidutil"
	"github.com/corvid-chain/corvidd/mempool"
	"github.com/corvid-chain/corvidd/wire"
)

// minRelayTxFee is the minimum fee a relayed transaction must pay to be
// admitted to the pool, keeping zero-fee spam from consuming mempool
// space.
const minRelayTxFee = corvidutil.Amount(10000)

// maxOrphanBlocks bounds how many parentless blocks are remembered while
// their ancestry downloads.
const maxOrphanBlocks = 512

// defaultQueueDepth is the backpressure bound on the inbound
// block/transaction queue; peers feeding blocks faster than the verifier
// drains them block on QueueBlock.
const defaultQueueDepth = 128

// BlockVerifier is the consensus-validation surface the manager drives,
// implemented by blockchain.Verifier.
type BlockVerifier interface {
	Verify(level blockchain.VerificationLevel, block *blockchain.IndexedBlock) error
	VerifyMempoolTransaction(tx *blockchain.IndexedTransaction, height int64, pool blockchain.TransactionOutputProvider) error
}

// poolOutputs adapts the mempool to blockchain.TransactionOutputProvider
// so candidate transactions may spend outputs of unconfirmed,
// pool-resident parents.
type poolOutputs struct {
	pool *mempool.Pool
}

// Output implements blockchain.TransactionOutputProvider.
func (p poolOutputs) Output(prevOut wire.OutPoint) (*wire.TxOut, bool) {
	tx, ok := p.pool.Get(prevOut.Hash)
	if !ok || int(prevOut.Index) >= len(tx.TxOut) {
		return nil, false
	}
	return tx.TxOut[prevOut.Index], true
}

// Config collects the collaborators a SyncManager needs.
type Config struct {
	Chain    Chain
	Verifier BlockVerifier
	Mempool  *mempool.Pool

	// Outputs resolves previous outputs for mempool fee computation,
	// normally the chain database.
	Outputs blockchain.TransactionOutputProvider

	// Level is the configured verification level for incoming blocks.
	Level blockchain.VerificationLevel

	// VerificationEdge is the height below which Level degrades from
	// full to header-only, allowing fast initial sync. Zero disables the
	// degradation.
	VerificationEdge int64

	// RequestParent, when set, is invoked with the hash of a missing
	// parent so the peer layer can request it.
	RequestParent func(hash chainhash.Hash)

	// QueueDepth overrides the inbound queue bound; zero means the
	// default.
	QueueDepth int
}

// blockMsg and txMsg are the handler queue's inbound shapes.
type blockMsg struct {
	block *wire.MsgBlock
	peer  string
	reply chan error
}

type txMsg struct {
	tx    *wire.MsgTx
	peer  string
	reply chan error
}

type peerHeightMsg struct {
	peer   string
	height int64
}

type peerGoneMsg struct {
	peer string
}

// SyncManager serializes all chain mutation onto a single handler
// goroutine: the single-writer discipline for the best-block pointer.
type SyncManager struct {
	cfg Config

	msgChan chan interface{}
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	listeners []SyncListener

	// Handler-goroutine state, unguarded by design.
	orphans     map[chainhash.Hash][]*wire.MsgBlock
	orphanCount int
	peerHeights map[string]int64
	syncing     bool
}

// New constructs a SyncManager over cfg.
func New(cfg *Config) *SyncManager {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &SyncManager{
		cfg:         *cfg,
		msgChan:     make(chan interface{}, depth),
		quit:        make(chan struct{}),
		orphans:     make(map[chainhash.Hash][]*wire.MsgBlock),
		peerHeights: make(map[string]int64),
	}
}

// RegisterSyncListener adds l to the notification set. Listeners must be
// registered before Start.
func (sm *SyncManager) RegisterSyncListener(l SyncListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, l)
}

// Start launches the handler goroutine.
func (sm *SyncManager) Start() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.started {
		return
	}
	sm.started = true
	sm.wg.Add(1)
	go sm.handler()
}

// Stop drains and halts the handler.
func (sm *SyncManager) Stop() {
	sm.mu.Lock()
	if !sm.started {
		sm.mu.Unlock()
		return
	}
	sm.started = false
	sm.mu.Unlock()
	close(sm.quit)
	sm.wg.Wait()
}

// QueueBlock submits a peer-supplied block, blocking when the verifier
// queue is at its backpressure bound.
func (sm *SyncManager) QueueBlock(block *wire.MsgBlock, peer string) {
	select {
	case sm.msgChan <- blockMsg{block: block, peer: peer}:
	case <-sm.quit:
	}
}

// SubmitBlock runs a block through verification and commit synchronously,
// returning the acceptance error. It is the RPC path (generate,
// submitblock).
func (sm *SyncManager) SubmitBlock(block *wire.MsgBlock) error {
	reply := make(chan error, 1)
	select {
	case sm.msgChan <- blockMsg{block: block, peer: "rpc", reply: reply}:
	case <-sm.quit:
		return errors.New("netsync: manager stopped")
	}
	select {
	case err := <-reply:
		return err
	case <-sm.quit:
		return errors.New("netsync: manager stopped")
	}
}

// QueueTx submits a peer-supplied transaction for mempool acceptance.
func (sm *SyncManager) QueueTx(tx *wire.MsgTx, peer string) {
	select {
	case sm.msgChan <- txMsg{tx: tx, peer: peer}:
	case <-sm.quit:
	}
}

// SubmitTx runs mempool acceptance synchronously, the sendrawtransaction
// path.
func (sm *SyncManager) SubmitTx(tx *wire.MsgTx) error {
	reply := make(chan error, 1)
	select {
	case sm.msgChan <- txMsg{tx: tx, peer: "rpc", reply: reply}:
	case <-sm.quit:
		return errors.New("netsync: manager stopped")
	}
	select {
	case err := <-reply:
		return err
	case <-sm.quit:
		return errors.New("netsync: manager stopped")
	}
}

// UpdatePeerHeight records a peer's advertised best height, driving the
// bulk-sync state.
func (sm *SyncManager) UpdatePeerHeight(peer string, height int64) {
	select {
	case sm.msgChan <- peerHeightMsg{peer: peer, height: height}:
	case <-sm.quit:
	}
}

// PeerGone forgets a disconnected peer's advertised height.
func (sm *SyncManager) PeerGone(peer string) {
	select {
	case sm.msgChan <- peerGoneMsg{peer: peer}:
	case <-sm.quit:
	}
}

// IsSyncing reports whether the manager believes it is in bulk initial
// sync.
func (sm *SyncManager) IsSyncing() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.syncing
}

func (sm *SyncManager) handler() {
	defer sm.wg.Done()
	for {
		select {
		case m := <-sm.msgChan:
			switch msg := m.(type) {
			case blockMsg:
				err := sm.handleBlock(msg.block, msg.peer)
				if msg.reply != nil {
					msg.reply <- err
				}
			case txMsg:
				err := sm.handleTx(msg.tx, msg.peer)
				if msg.reply != nil {
					msg.reply <- err
				}
			case peerHeightMsg:
				sm.peerHeights[msg.peer] = msg.height
				sm.updateSyncState()
			case peerGoneMsg:
				delete(sm.peerHeights, msg.peer)
				sm.updateSyncState()
			}
		case <-sm.quit:
			return
		}
	}
}

// handleBlock verifies and commits one block, then drains any orphans it
// reconnects.
func (sm *SyncManager) handleBlock(block *wire.MsgBlock, peer string) error {
	err := sm.acceptBlock(block, peer)
	if err != nil {
		return err
	}

	// Accepting a block may make remembered orphans connectable.
	next := []chainhash.Hash{block.BlockHash()}
	for len(next) > 0 {
		parent := next[0]
		next = next[1:]
		children := sm.orphans[parent]
		if len(children) == 0 {
			continue
		}
		delete(sm.orphans, parent)
		sm.orphanCount -= len(children)
		for _, child := range children {
			if err := sm.acceptBlock(child, peer); err != nil {
				log.Debugf("Orphan %s still rejected: %v", child.BlockHash(), err)
				continue
			}
			next = append(next, child.BlockHash())
		}
	}
	return nil
}

func (sm *SyncManager) acceptBlock(block *wire.MsgBlock, peer string) error {
	hash := block.BlockHash()
	prev := block.Header.PrevBlock

	if _, ok := sm.cfg.Chain.BlockHeight(hash); ok {
		return nil
	}

	parentHeight, parentKnown := sm.cfg.Chain.BlockHeight(prev)
	if !parentKnown {
		sm.addOrphan(block, peer)
		return &blockchain.DatabaseError{Kind: blockchain.ErrUnknownParent}
	}
	height := parentHeight + 1

	level := sm.cfg.Level
	if sm.cfg.VerificationEdge > 0 && height < sm.cfg.VerificationEdge &&
		level == blockchain.VerificationFull {
		level = blockchain.VerificationHeader
	}

	ib := blockchain.NewIndexedBlock(block)
	if err := sm.cfg.Verifier.Verify(level, ib); err != nil {
		if errors.Is(err, blockchain.ErrAlreadyKnown) {
			return nil
		}
		log.Warnf("Rejected block %s from %s: %v", hash, peer, err)
		return err
	}

	_, tipHeight, tipWork, err := sm.cfg.Chain.Tip()
	if err != nil {
		return err
	}
	work := new(big.Int).Add(tipWork, blockchain.CalcWork(block.Header.Bits))
	if err := sm.cfg.Chain.InsertBlock(block, height, work); err != nil {
		return fmt.Errorf("netsync: committing block %s: %w", hash, err)
	}
	log.Debugf("Accepted block %s at height %d from %s", hash, height, peer)

	// Confirmed transactions leave the mempool.
	if sm.cfg.Mempool != nil {
		for _, tx := range block.Transactions {
			sm.cfg.Mempool.Remove(tx.TxHash())
		}
	}

	if height > tipHeight {
		sm.updateSyncState()
		if !sm.syncing {
			sm.notifyBestBlock(hash)
		}
	}
	return nil
}

func (sm *SyncManager) addOrphan(block *wire.MsgBlock, peer string) {
	if sm.orphanCount >= maxOrphanBlocks {
		log.Debugf("Orphan pool full; dropping block %s from %s", block.BlockHash(), peer)
		return
	}
	prev := block.Header.PrevBlock
	sm.orphans[prev] = append(sm.orphans[prev], block)
	sm.orphanCount++
	log.Debugf("Orphaned block %s (missing parent %s) from %s", block.BlockHash(), prev, peer)
	if sm.cfg.RequestParent != nil {
		sm.cfg.RequestParent(prev)
	}
}

// handleTx runs full mempool acceptance for one transaction.
func (sm *SyncManager) handleTx(tx *wire.MsgTx, peer string) error {
	if sm.cfg.Mempool == nil {
		return errors.New("netsync: no mempool configured")
	}
	hash := tx.TxHash()
	if sm.cfg.Mempool.Contains(hash) {
		return nil
	}

	// Non-final transactions have no chain context to become valid in.
	_, tipHeight, _, err := sm.cfg.Chain.Tip()
	if err != nil {
		return err
	}
	itx := blockchain.NewIndexedTransaction(tx)
	if err := sm.cfg.Verifier.VerifyMempoolTransaction(itx, tipHeight+1, poolOutputs{pool: sm.cfg.Mempool}); err != nil {
		log.Debugf("Rejected transaction %s from %s: %v", hash, peer, err)
		return err
	}

	fee, err := sm.feeCalculator()(tx)
	if err != nil {
		return err
	}
	if corvidutil.Amount(fee) < minRelayTxFee {
		log.Debugf("Rejected transaction %s from %s: fee %v below relay minimum %v",
			hash, peer, corvidutil.Amount(fee), minRelayTxFee)
		return fmt.Errorf("netsync: fee %v below minimum relay fee %v",
			corvidutil.Amount(fee), minRelayTxFee)
	}

	err = sm.cfg.Mempool.InsertVerified(tx, func(*wire.MsgTx) (int64, error) { return fee, nil })
	if err != nil {
		return err
	}
	log.Debugf("Accepted transaction %s from %s", hash, peer)
	return nil
}

// feeCalculator resolves each input against the chain's output index or
// the pool itself, returning inputs minus outputs.
func (sm *SyncManager) feeCalculator() mempool.FeeCalculator {
	return func(tx *wire.MsgTx) (int64, error) {
		var in, out int64
		for _, txIn := range tx.TxIn {
			prev, ok := sm.cfg.Outputs.Output(txIn.PreviousOutPoint)
			if !ok {
				pooled, pok := sm.cfg.Mempool.Get(txIn.PreviousOutPoint.Hash)
				if !pok || int(txIn.PreviousOutPoint.Index) >= len(pooled.TxOut) {
					return 0, fmt.Errorf("missing input %v", txIn.PreviousOutPoint)
				}
				prev = pooled.TxOut[txIn.PreviousOutPoint.Index]
			}
			in += prev.Value
		}
		for _, txOut := range tx.TxOut {
			out += txOut.Value
		}
		return in - out, nil
	}
}

// updateSyncState recomputes bulk-sync mode from the best advertised peer
// height and notifies listeners on a transition.
func (sm *SyncManager) updateSyncState() {
	_, tipHeight, _, err := sm.cfg.Chain.Tip()
	if err != nil {
		return
	}
	var bestPeer int64 = -1
	for _, h := range sm.peerHeights {
		if h > bestPeer {
			bestPeer = h
		}
	}
	nowSyncing := bestPeer > tipHeight

	sm.mu.Lock()
	switched := nowSyncing != sm.syncing
	sm.syncing = nowSyncing
	listeners := sm.listeners
	sm.mu.Unlock()

	if switched {
		log.Infof("Synchronization state switched: syncing=%v (tip %d, best peer %d)",
			nowSyncing, tipHeight, bestPeer)
		for _, l := range listeners {
			l.SynchronizationStateSwitched(nowSyncing)
		}
	}
}

func (sm *SyncManager) notifyBestBlock(hash chainhash.Hash) {
	sm.mu.Lock()
	listeners := sm.listeners
	sm.mu.Unlock()
	for _, l := range listeners {
		l.BestStorageBlockInserted(hash)
	}
}

// LocatorHashes returns a block locator for the current chain: the tip,
// then exponentially sparser ancestors back to genesis, the shape a
// getheaders request carries.
func (sm *SyncManager) LocatorHashes(hashAt func(height int64) (chainhash.Hash, bool)) []chainhash.Hash {
	_, tipHeight, _, err := sm.cfg.Chain.Tip()
	if err != nil || tipHeight < 0 {
		return nil
	}
	var locator []chainhash.Hash
	step := int64(1)
	for height := tipHeight; height >= 0; height -= step {
		if h, ok := hashAt(height); ok {
			locator = append(locator, h)
		}
		if len(locator) > 10 {
			step *= 2
		}
		if height == 0 {
			break
		}
		if height-step < 0 {
			// Land on genesis rather than stepping past it.
			step = height
		}
	}
	return locator
}
