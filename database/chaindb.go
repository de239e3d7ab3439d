// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"

	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/wire"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Key prefixes for the leveldb index. The paged store (bc.<n>.page) holds block
// blobs; the leveldb instance (opened under <data-dir>/<network>/index/)
// holds everything addressed by hash, height, or outpoint.
const (
	prefixHeaderByHash = 'h' // hash(32)     -> headerRecord
	prefixHashByHeight = 'n' // height(8 BE) -> hash(32)
	prefixUTXO         = 'u' // outpoint(36) -> utxoRecord
	prefixTxMeta       = 't' // txhash(32)   -> txMetaRecord
	keyTip             = "tip"
)

// headerRecord is the on-disk shape of a hash's chain position: its
// height and the PRef its full block blob was written at.
type headerRecord struct {
	Height int64
	Blob   PRef
}

func (r headerRecord) marshal() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Height))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.Blob))
	return buf
}

func unmarshalHeaderRecord(b []byte) (headerRecord, error) {
	if len(b) != 16 {
		return headerRecord{}, fmt.Errorf("corrupt header record")
	}
	return headerRecord{
		Height: int64(binary.BigEndian.Uint64(b[0:8])),
		Blob:   PRef(binary.BigEndian.Uint64(b[8:16])),
	}, nil
}

// utxoRecord is the on-disk shape of a single unspent output.
type utxoRecord struct {
	Value      int64
	Height     int64
	IsCoinbase bool
	PkScript   []byte
}

func (r utxoRecord) marshal() []byte {
	buf := make([]byte, 17+len(r.PkScript))
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Value))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.Height))
	if r.IsCoinbase {
		buf[16] = 1
	}
	copy(buf[17:], r.PkScript)
	return buf
}

func unmarshalUTXORecord(b []byte) (utxoRecord, error) {
	if len(b) < 17 {
		return utxoRecord{}, fmt.Errorf("corrupt utxo record")
	}
	return utxoRecord{
		Value:      int64(binary.BigEndian.Uint64(b[0:8])),
		Height:     int64(binary.BigEndian.Uint64(b[8:16])),
		IsCoinbase: b[16] != 0,
		PkScript:   append([]byte(nil), b[17:]...),
	}, nil
}

// txMetaRecord records which block a transaction was mined in.
type txMetaRecord struct {
	Height     int64
	IsCoinbase bool
	BlockHash  chainhash.Hash
}

func (r txMetaRecord) marshal() []byte {
	buf := make([]byte, 9+chainhash.HashSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Height))
	if r.IsCoinbase {
		buf[8] = 1
	}
	copy(buf[9:], r.BlockHash[:])
	return buf
}

func unmarshalTxMetaRecord(b []byte) (txMetaRecord, error) {
	if len(b) != 9+chainhash.HashSize {
		return txMetaRecord{}, fmt.Errorf("corrupt tx meta record")
	}
	var r txMetaRecord
	r.Height = int64(binary.BigEndian.Uint64(b[0:8]))
	r.IsCoinbase = b[8] != 0
	copy(r.BlockHash[:], b[9:])
	return r, nil
}

// tipRecord is the on-disk shape of the chain's best-block pointer.
type tipRecord struct {
	Hash      chainhash.Hash
	Height    int64
	ChainWork *big.Int
}

func (r tipRecord) marshal() []byte {
	work := r.ChainWork.Bytes()
	buf := make([]byte, chainhash.HashSize+8+2+len(work))
	copy(buf, r.Hash[:])
	binary.BigEndian.PutUint64(buf[chainhash.HashSize:chainhash.HashSize+8], uint64(r.Height))
	binary.BigEndian.PutUint16(buf[chainhash.HashSize+8:chainhash.HashSize+10], uint16(len(work)))
	copy(buf[chainhash.HashSize+10:], work)
	return buf
}

func unmarshalTipRecord(b []byte) (tipRecord, error) {
	if len(b) < chainhash.HashSize+10 {
		return tipRecord{}, fmt.Errorf("corrupt tip record")
	}
	var r tipRecord
	copy(r.Hash[:], b[:chainhash.HashSize])
	r.Height = int64(binary.BigEndian.Uint64(b[chainhash.HashSize : chainhash.HashSize+8]))
	workLen := binary.BigEndian.Uint16(b[chainhash.HashSize+8 : chainhash.HashSize+10])
	r.ChainWork = new(big.Int).SetBytes(b[chainhash.HashSize+10 : chainhash.HashSize+10+int(workLen)])
	return r, nil
}

func outpointKey(op wire.OutPoint) []byte {
	buf := make([]byte, 1+chainhash.HashSize+4)
	buf[0] = prefixUTXO
	copy(buf[1:], op.Hash[:])
	binary.BigEndian.PutUint32(buf[1+chainhash.HashSize:], op.Index)
	return buf
}

func hashKey(prefix byte, hash chainhash.Hash) []byte {
	buf := make([]byte, 1+chainhash.HashSize)
	buf[0] = prefix
	copy(buf[1:], hash[:])
	return buf
}

func heightKey(height int64) []byte {
	buf := make([]byte, 9)
	buf[0] = prefixHashByHeight
	binary.BigEndian.PutUint64(buf[1:], uint64(height))
	return buf
}

// ChainDB layers the block/header/transaction indices over a PagedStore
// of raw block blobs. It is the production implementation of
// blockchain.Store: HeaderProvider, TransactionOutputProvider,
// TransactionMetaProvider, and BlockOrigin classification.
type ChainDB struct {
	// mu enforces the single-writer discipline: readers may run
	// concurrently, but InitGenesis, InsertBlock and Close hold the write
	// lock for their whole duration.
	mu     sync.RWMutex
	blocks *PagedStore
	index  *leveldb.DB
}

// Open opens (creating if necessary) a ChainDB rooted at dataDir, with
// dbCacheMB sized as the CLI's --db-cache flag requests.
func Open(dataDir string, dbCacheMB int) (*ChainDB, error) {
	blocks, err := OpenPagedStore(dataDir, "bc")
	if err != nil {
		return nil, err
	}
	opts := &opt.Options{BlockCacheCapacity: dbCacheMB * opt.MiB}
	idx, err := leveldb.OpenFile(filepath.Join(dataDir, "index"), opts)
	if err != nil {
		blocks.Shutdown()
		return nil, err
	}
	return &ChainDB{blocks: blocks, index: idx}, nil
}

// Close flushes and releases every resource the database holds.
func (db *ChainDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.blocks.Shutdown(); err != nil {
		return err
	}
	return db.index.Close()
}

// InitGenesis seeds an empty database with the network's genesis block,
// a no-op if the database already has a tip.
func (db *ChainDB) InitGenesis(genesis *wire.MsgBlock) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.index.Get([]byte(keyTip), nil); err == nil {
		return nil
	} else if err != leveldb.ErrNotFound {
		return err
	}

	return db.insertLocked(genesis, 0, big.NewInt(0))
}

// Tip returns the database's current best-block pointer, seeded by
// InitGenesis and moved only by InsertBlock.
func (db *ChainDB) Tip() (chainhash.Hash, int64, *big.Int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.tipLocked()
}

func (db *ChainDB) tipLocked() (chainhash.Hash, int64, *big.Int, error) {
	raw, err := db.index.Get([]byte(keyTip), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return chainhash.Hash{}, -1, big.NewInt(0), nil
		}
		return chainhash.Hash{}, 0, nil, err
	}
	rec, err := unmarshalTipRecord(raw)
	if err != nil {
		return chainhash.Hash{}, 0, nil, err
	}
	return rec.Hash, rec.Height, rec.ChainWork, nil
}

// BlockHash returns the hash of the block at height.
func (db *ChainDB) BlockHash(height int64) (chainhash.Hash, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.blockHashLocked(height)
}

func (db *ChainDB) blockHashLocked(height int64) (chainhash.Hash, bool) {
	raw, err := db.index.Get(heightKey(height), nil)
	if err != nil {
		return chainhash.Hash{}, false
	}
	var h chainhash.Hash
	copy(h[:], raw)
	return h, true
}

// BlockHeader returns the header for the block identified by hash.
func (db *ChainDB) BlockHeader(hash chainhash.Hash) (*wire.BlockHeader, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	block, ok := db.blockLocked(hash)
	if !ok {
		return nil, false
	}
	return &block.Header, true
}

func (db *ChainDB) blockLocked(hash chainhash.Hash) (*wire.MsgBlock, bool) {
	raw, err := db.index.Get(hashKey(prefixHeaderByHash, hash), nil)
	if err != nil {
		return nil, false
	}
	rec, err := unmarshalHeaderRecord(raw)
	if err != nil {
		return nil, false
	}
	blob, err := db.blocks.ReadBlob(rec.Blob)
	if err != nil {
		return nil, false
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(blob)); err != nil {
		return nil, false
	}
	return block, true
}

// Block returns the full block identified by hash.
func (db *ChainDB) Block(hash chainhash.Hash) (*wire.MsgBlock, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.blockLocked(hash)
}

// --- blockchain.HeaderProvider ---

// BlockHeight returns the height of the block identified by hash.
func (db *ChainDB) BlockHeight(hash chainhash.Hash) (int64, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	raw, err := db.index.Get(hashKey(prefixHeaderByHash, hash), nil)
	if err != nil {
		return 0, false
	}
	rec, err := unmarshalHeaderRecord(raw)
	if err != nil {
		return 0, false
	}
	return rec.Height, true
}

// BlockHeaderByHeight returns the header stored at height.
func (db *ChainDB) BlockHeaderByHeight(height int64) (*wire.BlockHeader, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	hash, ok := db.blockHashLocked(height)
	if !ok {
		return nil, false
	}
	block, ok := db.blockLocked(hash)
	if !ok {
		return nil, false
	}
	return &block.Header, true
}

// BestHeight returns the height of the current best block.
func (db *ChainDB) BestHeight() int64 {
	_, height, _, _ := db.Tip()
	return height
}

// --- blockchain.TransactionOutputProvider ---

// Output returns the output referenced by prevOut, if it exists and is
// still unspent on the canonical chain.
func (db *ChainDB) Output(prevOut wire.OutPoint) (*wire.TxOut, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.outputLocked(prevOut)
}

func (db *ChainDB) outputLocked(prevOut wire.OutPoint) (*wire.TxOut, bool) {
	raw, err := db.index.Get(outpointKey(prevOut), nil)
	if err != nil {
		return nil, false
	}
	rec, err := unmarshalUTXORecord(raw)
	if err != nil {
		return nil, false
	}
	return &wire.TxOut{Value: rec.Value, PkScript: rec.PkScript}, true
}

// --- blockchain.TransactionMetaProvider ---

// TransactionHeight returns the height and coinbase flag of txHash's
// containing block, used to enforce coinbase maturity.
func (db *ChainDB) TransactionHeight(txHash chainhash.Hash) (int64, bool, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	raw, err := db.index.Get(hashKey(prefixTxMeta, txHash), nil)
	if err != nil {
		return 0, false, false
	}
	rec, err := unmarshalTxMetaRecord(raw)
	if err != nil {
		return 0, false, false
	}
	return rec.Height, rec.IsCoinbase, true
}

// Transaction returns the transaction identified by txHash together with
// its containing block's hash and height, for the getrawtransaction RPC.
func (db *ChainDB) Transaction(txHash chainhash.Hash) (*wire.MsgTx, chainhash.Hash, int64, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	raw, err := db.index.Get(hashKey(prefixTxMeta, txHash), nil)
	if err != nil {
		return nil, chainhash.Hash{}, 0, false
	}
	rec, err := unmarshalTxMetaRecord(raw)
	if err != nil {
		return nil, chainhash.Hash{}, 0, false
	}
	block, ok := db.blockLocked(rec.BlockHash)
	if !ok {
		return nil, chainhash.Hash{}, 0, false
	}
	for _, tx := range block.Transactions {
		if tx.TxHash() == txHash {
			return tx, rec.BlockHash, rec.Height, true
		}
	}
	return nil, chainhash.Hash{}, 0, false
}

// --- BlockOrigin classification ---

// Origin classifies header's position relative to this database's current
// best chain, driving which acceptor path the verifier runs.
func (db *ChainDB) Origin(header *blockchain.IndexedBlockHeader) (blockchain.BlockOrigin, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if _, ok := db.blockLocked(header.Hash); ok {
		return blockchain.BlockOrigin{Kind: blockchain.OriginKnownBlock}, nil
	}

	parentRec, err := db.index.Get(hashKey(prefixHeaderByHash, header.Header.PrevBlock), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return blockchain.BlockOrigin{}, &blockchain.DatabaseError{Kind: blockchain.ErrUnknownParent}
		}
		return blockchain.BlockOrigin{}, err
	}
	parent, err := unmarshalHeaderRecord(parentRec)
	if err != nil {
		return blockchain.BlockOrigin{}, err
	}

	tipHash, tipHeight, _, err := db.tipLocked()
	if err != nil {
		return blockchain.BlockOrigin{}, err
	}

	newHeight := parent.Height + 1
	if header.Header.PrevBlock == tipHash || tipHeight < 0 {
		return blockchain.BlockOrigin{Kind: blockchain.OriginCanonChain, BlockNumber: newHeight}, nil
	}
	if newHeight > tipHeight {
		return blockchain.BlockOrigin{
			Kind:        blockchain.OriginSideChainBecomingCanonChain,
			BlockNumber: newHeight,
			ForkHash:    header.Header.PrevBlock,
		}, nil
	}
	return blockchain.BlockOrigin{
		Kind:        blockchain.OriginSideChain,
		BlockNumber: newHeight,
		ForkHash:    header.Header.PrevBlock,
	}, nil
}

// InsertBlock appends block to the database at height on the canonical
// chain, updating every index and the tip pointer. Callers must have
// already run it through the verifier; InsertBlock performs no consensus
// validation of its own.
func (db *ChainDB) InsertBlock(block *wire.MsgBlock, height int64, work *big.Int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertLocked(block, height, work)
}

func (db *ChainDB) insertLocked(block *wire.MsgBlock, height int64, work *big.Int) error {
	hash := block.BlockHash()

	blob := &bytes.Buffer{}
	if err := block.Serialize(blob); err != nil {
		return err
	}
	pref, err := db.blocks.AppendBlob(blob.Bytes())
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(hashKey(prefixHeaderByHash, hash), headerRecord{Height: height, Blob: pref}.marshal())
	batch.Put(heightKey(height), hash[:])

	for i, tx := range block.Transactions {
		txHash := tx.TxHash()
		isCoinbase := i == 0
		batch.Put(hashKey(prefixTxMeta, txHash), txMetaRecord{Height: height, IsCoinbase: isCoinbase, BlockHash: hash}.marshal())

		if !isCoinbase {
			for _, in := range tx.TxIn {
				batch.Delete(outpointKey(in.PreviousOutPoint))
			}
		}
		for outIdx, out := range tx.TxOut {
			op := wire.OutPoint{Hash: txHash, Index: uint32(outIdx)}
			batch.Put(outpointKey(op), utxoRecord{Value: out.Value, Height: height, IsCoinbase: isCoinbase, PkScript: out.PkScript}.marshal())
		}
	}

	_, curHeight, _, err := db.tipLocked()
	if err != nil {
		return err
	}
	if height >= curHeight {
		batch.Put([]byte(keyTip), tipRecord{Hash: hash, Height: height, ChainWork: work}.marshal())
	}

	if err := db.index.Write(batch, nil); err != nil {
		return err
	}
	return db.blocks.Sync()
}

// Fork opens a ForkView for origin, an overlay in which the canonical
// chain appears logically rolled back to the fork point and the side
// branch rolled forward, without mutating the main indices.
func (db *ChainDB) Fork(origin blockchain.BlockOrigin) blockchain.Store {
	return newForkView(db, origin.ForkHash)
}
