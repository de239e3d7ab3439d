// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpc serves the node's JSON-RPC interface over HTTP, with an
// opt-in per-API-family allow list, configurable CORS and host allow
// lists, and a websocket path pushing block notifications.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/corvid-chain/corvidd/chaincfg"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/rpc/jsonrpc/types"
	"github.com/corvid-chain/corvidd/wire"
)

// JSON-RPC error codes, following the reference implementation's stable
// values.
const (
	errCodeParse          = -32700
	errCodeInvalidRequest = -32600
	errCodeMethodNotFound = -32601
	errCodeInvalidParams  = -32602
	errCodeInternal       = -32603
	errCodeBlockNotFound  = -5
	errCodeDeserialize    = -22
	errCodeVerify         = -25
	errCodeForbidden      = -32001
)

// Error is a JSON-RPC error object with a stable code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func rpcError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Chain is the chain-database surface the server reads.
type Chain interface {
	Tip() (chainhash.Hash, int64, *big.Int, error)
	BlockHash(height int64) (chainhash.Hash, bool)
	Block(hash chainhash.Hash) (*wire.MsgBlock, bool)
	BlockHeight(hash chainhash.Hash) (int64, bool)
	Transaction(txHash chainhash.Hash) (*wire.MsgTx, chainhash.Hash, int64, bool)
}

// Syncer is the sync-driver surface the server writes commands into.
type Syncer interface {
	SubmitBlock(block *wire.MsgBlock) error
	SubmitTx(tx *wire.MsgTx) error
	IsSyncing() bool
}

// Config collects the collaborators and policy for a Server.
type Config struct {
	Chain  Chain
	Syncer Syncer
	Params *chaincfg.Params

	// PeerInfo supplies the current peer set for getpeerinfo; nil yields
	// an empty list.
	PeerInfo func() []types.GetPeerInfoResult

	// Generate mines count blocks and returns their hashes, the regtest
	// convenience; nil disables the generate family regardless of the
	// allow list.
	Generate func(count int) ([]chainhash.Hash, error)

	// RequestShutdown is invoked by the stop method.
	RequestShutdown func()

	// AllowedAPIs is the enabled API-family allow list. Empty enables
	// every family.
	AllowedAPIs []string

	// CORSOrigins are origins allowed in cross-origin requests; empty
	// denies all cross-origin browsers.
	CORSOrigins []string

	// AllowedHosts restricts the Host header; empty allows any.
	AllowedHosts []string
}

// apiFamily maps each method to the allow-list family controlling it.
var apiFamily = map[string]string{
	"getblockhash":       "blockchain",
	"getblock":           "blockchain",
	"getblockchaininfo":  "blockchain",
	"getrawtransaction":  "raw",
	"sendrawtransaction": "raw",
	"getpeerinfo":        "network",
	"generate":           "generate",
	"stop":               "control",
}

// Server is the JSON-RPC HTTP server.
type Server struct {
	cfg      Config
	families map[string]bool

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// wsClient is one websocket subscriber; sends are serialized per client.
type wsClient struct {
	conn *websocket.Conn
	send chan interface{}
}

// NewServer constructs a Server from cfg.
func NewServer(cfg *Config) *Server {
	families := make(map[string]bool)
	for _, f := range cfg.AllowedAPIs {
		families[f] = true
	}
	return &Server{
		cfg:      *cfg,
		families: families,
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Listen starts serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Infof("RPC server listening on %s", listener.Addr())
	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			log.Errorf("RPC server exited: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the HTTP server and closes every websocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// request and response are the JSON-RPC envelope shapes.
type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result interface{}     `json:"result"`
	Error  *Error          `json:"error"`
}

// ServeHTTP implements http.Handler: POST carries a JSON-RPC call, GET
// with an upgrade header opens the notification websocket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.hostAllowed(r.Host) {
		http.Error(w, "host not allowed", http.StatusForbidden)
		return
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		if !s.originAllowed(origin) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebsocket(w, r)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "JSON-RPC requires POST", http.StatusMethodNotAllowed)
		return
	}

	var req request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeResponse(w, response{Error: rpcError(errCodeParse, "parse error: %v", err)})
		return
	}

	result, err := s.dispatch(&req)
	resp := response{ID: req.ID, Result: result}
	if err != nil {
		resp.Result = nil
		if rpcErr, ok := err.(*Error); ok {
			resp.Error = rpcErr
		} else {
			resp.Error = rpcError(errCodeInternal, "%v", err)
		}
		log.Debugf("RPC %s failed: %v", req.Method, resp.Error)
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("Failed to write RPC response: %v", err)
	}
}

func (s *Server) hostAllowed(host string) bool {
	if len(s.cfg.AllowedHosts) == 0 {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, allowed := range s.cfg.AllowedHosts {
		if allowed == host {
			return true
		}
	}
	return false
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) familyEnabled(method string) bool {
	family, known := apiFamily[method]
	if !known {
		return false
	}
	if len(s.families) == 0 {
		return true
	}
	return s.families[family]
}

func (s *Server) dispatch(req *request) (interface{}, error) {
	if _, known := apiFamily[req.Method]; !known {
		return nil, rpcError(errCodeMethodNotFound, "method %q not found", req.Method)
	}
	if !s.familyEnabled(req.Method) {
		return nil, rpcError(errCodeForbidden, "API family for %q is not enabled", req.Method)
	}

	switch req.Method {
	case "getblockhash":
		return s.getBlockHash(req.Params)
	case "getblock":
		return s.getBlock(req.Params)
	case "getblockchaininfo":
		return s.getBlockChainInfo()
	case "getrawtransaction":
		return s.getRawTransaction(req.Params)
	case "sendrawtransaction":
		return s.sendRawTransaction(req.Params)
	case "getpeerinfo":
		return s.getPeerInfo()
	case "generate":
		return s.generate(req.Params)
	case "stop":
		return s.stop()
	}
	return nil, rpcError(errCodeMethodNotFound, "method %q not found", req.Method)
}

func (s *Server) getBlockHash(params []json.RawMessage) (interface{}, error) {
	var height int64
	if err := unmarshalParam(params, 0, &height); err != nil {
		return nil, err
	}
	hash, ok := s.cfg.Chain.BlockHash(height)
	if !ok {
		return nil, rpcError(errCodeBlockNotFound, "no block at height %d", height)
	}
	return hash.String(), nil
}

func (s *Server) getBlock(params []json.RawMessage) (interface{}, error) {
	var hashStr string
	if err := unmarshalParam(params, 0, &hashStr); err != nil {
		return nil, err
	}
	verbose := true
	if len(params) > 1 {
		if err := unmarshalParam(params, 1, &verbose); err != nil {
			return nil, err
		}
	}

	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return nil, rpcError(errCodeInvalidParams, "malformed block hash: %v", err)
	}
	block, ok := s.cfg.Chain.Block(*hash)
	if !ok {
		return nil, rpcError(errCodeBlockNotFound, "block %s not found", hash)
	}

	if !verbose {
		var buf bytes.Buffer
		if err := block.Serialize(&buf); err != nil {
			return nil, rpcError(errCodeInternal, "serializing block: %v", err)
		}
		return hex.EncodeToString(buf.Bytes()), nil
	}

	height, _ := s.cfg.Chain.BlockHeight(*hash)
	_, tipHeight, _, _ := s.cfg.Chain.Tip()

	txids := make([]string, len(block.Transactions))
	for i, tx := range block.Transactions {
		txids[i] = tx.TxHash().String()
	}
	result := &types.GetBlockVerboseResult{
		Hash:          hash.String(),
		Confirmations: tipHeight - height + 1,
		Size:          int32(block.SerializeSize()),
		Height:        height,
		Version:       block.Header.Version,
		MerkleRoot:    block.Header.MerkleRoot.String(),
		Tx:            txids,
		Time:          block.Header.Timestamp.Unix(),
		Nonce:         block.Header.Nonce,
		Bits:          strconv.FormatUint(uint64(block.Header.Bits), 16),
		PreviousHash:  block.Header.PrevBlock.String(),
	}
	if next, ok := s.cfg.Chain.BlockHash(height + 1); ok {
		result.NextHash = next.String()
	}
	return result, nil
}

func (s *Server) getBlockChainInfo() (interface{}, error) {
	tipHash, tipHeight, work, err := s.cfg.Chain.Tip()
	if err != nil {
		return nil, rpcError(errCodeInternal, "reading tip: %v", err)
	}
	bits := s.cfg.Params.PowLimitBits
	if block, ok := s.cfg.Chain.Block(tipHash); ok {
		bits = block.Header.Bits
	}
	return &types.GetBlockChainInfoResult{
		Chain:                s.cfg.Params.Name,
		Blocks:               tipHeight,
		BestBlockHash:        tipHash.String(),
		Difficulty:           bits,
		ChainWork:            work.Text(16),
		InitialBlockDownload: s.cfg.Syncer.IsSyncing(),
		MaxBlockSize:         s.cfg.Params.MaximumBlockSize,
	}, nil
}

func (s *Server) getRawTransaction(params []json.RawMessage) (interface{}, error) {
	var txidStr string
	if err := unmarshalParam(params, 0, &txidStr); err != nil {
		return nil, err
	}
	verbose := false
	if len(params) > 1 {
		if err := unmarshalParam(params, 1, &verbose); err != nil {
			return nil, err
		}
	}

	txid, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return nil, rpcError(errCodeInvalidParams, "malformed txid: %v", err)
	}
	tx, blockHash, height, ok := s.cfg.Chain.Transaction(*txid)
	if !ok {
		return nil, rpcError(errCodeBlockNotFound, "transaction %s not found", txid)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, rpcError(errCodeInternal, "serializing transaction: %v", err)
	}
	rawHex := hex.EncodeToString(buf.Bytes())
	if !verbose {
		return rawHex, nil
	}

	_, tipHeight, _, _ := s.cfg.Chain.Tip()
	return &types.TxRawResult{
		Hex:           rawHex,
		Txid:          txid.String(),
		Version:       tx.Version,
		LockTime:      tx.LockTime,
		BlockHash:     blockHash.String(),
		BlockHeight:   height,
		Confirmations: tipHeight - height + 1,
	}, nil
}

func (s *Server) sendRawTransaction(params []json.RawMessage) (interface{}, error) {
	var rawHex string
	if err := unmarshalParam(params, 0, &rawHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, rpcError(errCodeDeserialize, "malformed hex: %v", err)
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, rpcError(errCodeDeserialize, "deserializing transaction: %v", err)
	}
	if err := s.cfg.Syncer.SubmitTx(tx); err != nil {
		return nil, rpcError(errCodeVerify, "transaction rejected: %v", err)
	}
	return tx.TxHash().String(), nil
}

func (s *Server) getPeerInfo() (interface{}, error) {
	if s.cfg.PeerInfo == nil {
		return []types.GetPeerInfoResult{}, nil
	}
	return s.cfg.PeerInfo(), nil
}

func (s *Server) generate(params []json.RawMessage) (interface{}, error) {
	if s.cfg.Generate == nil {
		return nil, rpcError(errCodeForbidden, "generation is not available on this node")
	}
	var count int
	if err := unmarshalParam(params, 0, &count); err != nil {
		return nil, err
	}
	if count <= 0 || count > 1000 {
		return nil, rpcError(errCodeInvalidParams, "block count %d out of range", count)
	}
	hashes, err := s.cfg.Generate(count)
	if err != nil {
		return nil, rpcError(errCodeInternal, "generate: %v", err)
	}
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}
	return out, nil
}

func (s *Server) stop() (interface{}, error) {
	if s.cfg.RequestShutdown != nil {
		s.cfg.RequestShutdown()
	}
	return "corvidd stopping", nil
}

func unmarshalParam(params []json.RawMessage, index int, into interface{}) error {
	if index >= len(params) {
		return rpcError(errCodeInvalidParams, "missing parameter %d", index)
	}
	if err := json.Unmarshal(params[index], into); err != nil {
		return rpcError(errCodeInvalidParams, "parameter %d: %v", index, err)
	}
	return nil
}

// --- websocket notification path ---

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("Websocket upgrade failed: %v", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan interface{}, 64)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	go client.writeLoop()
	go s.readLoop(client)
}

// readLoop discards inbound frames; its only job is noticing the close.
func (s *Server) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

func (c *wsClient) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			break
		}
	}
	c.conn.Close()
}

// notification is the JSON-RPC notification envelope (a request with no
// id) pushed to websocket clients.
type notification struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// SynchronizationStateSwitched implements netsync.SyncListener.
func (s *Server) SynchronizationStateSwitched(isSyncing bool) {
	s.broadcast(notification{Method: "syncstate", Params: []interface{}{isSyncing}})
}

// BestStorageBlockInserted implements netsync.SyncListener, pushing a
// blockconnected notification to every websocket subscriber.
func (s *Server) BestStorageBlockInserted(hash chainhash.Hash) {
	height, _ := s.cfg.Chain.BlockHeight(hash)
	s.broadcast(notification{
		Method: "blockconnected",
		Params: []interface{}{types.BlockConnectedNtfn{Hash: hash.String(), Height: height}},
	})
}

func (s *Server) broadcast(msg interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			// Slow consumer; drop rather than stall the notifier.
		}
	}
}
