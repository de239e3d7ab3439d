// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-chain/corvidd/addrmgr"
	"github.com/corvid-chain/corvidd/blockchain"
	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/connmgr"
	"github.com/corvid-chain/corvidd/database"
	"github.com/corvid-chain/corvidd/mempool"
	"github.com/corvid-chain/corvidd/netsync"
	"github.com/corvid-chain/corvidd/peer"
	"github.com/corvid-chain/corvidd/rpc"
	"github.com/corvid-chain/corvidd/rpc/jsonrpc/types"
	"github.com/corvid-chain/corvidd/txscript"
	"github.com/corvid-chain/corvidd/wire"
)

const (
	// userAgent identifies this implementation to peers.
	userAgent = "/corvidd:" + version + "/"

	// maintainInterval is the period of each peer's protocol upkeep tick.
	maintainInterval = time.Second

	// sigCacheMaxEntries bounds the signature verification cache.
	sigCacheMaxEntries = 50000
)

// server is the node orchestrator: it owns the chain database, the
// mempool, the sync driver, the peer set, and the RPC surface, and wires
// them together.
type server struct {
	cfg *config

	db        *database.ChainDB
	pool      *mempool.Pool
	checker   *txscript.CachingChecker
	syncMgr   *netsync.SyncManager
	addrMgr   *addrmgr.AddrManager
	connMgr   *connmgr.ConnManager
	rpcServer *rpc.Server
	notify    *netsync.BlockNotify
	nonces    *peer.NonceSet

	peersMu sync.Mutex
	peers   map[uint64]*serverPeer

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// serverPeer couples an established peer with its connection-manager
// request and per-peer bookkeeping.
type serverPeer struct {
	*peer.Peer
	req      *connmgr.ConnReq
	server   *server
	connTime time.Time
	lastSend int64
	lastRecv int64
}

func (sp *serverPeer) key() string {
	return fmt.Sprintf("%s-%d", sp.req.Addr, sp.req.ID())
}

// newServer assembles a server from cfg, opening the database and binding
// the peer listener, but starting nothing yet.
func newServer(cfg *config) (*server, error) {
	db, err := database.Open(cfg.netDir, cfg.DbCache)
	if err != nil {
		return nil, fmt.Errorf("opening chain database: %w", err)
	}
	if err := db.InitGenesis(cfg.params.GenesisBlock); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding genesis block: %w", err)
	}

	checker, err := txscript.NewCachingChecker(txscript.RejectingChecker{}, sigCacheMaxEntries)
	if err != nil {
		db.Close()
		return nil, err
	}
	verifier := blockchain.NewVerifier(db, cfg.params.Params, checker)

	var level blockchain.VerificationLevel
	switch cfg.VerificationLevel {
	case "none":
		level = blockchain.VerificationNone
	case "header":
		level = blockchain.VerificationHeader
	default:
		level = blockchain.VerificationFull
	}
	var edgeHeight int64
	if cfg.edgeHash != nil {
		if h, ok := db.BlockHeight(*cfg.edgeHash); ok {
			edgeHeight = h
		} else {
			corvLog.Warnf("Verification edge %s is not in the local chain yet; "+
				"full verification applies until it arrives", cfg.edgeHash)
		}
	}

	s := &server{
		cfg:      cfg,
		db:       db,
		pool:     mempool.New(),
		checker:  checker,
		addrMgr:  addrmgr.New(cfg.netDir),
		nonces:   peer.NewNonceSet(),
		peers:    make(map[uint64]*serverPeer),
		shutdown: make(chan struct{}),
	}

	s.syncMgr = netsync.New(&netsync.Config{
		Chain:            db,
		Verifier:         verifier,
		Mempool:          s.pool,
		Outputs:          db,
		Level:            level,
		VerificationEdge: edgeHeight,
		RequestParent:    s.requestBlock,
	})
	s.syncMgr.RegisterSyncListener(s)

	if cfg.BlockNotify != "" {
		s.notify = netsync.NewBlockNotify(cfg.BlockNotify)
		s.syncMgr.RegisterSyncListener(s.notify)
	}

	listener, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("binding peer listener: %w", err)
	}

	var dial func(string) (net.Conn, error)
	if cfg.Proxy != "" {
		dial = connmgr.ProxyDialer(cfg.Proxy, cfg.ProxyUser, cfg.ProxyPass, false, cfg.onlyNet)
	} else {
		dial = connmgr.TCPDialer(cfg.onlyNet)
	}

	cmgrCfg := &connmgr.Config{
		Listeners:       []net.Listener{listener},
		Dial:            dial,
		OnConnection:    s.onConnection,
		OnDisconnection: s.onDisconnection,
	}
	// With --connect the node talks only to the named peers; otherwise
	// the address manager feeds the dialer.
	if len(cfg.ConnectPeers) == 0 {
		cmgrCfg.GetNewAddress = func() (string, error) {
			ka, ok := s.addrMgr.GetAddress(wire.SFNodeNetwork)
			if !ok {
				return "", fmt.Errorf("no known addresses to dial")
			}
			s.addrMgr.Attempt(ka.Address)
			return ka.Address, nil
		}
	} else {
		cmgrCfg.TargetOutbound = len(cfg.ConnectPeers)
	}
	s.connMgr, err = connmgr.New(cmgrCfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	if !cfg.NoJSONRPC {
		s.rpcServer = rpc.NewServer(&rpc.Config{
			Chain:           db,
			Syncer:          s.syncMgr,
			Params:          cfg.params.Params,
			PeerInfo:        s.peerInfo,
			Generate:        s.generateBlocks,
			RequestShutdown: s.requestShutdown,
			AllowedAPIs:     cfg.JSONRPCAPIs,
			CORSOrigins:     cfg.JSONRPCCORS,
			AllowedHosts:    cfg.JSONRPCHosts,
		})
		s.syncMgr.RegisterSyncListener(s.rpcServer)
	}

	return s, nil
}

// run starts every subsystem and blocks until a shutdown request, then
// tears them down in reverse order.
func (s *server) run() error {
	s.seedAddresses()

	s.syncMgr.Start()
	s.addrMgr.Start()
	if s.notify != nil {
		s.notify.Start()
	}
	s.connMgr.Start()
	for _, addr := range s.cfg.ConnectPeers {
		s.connMgr.Connect(&connmgr.ConnReq{Addr: addr, Permanent: true})
	}
	if s.rpcServer != nil {
		if err := s.rpcServer.Listen(s.cfg.rpcListen); err != nil {
			return fmt.Errorf("starting RPC server: %w", err)
		}
	}
	corvLog.Infof("Server started; listening for peers on %s", s.cfg.listenAddr)

	<-s.shutdown
	corvLog.Info("Shutting down")

	if s.rpcServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.rpcServer.Shutdown(ctx)
		cancel()
	}
	s.connMgr.Stop()
	s.disconnectAll()
	if s.notify != nil {
		s.notify.Stop()
	}
	s.syncMgr.Stop()
	if err := s.addrMgr.Stop(); err != nil {
		corvLog.Errorf("Failed to persist node table: %v", err)
	}
	return s.db.Close()
}

// requestShutdown begins an orderly exit; safe to call more than once.
func (s *server) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// seedAddresses primes the address manager from --seednode entries and
// the network's DNS seeds.
func (s *server) seedAddresses() {
	for _, addr := range s.cfg.SeedNodes {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, s.cfg.params.DefaultPort)
		}
		s.addrMgr.AddAddress(addr, wire.SFNodeNetwork)
	}
	for _, seed := range s.cfg.params.DNSSeeds {
		seed := seed
		go func() {
			hosts, err := net.LookupHost(seed.Host)
			if err != nil {
				corvLog.Debugf("DNS seed %s lookup failed: %v", seed.Host, err)
				return
			}
			for _, host := range hosts {
				s.addrMgr.AddAddress(net.JoinHostPort(host, s.cfg.params.DefaultPort), wire.SFNodeNetwork)
			}
		}()
	}
}

// onConnection runs the handshake for a fresh connection and, on success,
// hands the peer to its message loop.
func (s *server) onConnection(req *connmgr.ConnReq, conn net.Conn) {
	go func() {
		pcfg := peer.Config{
			Net:             s.cfg.params.Net,
			UserAgent:       userAgent,
			ProtocolVersion: wire.ProtocolVersion,
			MinAcceptable:   wire.MinAcceptableProtocolVersion,
			Services:        wire.SFNodeNetwork,
			StartHeight:     int32(s.db.BestHeight()),
		}

		var p *peer.Peer
		var err error
		if req.Inbound {
			p, err = peer.NewInbound(context.Background(), conn, pcfg, s.nonces)
		} else {
			p, err = peer.NewOutbound(context.Background(), conn, pcfg, s.nonces)
		}
		if err != nil {
			peerLog.Debugf("Handshake with %s failed: %v", req.Addr, err)
			s.connMgr.Remove(req.ID())
			return
		}

		sp := &serverPeer{Peer: p, req: req, server: s, connTime: time.Now()}
		s.peersMu.Lock()
		s.peers[req.ID()] = sp
		s.peersMu.Unlock()

		peerLog.Infof("New peer %s (%s, protocol %d, height %d)",
			req.Addr, p.RemoteUserAgent, p.NegotiatedVersion, p.RemoteStartHeight)

		if !req.Inbound {
			s.addrMgr.Good(req.Addr, p.RemoteServices)
		}
		s.syncMgr.UpdatePeerHeight(sp.key(), int64(p.RemoteStartHeight))

		// Learn more peers and kick off block download.
		sp.send(&wire.MsgGetAddr{})
		s.requestBlocksFrom(sp)

		go sp.maintainLoop()
		sp.readLoop()
	}()
}

// onDisconnection forgets the peer.
func (s *server) onDisconnection(req *connmgr.ConnReq) {
	s.peersMu.Lock()
	sp, ok := s.peers[req.ID()]
	if ok {
		delete(s.peers, req.ID())
	}
	s.peersMu.Unlock()
	if ok {
		sp.Close()
		s.syncMgr.PeerGone(sp.key())
		peerLog.Infof("Peer %s disconnected", req.Addr)
	}
}

func (s *server) disconnectAll() {
	s.peersMu.Lock()
	peers := make([]*serverPeer, 0, len(s.peers))
	for _, sp := range s.peers {
		peers = append(peers, sp)
	}
	s.peers = make(map[uint64]*serverPeer)
	s.peersMu.Unlock()
	for _, sp := range peers {
		sp.Close()
	}
}

// snapshotPeers returns the current peer set.
func (s *server) snapshotPeers() []*serverPeer {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	out := make([]*serverPeer, 0, len(s.peers))
	for _, sp := range s.peers {
		out = append(out, sp)
	}
	return out
}

// requestBlock asks one peer for a block by hash, used by the sync driver
// to fetch a missing parent.
func (s *server) requestBlock(hash chainhash.Hash) {
	peers := s.snapshotPeers()
	if len(peers) == 0 {
		return
	}
	getData := &wire.MsgGetData{}
	getData.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
	peers[0].send(getData)
}

// requestBlocksFrom sends a getblocks for everything after our tip.
func (s *server) requestBlocksFrom(sp *serverPeer) {
	locator := s.syncMgr.LocatorHashes(s.db.BlockHash)
	if len(locator) == 0 {
		return
	}
	msg := &wire.MsgGetBlocks{}
	msg.ProtocolVersion = sp.NegotiatedVersion
	for i := range locator {
		msg.AddBlockLocatorHash(&locator[i])
	}
	sp.send(msg)
}

// send writes msg to the peer, logging and disconnecting on failure.
func (sp *serverPeer) send(msg wire.Message) {
	if err := sp.Send(msg); err != nil {
		peerLog.Debugf("Failed to send %s to %s: %v", msg.Command(), sp.req.Addr, err)
		sp.server.connMgr.Disconnect(sp.req.ID())
		return
	}
	atomic.StoreInt64(&sp.lastSend, time.Now().Unix())
}

// maintainLoop drives the peer's protocol upkeep until disconnect.
func (sp *serverPeer) maintainLoop() {
	ticker := time.NewTicker(maintainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sp.Maintain(); err != nil {
				peerLog.Infof("Peer %s failed liveness: %v", sp.req.Addr, err)
				sp.server.connMgr.Disconnect(sp.req.ID())
				return
			}
		case <-sp.server.shutdown:
			return
		}
	}
}

// readLoop reads and dispatches frames until the connection drops.
func (sp *serverPeer) readLoop() {
	for {
		msg, payload, err := sp.ReadMessage()
		if err != nil {
			peerLog.Debugf("Read from %s failed: %v", sp.req.Addr, err)
			sp.server.connMgr.Disconnect(sp.req.ID())
			return
		}
		atomic.StoreInt64(&sp.lastRecv, time.Now().Unix())

		command := ""
		if msg != nil {
			command = msg.Command()
		}
		if err := sp.OnMessage(command, payload); err != nil {
			peerLog.Infof("Protocol violation from %s: %v", sp.req.Addr, err)
			sp.server.connMgr.Disconnect(sp.req.ID())
			return
		}
		if msg == nil {
			// Unknown command: tolerated, the peer may be newer.
			continue
		}
		sp.handleMessage(msg)
	}
}

// handleMessage dispatches one decoded frame from a peer.
func (sp *serverPeer) handleMessage(msg wire.Message) {
	s := sp.server
	switch m := msg.(type) {
	case *wire.MsgInv:
		getData := &wire.MsgGetData{}
		for _, iv := range m.InvList {
			switch iv.Type {
			case wire.InvTypeBlock:
				if _, known := s.db.BlockHeight(iv.Hash); !known {
					getData.AddInvVect(iv)
				}
			case wire.InvTypeTx:
				if !s.pool.Contains(iv.Hash) {
					getData.AddInvVect(iv)
				}
			}
		}
		if len(getData.InvList) > 0 {
			sp.send(getData)
		}

	case *wire.MsgGetData:
		sp.serveGetData(m)

	case *wire.MsgBlock:
		s.syncMgr.QueueBlock(m, sp.key())

	case *wire.MsgTx:
		s.syncMgr.QueueTx(m, sp.key())

	case *wire.MsgAddr:
		s.addrMgr.AddAddresses(m.AddrList)

	case *wire.MsgGetAddr:
		reply := &wire.MsgAddr{}
		for _, ka := range s.addrMgr.AddressCache(wire.MaxAddrPerMsg) {
			host, portStr, err := net.SplitHostPort(ka.Address)
			if err != nil {
				continue
			}
			ip := net.ParseIP(host)
			if ip == nil {
				continue
			}
			port, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				continue
			}
			reply.AddAddress(&wire.NetAddress{
				Timestamp: uint32(ka.LastSeen.Unix()),
				Services:  ka.Services,
				IP:        ip,
				Port:      uint16(port),
			})
		}
		sp.send(reply)

	case *wire.MsgGetBlocks:
		sp.serveGetBlocks(m)

	case *wire.MsgGetHeaders:
		sp.serveGetHeaders(m)

	case *wire.MsgMemPool:
		inv := &wire.MsgInv{}
		for _, hash := range s.pool.ByArrival() {
			hash := hash
			inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash))
		}
		if len(inv.InvList) > 0 {
			sp.send(inv)
		}

	case *wire.MsgReject:
		peerLog.Debugf("Peer %s rejected our %s: %s (code %#x)",
			sp.req.Addr, m.Cmd, m.Reason, m.Code)
	}
}

// serveGetData answers a getdata with blocks from the database and
// transactions from the pool, and notfound for the rest.
func (sp *serverPeer) serveGetData(m *wire.MsgGetData) {
	notFound := &wire.MsgNotFound{}
	for _, iv := range m.InvList {
		switch iv.Type {
		case wire.InvTypeBlock:
			if block, ok := sp.server.db.Block(iv.Hash); ok {
				sp.send(block)
				continue
			}
		case wire.InvTypeTx:
			if tx, ok := sp.server.pool.Get(iv.Hash); ok {
				sp.send(tx)
				continue
			}
		}
		notFound.AddInvVect(iv)
	}
	if len(notFound.InvList) > 0 {
		sp.send(notFound)
	}
}

// locatorStart resolves the first locator hash we recognize to a height,
// falling back to genesis.
func (sp *serverPeer) locatorStart(hashes []*chainhash.Hash) int64 {
	for _, h := range hashes {
		if height, ok := sp.server.db.BlockHeight(*h); ok {
			return height
		}
	}
	return 0
}

func (sp *serverPeer) serveGetBlocks(m *wire.MsgGetBlocks) {
	start := sp.locatorStart(m.BlockLocatorHashes)
	inv := &wire.MsgInv{}
	for height := start + 1; len(inv.InvList) < wire.MaxBlockLocatorsPerMsg; height++ {
		hash, ok := sp.server.db.BlockHash(height)
		if !ok {
			break
		}
		inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
		if hash == m.HashStop {
			break
		}
	}
	if len(inv.InvList) > 0 {
		sp.send(inv)
	}
}

func (sp *serverPeer) serveGetHeaders(m *wire.MsgGetHeaders) {
	start := sp.locatorStart(m.BlockLocatorHashes)
	headers := &wire.MsgHeaders{}
	for height := start + 1; len(headers.Headers) < wire.MaxBlockHeadersPerMsg; height++ {
		header, ok := sp.server.db.BlockHeaderByHeight(height)
		if !ok {
			break
		}
		headers.AddBlockHeader(header)
		if header.BlockHash() == m.HashStop {
			break
		}
	}
	sp.send(headers)
}

// peerInfo snapshots the peer set for the getpeerinfo RPC.
func (s *server) peerInfo() []types.GetPeerInfoResult {
	peers := s.snapshotPeers()
	out := make([]types.GetPeerInfoResult, 0, len(peers))
	for i, sp := range peers {
		out = append(out, types.GetPeerInfoResult{
			ID:             int32(i),
			Addr:           sp.req.Addr,
			Services:       fmt.Sprintf("%08x", uint64(sp.RemoteServices)),
			LastSend:       atomic.LoadInt64(&sp.lastSend),
			LastRecv:       atomic.LoadInt64(&sp.lastRecv),
			ConnTime:       sp.connTime.Unix(),
			Version:        sp.NegotiatedVersion,
			SubVer:         sp.RemoteUserAgent,
			Inbound:        sp.Inbound,
			StartingHeight: int64(sp.RemoteStartHeight),
		})
	}
	return out
}

// --- netsync.SyncListener ---

// SynchronizationStateSwitched implements netsync.SyncListener.
func (s *server) SynchronizationStateSwitched(isSyncing bool) {
	corvLog.Infof("Bulk sync: %v", isSyncing)
}

// BestStorageBlockInserted implements netsync.SyncListener: relay the new
// block to peers and evict its signatures from the cache once buried.
func (s *server) BestStorageBlockInserted(hash chainhash.Hash) {
	inv := &wire.MsgInv{}
	inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
	for _, sp := range s.snapshotPeers() {
		sp.send(inv)
	}

	if height, ok := s.db.BlockHeight(hash); ok {
		evictHeight := height - txscript.ProactiveEvictionDepth
		if evictHeight <= 0 {
			return
		}
		if evictHash, ok := s.db.BlockHash(evictHeight); ok {
			if block, ok := s.db.Block(evictHash); ok {
				// Off the sync handler's path; eviction is best effort.
				go s.checker.EvictConfirmed(block)
			}
		}
	}
}
