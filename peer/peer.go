// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements a single connection to a remote node: the
// version/verack handshake, protocol-version negotiation, and the
// ping/pong liveness protocol.
package peer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-chain/corvidd/wire"
)

// HandshakeTimeout bounds how long the version/verack exchange may take.
// A remote that has not completed the exchange within it is dropped.
const HandshakeTimeout = 5 * time.Second

// Config carries everything a Peer needs to identify itself and validate
// a remote peer's handshake.
type Config struct {
	Net             wire.BitcoinNet
	UserAgent       string
	ProtocolVersion uint32
	MinAcceptable   uint32
	Services        wire.ServiceFlag
	StartHeight     int32

	// Nonce, when non-zero, is used verbatim instead of a random value;
	// tests use this to make self-connection detection deterministic.
	Nonce uint64
}

// Peer is a single established, handshaken connection to a remote node.
type Peer struct {
	cfg  Config
	conn net.Conn

	NegotiatedVersion uint32
	RemoteUserAgent   string
	RemoteServices    wire.ServiceFlag
	RemoteStartHeight int32
	Inbound           bool
	Addr              net.Addr

	sendMu sync.Mutex

	// pingMu serializes OnMessage and Maintain, which the node calls from
	// different goroutines.
	pingMu sync.Mutex
	ping   *pingProtocol

	closed int32
}

// ErrSelfConnection indicates the remote peer's handshake nonce matches
// one of our own outstanding connection attempts.
var ErrSelfConnection = fmt.Errorf("peer: detected connection to self")

// ErrProtocolTooOld indicates the remote peer's advertised protocol
// version is below our configured minimum.
var ErrProtocolTooOld = fmt.Errorf("peer: remote protocol version too old")

// NewOutbound performs the client side of the handshake over conn, which
// must already be connected, within HandshakeTimeout.
func NewOutbound(ctx context.Context, conn net.Conn, cfg Config, sentNonces *NonceSet) (*Peer, error) {
	return handshake(ctx, conn, cfg, false, sentNonces)
}

// NewInbound performs the server side of the handshake over an accepted
// connection, within HandshakeTimeout.
func NewInbound(ctx context.Context, conn net.Conn, cfg Config, sentNonces *NonceSet) (*Peer, error) {
	return handshake(ctx, conn, cfg, true, sentNonces)
}

func handshake(ctx context.Context, conn net.Conn, cfg Config, inbound bool, sentNonces *NonceSet) (*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	nonce := cfg.Nonce
	if nonce == 0 {
		nonce = randomNonce()
	}
	if sentNonces != nil {
		sentNonces.Add(nonce)
	}

	done := make(chan error, 1)
	var p *Peer
	go func() {
		var err error
		p, err = runHandshake(conn, cfg, inbound, nonce, sentNonces)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			conn.Close()
			return nil, err
		}
		return p, nil
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
}

func runHandshake(conn net.Conn, cfg Config, inbound bool, nonce uint64, sentNonces *NonceSet) (*Peer, error) {
	local := &wire.MsgVersion{
		ProtocolVersion: cfg.ProtocolVersion,
		Services:        cfg.Services,
		Timestamp:       time.Now().Unix(),
		Nonce:           nonce,
		UserAgent:       cfg.UserAgent,
		StartHeight:     cfg.StartHeight,
		Relay:           true,
	}

	if inbound {
		remote, err := readVersion(conn, cfg)
		if err != nil {
			return nil, err
		}
		if sentNonces != nil && sentNonces.Contains(remote.Nonce) {
			return nil, ErrSelfConnection
		}
		if _, err := wire.WriteMessageN(conn, local, wire.ProtocolVersion, cfg.Net); err != nil {
			return nil, err
		}
		if err := wire.ReadTypedMessage(conn, wire.ProtocolVersion, cfg.Net, &wire.MsgVerAck{}); err != nil {
			return nil, err
		}
		if _, err := wire.WriteMessageN(conn, &wire.MsgVerAck{}, wire.ProtocolVersion, cfg.Net); err != nil {
			return nil, err
		}
		return newPeer(conn, cfg, remote, true), nil
	}

	if _, err := wire.WriteMessageN(conn, local, wire.ProtocolVersion, cfg.Net); err != nil {
		return nil, err
	}
	remote, err := readVersion(conn, cfg)
	if err != nil {
		return nil, err
	}
	if sentNonces != nil && sentNonces.Contains(remote.Nonce) {
		return nil, ErrSelfConnection
	}
	if _, err := wire.WriteMessageN(conn, &wire.MsgVerAck{}, wire.ProtocolVersion, cfg.Net); err != nil {
		return nil, err
	}
	if err := wire.ReadTypedMessage(conn, wire.ProtocolVersion, cfg.Net, &wire.MsgVerAck{}); err != nil {
		return nil, err
	}
	return newPeer(conn, cfg, remote, false), nil
}

func readVersion(conn net.Conn, cfg Config) (*wire.MsgVersion, error) {
	msg, _, err := wire.ReadMessageN(conn, cfg.ProtocolVersion, cfg.Net, wire.MakeEmptyMessage)
	if err != nil {
		return nil, err
	}
	version, ok := msg.(*wire.MsgVersion)
	if !ok {
		return nil, fmt.Errorf("peer: expected version message, got %T", msg)
	}
	if version.ProtocolVersion < cfg.MinAcceptable {
		return nil, ErrProtocolTooOld
	}
	return version, nil
}

func newPeer(conn net.Conn, cfg Config, remote *wire.MsgVersion, inbound bool) *Peer {
	negotiated := cfg.ProtocolVersion
	if remote.ProtocolVersion < negotiated {
		negotiated = remote.ProtocolVersion
	}
	p := &Peer{
		cfg:               cfg,
		conn:              conn,
		NegotiatedVersion: negotiated,
		RemoteUserAgent:   remote.UserAgent,
		RemoteServices:    remote.Services,
		RemoteStartHeight: remote.StartHeight,
		Inbound:           inbound,
		Addr:              conn.RemoteAddr(),
	}
	p.ping = newPingProtocol(p)
	return p
}

// Send writes msg to the peer under the negotiated protocol version.
func (p *Peer) Send(msg wire.Message) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	_, err := wire.WriteMessageN(p.conn, msg, p.NegotiatedVersion, p.cfg.Net)
	return err
}

// ReadMessage blocks for the next frame from the peer.
func (p *Peer) ReadMessage() (wire.Message, []byte, error) {
	return wire.ReadMessageN(p.conn, p.NegotiatedVersion, p.cfg.Net, wire.MakeEmptyMessage)
}

// OnMessage feeds an inbound message to the peer's protocol instances
// (currently just ping/pong) before the caller's own dispatch sees it.
// Every inbound frame, whatever its command, resets the liveness timer.
func (p *Peer) OnMessage(command string, payload []byte) error {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	return p.ping.onMessage(command, payload)
}

// Maintain runs periodic protocol upkeep (ping scheduling and ping-
// timeout enforcement); callers invoke it on a ticker, e.g. every second.
// A non-nil error means the peer has been disconnected and the caller
// should stop servicing it.
func (p *Peer) Maintain() error {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	return p.ping.maintain()
}

// Close closes the underlying connection, idempotently.
func (p *Peer) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}
	return p.conn.Close()
}

// NonceSet tracks nonces from our own outstanding version messages so an
// inbound or outbound handshake can detect a connection back to ourself.
type NonceSet struct {
	mu    sync.Mutex
	seen  map[uint64]struct{}
}

// NewNonceSet returns an empty NonceSet.
func NewNonceSet() *NonceSet {
	return &NonceSet{seen: make(map[uint64]struct{})}
}

// Add records nonce as one of our own.
func (s *NonceSet) Add(nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[nonce] = struct{}{}
}

// Contains reports whether nonce was previously recorded by Add.
func (s *NonceSet) Contains(nonce uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[nonce]
	return ok
}

func randomNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is unrecoverable; a zero nonce would
		// silently disable self-connection detection instead.
		panic(err)
	}
	return binary.LittleEndian.Uint64(buf[:])
}
