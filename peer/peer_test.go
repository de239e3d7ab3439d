// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/corvid-chain/corvidd/wire"
)

func testConfig(nonce uint64) Config {
	return Config{
		Net:             wire.UniTest,
		UserAgent:       "/corvidd-test:0.1.0/",
		ProtocolVersion: wire.ProtocolVersion,
		MinAcceptable:   wire.MinAcceptableProtocolVersion,
		Services:        wire.SFNodeNetwork,
		StartHeight:     0,
		Nonce:           nonce,
	}
}

// runHandshakePair drives both sides of a handshake over an in-memory
// pipe and returns the established peers.
func runHandshakePair(t *testing.T, inCfg, outCfg Config, inNonces, outNonces *NonceSet) (*Peer, *Peer, error, error) {
	t.Helper()

	server, client := net.Pipe()
	type result struct {
		p   *Peer
		err error
	}
	inCh := make(chan result, 1)
	outCh := make(chan result, 1)

	go func() {
		p, err := NewInbound(context.Background(), server, inCfg, inNonces)
		inCh <- result{p, err}
	}()
	go func() {
		p, err := NewOutbound(context.Background(), client, outCfg, outNonces)
		outCh <- result{p, err}
	}()

	in := <-inCh
	out := <-outCh
	return in.p, out.p, in.err, out.err
}

func TestHandshake(t *testing.T) {
	inbound, outbound, inErr, outErr := runHandshakePair(t,
		testConfig(1), testConfig(2), NewNonceSet(), NewNonceSet())
	if inErr != nil {
		t.Fatalf("inbound handshake: %v", inErr)
	}
	if outErr != nil {
		t.Fatalf("outbound handshake: %v", outErr)
	}

	if inbound.NegotiatedVersion != wire.ProtocolVersion {
		t.Errorf("inbound negotiated %d, want %d", inbound.NegotiatedVersion, wire.ProtocolVersion)
	}
	if outbound.NegotiatedVersion != wire.ProtocolVersion {
		t.Errorf("outbound negotiated %d, want %d", outbound.NegotiatedVersion, wire.ProtocolVersion)
	}
	if inbound.RemoteUserAgent != "/corvidd-test:0.1.0/" {
		t.Errorf("inbound saw user agent %q", inbound.RemoteUserAgent)
	}
	if !inbound.Inbound || outbound.Inbound {
		t.Errorf("inbound/outbound flags swapped")
	}
}

// TestHandshakeSelfConnection connects a node back to itself: both ends
// share a nonce set, so whichever end reads the other's version message
// first recognizes its own nonce and rejects the connection.
func TestHandshakeSelfConnection(t *testing.T) {
	shared := NewNonceSet()
	_, _, inErr, outErr := runHandshakePair(t,
		testConfig(7), testConfig(7), shared, shared)
	if !errors.Is(inErr, ErrSelfConnection) && !errors.Is(outErr, ErrSelfConnection) {
		t.Fatalf("want ErrSelfConnection from one side, got inbound=%v outbound=%v", inErr, outErr)
	}
}

func TestHandshakeRejectsOldProtocol(t *testing.T) {
	oldCfg := testConfig(2)
	oldCfg.ProtocolVersion = wire.MinAcceptableProtocolVersion - 1
	_, _, inErr, _ := runHandshakePair(t, testConfig(1), oldCfg, NewNonceSet(), NewNonceSet())
	if !errors.Is(inErr, ErrProtocolTooOld) {
		t.Fatalf("want ErrProtocolTooOld, got %v", inErr)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The remote never speaks, so the inbound handshake must give up when
	// the context deadline fires.
	_, err := NewInbound(ctx, server, testConfig(1), NewNonceSet())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context.DeadlineExceeded, got %v", err)
	}
}

// fakeClockPeer builds an established peer over a pipe without running a
// real handshake, with the ping protocol's clock under test control.
// Callers read frames off the returned remote end themselves.
func fakeClockPeer(t *testing.T) (*Peer, net.Conn, *time.Time) {
	t.Helper()

	local, remote := net.Pipe()
	cfg := testConfig(1)
	p := newPeer(local, cfg, &wire.MsgVersion{
		ProtocolVersion: cfg.ProtocolVersion,
		UserAgent:       "/remote:0.1.0/",
	}, true)

	now := time.Now()
	p.ping.now = func() time.Time { return now }
	p.ping.lastActivity = now
	p.ping.newNonce = func() uint64 { return 0xdecafbad }
	t.Cleanup(func() { p.Close(); remote.Close() })
	return p, remote, &now
}

func encodePayload(t *testing.T, msg wire.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, wire.ProtocolVersion); err != nil {
		t.Fatalf("encoding %s: %v", msg.Command(), err)
	}
	return buf.Bytes()
}

func TestPingSentAfterIdleInterval(t *testing.T) {
	p, remote, now := fakeClockPeer(t)

	// Under the idle interval nothing is sent.
	if err := p.Maintain(); err != nil {
		t.Fatalf("maintain before idle: %v", err)
	}

	*now = now.Add(pingIdleInterval + time.Second)

	read := make(chan wire.Message, 1)
	go func() {
		msg, _, err := wire.ReadMessageN(remote, wire.ProtocolVersion, wire.UniTest, wire.MakeEmptyMessage)
		if err != nil {
			return
		}
		read <- msg
	}()

	if err := p.Maintain(); err != nil {
		t.Fatalf("maintain at idle: %v", err)
	}

	select {
	case msg := <-read:
		ping, ok := msg.(*wire.MsgPing)
		if !ok {
			t.Fatalf("peer sent %T, want *wire.MsgPing", msg)
		}
		if ping.Nonce != 0xdecafbad {
			t.Fatalf("ping nonce %x, want decafbad", ping.Nonce)
		}
	case <-time.After(time.Second):
		t.Fatal("no ping sent after idle interval")
	}

	// A matching pong clears the outstanding nonce.
	if err := p.OnMessage(wire.CmdPong, encodePayload(t, wire.NewMsgPong(0xdecafbad))); err != nil {
		t.Fatalf("matching pong: %v", err)
	}
	if p.ping.outstandingNonce != 0 {
		t.Fatalf("outstanding nonce not cleared")
	}
}

// TestPingTimeoutDisconnects exercises the full liveness failure: a peer
// that completes the handshake and then goes silent past the idle interval
// plus the pong deadline is disconnected with reason "no messages".
func TestPingTimeoutDisconnects(t *testing.T) {
	p, remote, now := fakeClockPeer(t)

	*now = now.Add(pingIdleInterval + time.Second)
	go func() {
		// Drain the probe so the write does not block the pipe.
		wire.ReadMessageN(remote, wire.ProtocolVersion, wire.UniTest, wire.MakeEmptyMessage)
	}()
	if err := p.Maintain(); err != nil {
		t.Fatalf("maintain sending probe: %v", err)
	}

	*now = now.Add(pongTimeout + time.Second)
	err := p.Maintain()
	if err == nil {
		t.Fatal("want disconnect error after pong timeout")
	}
	if !strings.Contains(err.Error(), "no messages") {
		t.Fatalf("disconnect reason %q, want it to name %q", err, "no messages")
	}
	if err := p.Send(wire.NewMsgPing(1)); err == nil {
		t.Fatal("connection still writable after liveness disconnect")
	}
}

func TestPongNonceMismatchDisconnects(t *testing.T) {
	p, remote, now := fakeClockPeer(t)

	*now = now.Add(pingIdleInterval + time.Second)
	go func() {
		wire.ReadMessageN(remote, wire.ProtocolVersion, wire.UniTest, wire.MakeEmptyMessage)
	}()
	if err := p.Maintain(); err != nil {
		t.Fatalf("maintain sending probe: %v", err)
	}

	err := p.OnMessage(wire.CmdPong, encodePayload(t, wire.NewMsgPong(0x1111)))
	if err == nil {
		t.Fatal("want protocol-violation error for mismatched pong nonce")
	}
	if err := p.Send(wire.NewMsgPing(1)); err == nil {
		t.Fatal("connection still writable after nonce mismatch")
	}
}

func TestInboundPingAnswersPong(t *testing.T) {
	p, remote, _ := fakeClockPeer(t)

	read := make(chan wire.Message, 1)
	go func() {
		msg, _, err := wire.ReadMessageN(remote, wire.ProtocolVersion, wire.UniTest, wire.MakeEmptyMessage)
		if err != nil {
			return
		}
		read <- msg
	}()

	if err := p.OnMessage(wire.CmdPing, encodePayload(t, wire.NewMsgPing(0xabcd))); err != nil {
		t.Fatalf("handling ping: %v", err)
	}

	select {
	case msg := <-read:
		pong, ok := msg.(*wire.MsgPong)
		if !ok {
			t.Fatalf("peer answered with %T, want *wire.MsgPong", msg)
		}
		if pong.Nonce != 0xabcd {
			t.Fatalf("pong nonce %x, want abcd", pong.Nonce)
		}
	case <-time.After(time.Second):
		t.Fatal("no pong answered to inbound ping")
	}
}

// TestInboundTrafficResetsPongWait checks that any inbound frame, not just
// a pong, returns an outstanding-ping connection to the live state.
func TestInboundTrafficResetsPongWait(t *testing.T) {
	p, remote, now := fakeClockPeer(t)

	*now = now.Add(pingIdleInterval + time.Second)
	go func() {
		wire.ReadMessageN(remote, wire.ProtocolVersion, wire.UniTest, wire.MakeEmptyMessage)
	}()
	if err := p.Maintain(); err != nil {
		t.Fatalf("maintain sending probe: %v", err)
	}

	// An inv arrives instead of the pong.
	if err := p.OnMessage(wire.CmdInv, nil); err != nil {
		t.Fatalf("handling inv: %v", err)
	}

	*now = now.Add(pongTimeout + time.Second)
	// lastActivity was just refreshed, so this tick must not disconnect;
	// instead it schedules a fresh probe.
	go func() {
		wire.ReadMessageN(remote, wire.ProtocolVersion, wire.UniTest, wire.MakeEmptyMessage)
	}()
	if err := p.Maintain(); err != nil {
		t.Fatalf("maintain after traffic reset: %v", err)
	}
}
