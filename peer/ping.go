// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/corvid-chain/corvidd/wire"
)

const (
	// pingIdleInterval is how long a connection may sit with no inbound
	// traffic before we probe it with a ping.
	pingIdleInterval = 60 * time.Second

	// pongTimeout is how long after sending a ping we wait for any
	// inbound traffic before declaring the peer dead.
	pongTimeout = 60 * time.Second
)

// pingState is one of the two liveness states a connection moves between.
type pingState int

const (
	// waitingTimeout means the connection is considered live; we are
	// watching for the idle interval to elapse.
	waitingTimeout pingState = iota

	// waitingPong means a ping is outstanding and we are waiting for
	// traffic back.
	waitingPong
)

// pingProtocol tracks liveness for one connection. A peer that goes
// silent is probed with a ping carrying a fresh random nonce; a peer that
// stays silent after the probe, or answers with the wrong nonce, is
// disconnected.
//
// Peer serializes onMessage and maintain under its pingMu, so no lock is
// needed here.
type pingProtocol struct {
	peer *Peer

	state        pingState
	lastActivity time.Time
	pingSent     time.Time

	// outstandingNonce is the nonce of the unanswered ping, zero when
	// none is in flight.
	outstandingNonce uint64

	now      func() time.Time
	newNonce func() uint64
}

func newPingProtocol(p *Peer) *pingProtocol {
	return &pingProtocol{
		peer:         p,
		state:        waitingTimeout,
		lastActivity: time.Now(),
		now:          time.Now,
		newNonce:     randomNonce,
	}
}

// onMessage records inbound activity and handles ping/pong frames. Any
// inbound frame at all returns an outstanding-ping connection to the live
// state; a pong with a nonce we never sent is a protocol violation and
// closes the connection.
func (pp *pingProtocol) onMessage(command string, payload []byte) error {
	now := pp.now()
	pp.lastActivity = now

	if pp.state == waitingPong {
		pp.state = waitingTimeout
	}

	switch command {
	case wire.CmdPing:
		ping := &wire.MsgPing{}
		if err := ping.BtcDecode(bytes.NewReader(payload), pp.peer.NegotiatedVersion); err != nil {
			return err
		}
		return pp.peer.Send(wire.NewMsgPong(ping.Nonce))

	case wire.CmdPong:
		pong := &wire.MsgPong{}
		if err := pong.BtcDecode(bytes.NewReader(payload), pp.peer.NegotiatedVersion); err != nil {
			return err
		}
		if pp.outstandingNonce == 0 {
			// Unsolicited pongs are tolerated; some implementations
			// send them after sendheaders negotiation.
			return nil
		}
		if pong.Nonce != pp.outstandingNonce {
			pp.peer.Close()
			return fmt.Errorf("peer %v: pong nonce %d does not match ping nonce %d",
				pp.peer.Addr, pong.Nonce, pp.outstandingNonce)
		}
		pp.outstandingNonce = 0
		return nil
	}
	return nil
}

// maintain is the timer tick. In the live state it sends a probe once the
// idle interval elapses; with a probe outstanding it closes the
// connection once the pong deadline passes.
func (pp *pingProtocol) maintain() error {
	now := pp.now()

	switch pp.state {
	case waitingTimeout:
		if now.Sub(pp.lastActivity) <= pingIdleInterval {
			return nil
		}
		nonce := pp.newNonce()
		if err := pp.peer.Send(wire.NewMsgPing(nonce)); err != nil {
			pp.peer.Close()
			return err
		}
		pp.outstandingNonce = nonce
		pp.pingSent = now
		pp.state = waitingPong
		return nil

	case waitingPong:
		if now.Sub(pp.pingSent) <= pongTimeout {
			return nil
		}
		pp.peer.Close()
		log.Infof("Disconnecting peer %v: no messages", pp.peer.Addr)
		return fmt.Errorf("peer %v: no messages", pp.peer.Addr)
	}
	return nil
}
