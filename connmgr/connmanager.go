// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connmgr maintains the node's connection count: it dials outbound
// peers up to a configured target, retries failed attempts with growing
// backoff, and accepts inbound connections from configured listeners,
// handing every established net.Conn to the owner's callback.
package connmgr

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// maxRetryDuration caps the exponential backoff between attempts to
	// the same address.
	maxRetryDuration = 10 * time.Minute

	// defaultRetryDuration is the first retry delay after a failed
	// attempt.
	defaultRetryDuration = 5 * time.Second

	// defaultTargetOutbound is used when the config leaves the target
	// unset.
	defaultTargetOutbound = 8
)

// ErrDialNil is returned by Start when no Dial function was configured.
var ErrDialNil = errors.New("connmgr: Dial cannot be nil")

// ConnReq is one pending or established connection request.
type ConnReq struct {
	// id is assigned at registration and never reused.
	id uint64

	// Addr is the remote address being dialed.
	Addr string

	// Permanent requests are redialed forever (--connect peers); others
	// are abandoned after a failure and replaced via GetNewAddress.
	Permanent bool

	// Inbound is set for requests created by an accept loop rather than
	// a dial.
	Inbound bool

	conn       net.Conn
	retryCount int
}

// ID returns the request's unique identifier.
func (c *ConnReq) ID() uint64 { return c.id }

// String returns a human-readable form of the request.
func (c *ConnReq) String() string {
	return fmt.Sprintf("%s (reqid %d)", c.Addr, c.id)
}

// Config holds the callbacks and limits a ConnManager runs with.
type Config struct {
	// Listeners are already-bound listeners to accept inbound
	// connections from. May be empty for an outbound-only node.
	Listeners []net.Listener

	// TargetOutbound is how many outbound connections the manager keeps
	// trying to hold open.
	TargetOutbound int

	// RetryDuration is the initial backoff after a failed attempt;
	// it doubles per consecutive failure up to maxRetryDuration.
	RetryDuration time.Duration

	// Dial establishes an outbound connection. Wiring a SOCKS proxy
	// (Tor) happens here; see ProxyDialer.
	Dial func(addr string) (net.Conn, error)

	// GetNewAddress returns the next address worth dialing, typically
	// backed by the address manager. Nil means only explicit Connect
	// calls create connections.
	GetNewAddress func() (string, error)

	// OnConnection fires on every established connection, inbound and
	// outbound. The receiver owns the conn.
	OnConnection func(req *ConnReq, conn net.Conn)

	// OnDisconnection fires when an established request is torn down via
	// Disconnect or Remove.
	OnDisconnection func(req *ConnReq)
}

// ConnManager drives connections toward the configured target.
type ConnManager struct {
	cfg Config

	mu      sync.Mutex
	pending map[uint64]*ConnReq
	active  map[uint64]*ConnReq

	lastID  uint64
	started int32
	stopped int32
	quit    chan struct{}
	wg      sync.WaitGroup
}

// New constructs a ConnManager with cfg, applying defaults for unset
// limits.
func New(cfg *Config) (*ConnManager, error) {
	if cfg.Dial == nil {
		return nil, ErrDialNil
	}
	c := *cfg
	if c.TargetOutbound == 0 {
		c.TargetOutbound = defaultTargetOutbound
	}
	if c.RetryDuration <= 0 {
		c.RetryDuration = defaultRetryDuration
	}
	return &ConnManager{
		cfg:     c,
		pending: make(map[uint64]*ConnReq),
		active:  make(map[uint64]*ConnReq),
		quit:    make(chan struct{}),
	}, nil
}

// Start launches the accept loops and fills the outbound target.
func (cm *ConnManager) Start() {
	if !atomic.CompareAndSwapInt32(&cm.started, 0, 1) {
		return
	}
	log.Trace("Connection manager started")

	for _, listener := range cm.cfg.Listeners {
		cm.wg.Add(1)
		go cm.listenHandler(listener)
	}

	for i := 0; i < cm.cfg.TargetOutbound; i++ {
		cm.NewConnReq()
	}
}

// Stop closes the listeners and stops creating new connections. Existing
// connections are left to their owner to close.
func (cm *ConnManager) Stop() {
	if !atomic.CompareAndSwapInt32(&cm.stopped, 0, 1) {
		return
	}
	close(cm.quit)
	for _, listener := range cm.cfg.Listeners {
		listener.Close()
	}
	log.Trace("Connection manager stopped")
}

// Wait blocks until every internal handler has exited after Stop.
func (cm *ConnManager) Wait() {
	cm.wg.Wait()
}

// NewConnReq asks GetNewAddress for a candidate and dials it. Without a
// GetNewAddress source it is a no-op.
func (cm *ConnManager) NewConnReq() {
	if cm.cfg.GetNewAddress == nil {
		return
	}
	if atomic.LoadInt32(&cm.stopped) != 0 {
		return
	}
	addr, err := cm.cfg.GetNewAddress()
	if err != nil {
		// Table exhausted; try again after the retry interval.
		cm.retryAfter(cm.cfg.RetryDuration, nil)
		return
	}
	cm.Connect(&ConnReq{Addr: addr})
}

// Connect dials req now, registering it as pending until the dial
// resolves.
func (cm *ConnManager) Connect(req *ConnReq) {
	if atomic.LoadInt32(&cm.stopped) != 0 {
		return
	}

	cm.mu.Lock()
	if req.id == 0 {
		cm.lastID++
		req.id = cm.lastID
	}
	cm.pending[req.id] = req
	cm.mu.Unlock()

	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()

		log.Debugf("Attempting to connect to %v", req)
		conn, err := cm.cfg.Dial(req.Addr)
		if err != nil {
			cm.handleFailedConn(req, err)
			return
		}

		cm.mu.Lock()
		delete(cm.pending, req.id)
		req.conn = conn
		req.retryCount = 0
		cm.active[req.id] = req
		cm.mu.Unlock()

		log.Debugf("Connected to %v", req)
		if cm.cfg.OnConnection != nil {
			cm.cfg.OnConnection(req, conn)
		}
	}()
}

// handleFailedConn schedules a retry for permanent requests with doubling
// backoff, or replaces the request with a fresh address otherwise.
func (cm *ConnManager) handleFailedConn(req *ConnReq, err error) {
	cm.mu.Lock()
	delete(cm.pending, req.id)
	cm.mu.Unlock()

	if req.Permanent {
		req.retryCount++
		d := time.Duration(1<<uint(req.retryCount-1)) * cm.cfg.RetryDuration
		if d > maxRetryDuration {
			d = maxRetryDuration
		}
		log.Debugf("Failed to connect to %v: %v; retrying in %v", req, err, d)
		cm.retryAfter(d, req)
		return
	}

	log.Debugf("Failed to connect to %v: %v", req, err)
	cm.retryAfter(cm.cfg.RetryDuration, nil)
}

// retryAfter re-dials req (or asks for a new address when req is nil)
// after d, unless the manager stops first.
func (cm *ConnManager) retryAfter(d time.Duration, req *ConnReq) {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			if req != nil {
				cm.Connect(req)
			} else {
				cm.NewConnReq()
			}
		case <-cm.quit:
		}
	}()
}

// Disconnect closes the identified request's connection and, for a
// permanent request, schedules its redial.
func (cm *ConnManager) Disconnect(id uint64) {
	cm.mu.Lock()
	req, ok := cm.active[id]
	if ok {
		delete(cm.active, id)
	}
	cm.mu.Unlock()
	if !ok {
		return
	}

	req.conn.Close()
	if cm.cfg.OnDisconnection != nil {
		cm.cfg.OnDisconnection(req)
	}

	if atomic.LoadInt32(&cm.stopped) != 0 {
		return
	}
	if req.Permanent {
		req.conn = nil
		cm.retryAfter(cm.cfg.RetryDuration, req)
		return
	}
	cm.NewConnReq()
}

// Remove forgets an established request without replacing it, used when
// the owner decided the peer is misbehaving and a lower connection count
// is preferable to an immediate redial.
func (cm *ConnManager) Remove(id uint64) {
	cm.mu.Lock()
	req, ok := cm.active[id]
	if ok {
		delete(cm.active, id)
	}
	cm.mu.Unlock()
	if !ok {
		return
	}
	req.conn.Close()
	if cm.cfg.OnDisconnection != nil {
		cm.cfg.OnDisconnection(req)
	}
}

// ConnectedCount returns the number of established requests, inbound and
// outbound.
func (cm *ConnManager) ConnectedCount() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.active)
}

// listenHandler accepts inbound connections until the listener closes.
func (cm *ConnManager) listenHandler(listener net.Listener) {
	defer cm.wg.Done()
	log.Infof("Server listening on %s", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&cm.stopped) == 0 {
				log.Errorf("Can't accept connection: %v", err)
			}
			return
		}
		cm.mu.Lock()
		cm.lastID++
		req := &ConnReq{id: cm.lastID, Addr: conn.RemoteAddr().String(), conn: conn, Inbound: true}
		cm.active[req.id] = req
		cm.mu.Unlock()
		if cm.cfg.OnConnection != nil {
			cm.cfg.OnConnection(req, conn)
		}
	}
}
