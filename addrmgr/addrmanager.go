// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr maintains the node table: every peer address this node
// has heard of, with last-seen and last-attempt timestamps, persisted to
// disk so a restarted node can reconnect without waiting on DNS seeds.
package addrmgr

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/corvid-chain/corvidd/wire"
)

const (
	// peersFilename is the node table's on-disk name under the network's
	// data directory.
	peersFilename = "peers.json"

	// dumpInterval is how often the running manager persists the table.
	dumpInterval = 2 * time.Minute

	// staleCutoff is how long an address may go unseen before GetAddress
	// stops proposing it.
	staleCutoff = 30 * 24 * time.Hour

	// retryCooldown is how long after a failed attempt an address is
	// excluded from selection.
	retryCooldown = 10 * time.Minute
)

// KnownAddress is one node-table entry: an address plus the bookkeeping
// the selection policy needs.
type KnownAddress struct {
	Address     string           `json:"address"`
	Services    wire.ServiceFlag `json:"services"`
	LastSeen    time.Time        `json:"lastseen"`
	LastAttempt time.Time        `json:"lastattempt,omitempty"`
	LastSuccess time.Time        `json:"lastsuccess,omitempty"`
	Attempts    int              `json:"attempts,omitempty"`
}

// serializedTable is the on-disk shape of the node table.
type serializedTable struct {
	Version   int             `json:"version"`
	Addresses []*KnownAddress `json:"addresses"`
}

const tableVersion = 1

// AddrManager is the node table. A single mutex guards it; contention is
// acceptable at the rate addresses arrive.
type AddrManager struct {
	mu       sync.Mutex
	peersDir string
	addrs    map[string]*KnownAddress
	rand     *rand.Rand

	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// New returns an AddrManager persisting its table under dataDir, loading
// any table a previous run left behind.
func New(dataDir string) *AddrManager {
	am := &AddrManager{
		peersDir: dataDir,
		addrs:    make(map[string]*KnownAddress),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quit:     make(chan struct{}),
	}
	am.load()
	return am
}

// Start launches the periodic persistence loop.
func (am *AddrManager) Start() {
	am.mu.Lock()
	defer am.mu.Unlock()
	if am.started {
		return
	}
	am.started = true
	am.wg.Add(1)
	go am.persistLoop()
}

// Stop flushes the table and halts the persistence loop.
func (am *AddrManager) Stop() error {
	am.mu.Lock()
	if !am.started {
		am.mu.Unlock()
		return nil
	}
	am.started = false
	am.mu.Unlock()

	close(am.quit)
	am.wg.Wait()
	return am.save()
}

func (am *AddrManager) persistLoop() {
	defer am.wg.Done()
	ticker := time.NewTicker(dumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := am.save(); err != nil {
				log.Errorf("Failed to persist node table: %v", err)
			}
		case <-am.quit:
			return
		}
	}
}

// AddAddress records addr as heard of now, or refreshes its services and
// last-seen time if already known.
func (am *AddrManager) AddAddress(addr string, services wire.ServiceFlag) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		log.Debugf("Rejecting malformed address %q: %v", addr, err)
		return
	}
	am.mu.Lock()
	defer am.mu.Unlock()
	if ka, ok := am.addrs[addr]; ok {
		ka.LastSeen = time.Now()
		ka.Services = services
		return
	}
	am.addrs[addr] = &KnownAddress{
		Address:  addr,
		Services: services,
		LastSeen: time.Now(),
	}
}

// AddAddresses records every entry of a peer's addr message.
func (am *AddrManager) AddAddresses(addrs []*wire.NetAddress) {
	for _, na := range addrs {
		host := net.JoinHostPort(na.IP.String(), strconv.Itoa(int(na.Port)))
		am.AddAddress(host, na.Services)
	}
}

// Attempt records that a connection to addr was just tried.
func (am *AddrManager) Attempt(addr string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if ka, ok := am.addrs[addr]; ok {
		ka.LastAttempt = time.Now()
		ka.Attempts++
	}
}

// Good records a completed handshake with addr, resetting its failure
// count and retry cooldown and marking it seen now.
func (am *AddrManager) Good(addr string, services wire.ServiceFlag) {
	am.mu.Lock()
	defer am.mu.Unlock()
	ka, ok := am.addrs[addr]
	if !ok {
		ka = &KnownAddress{Address: addr}
		am.addrs[addr] = ka
	}
	now := time.Now()
	ka.Services = services
	ka.LastSeen = now
	ka.LastSuccess = now
	ka.LastAttempt = time.Time{}
	ka.Attempts = 0
}

// GetAddress proposes an address to dial: uniformly random over entries
// that are not stale, not in their retry cooldown, and that advertise all
// of wantServices. ok is false when no entry qualifies.
func (am *AddrManager) GetAddress(wantServices wire.ServiceFlag) (*KnownAddress, bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := time.Now()
	candidates := make([]*KnownAddress, 0, len(am.addrs))
	for _, ka := range am.addrs {
		if now.Sub(ka.LastSeen) > staleCutoff {
			continue
		}
		if !ka.LastAttempt.IsZero() && now.Sub(ka.LastAttempt) < retryCooldown {
			continue
		}
		if ka.Services&wantServices != wantServices {
			continue
		}
		candidates = append(candidates, ka)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	ka := candidates[am.rand.Intn(len(candidates))]
	copied := *ka
	return &copied, true
}

// AddressCache returns a shuffled snapshot of up to max addresses, the
// shape a getaddr reply wants.
func (am *AddrManager) AddressCache(max int) []*KnownAddress {
	am.mu.Lock()
	defer am.mu.Unlock()

	out := make([]*KnownAddress, 0, len(am.addrs))
	for _, ka := range am.addrs {
		copied := *ka
		out = append(out, &copied)
	}
	am.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// NumAddresses returns the table's current size.
func (am *AddrManager) NumAddresses() int {
	am.mu.Lock()
	defer am.mu.Unlock()
	return len(am.addrs)
}

func (am *AddrManager) load() {
	path := filepath.Join(am.peersDir, peersFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Failed to read node table %s: %v", path, err)
		}
		return
	}
	var table serializedTable
	if err := json.Unmarshal(raw, &table); err != nil {
		log.Warnf("Discarding unparsable node table %s: %v", path, err)
		return
	}
	if table.Version != tableVersion {
		log.Warnf("Discarding node table %s with unknown version %d", path, table.Version)
		return
	}
	for _, ka := range table.Addresses {
		am.addrs[ka.Address] = ka
	}
	log.Infof("Loaded %d addresses from node table", len(am.addrs))
}

// save writes the table atomically: a temp file rename so a crash mid-dump
// never truncates the previous table.
func (am *AddrManager) save() error {
	am.mu.Lock()
	table := serializedTable{Version: tableVersion}
	for _, ka := range am.addrs {
		copied := *ka
		table.Addresses = append(table.Addresses, &copied)
	}
	am.mu.Unlock()

	raw, err := json.MarshalIndent(&table, "", "  ")
	if err != nil {
		return fmt.Errorf("addrmgr: marshaling node table: %w", err)
	}

	path := filepath.Join(am.peersDir, peersFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("addrmgr: writing node table: %w", err)
	}
	return os.Rename(tmp, path)
}
