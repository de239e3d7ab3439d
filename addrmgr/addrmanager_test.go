// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"net"
	"strconv"
	"testing"

	"github.com/corvid-chain/corvidd/wire"
)

func TestAddAndGetAddress(t *testing.T) {
	am := New(t.TempDir())

	am.AddAddress("10.0.0.1:9333", wire.SFNodeNetwork)
	am.AddAddress("10.0.0.2:9333", wire.SFNodeNetwork|wire.SFNodeBloom)
	if am.NumAddresses() != 2 {
		t.Fatalf("have %d addresses, want 2", am.NumAddresses())
	}

	// Only the second entry advertises bloom support.
	ka, ok := am.GetAddress(wire.SFNodeNetwork | wire.SFNodeBloom)
	if !ok {
		t.Fatal("no address proposed")
	}
	if ka.Address != "10.0.0.2:9333" {
		t.Fatalf("proposed %s, want the bloom-capable peer", ka.Address)
	}

	// Nothing advertises getutxo.
	if _, ok := am.GetAddress(wire.SFNodeGetUTXO); ok {
		t.Fatal("proposed an address lacking the wanted services")
	}
}

func TestMalformedAddressRejected(t *testing.T) {
	am := New(t.TempDir())
	am.AddAddress("not-an-address", wire.SFNodeNetwork)
	if am.NumAddresses() != 0 {
		t.Fatalf("malformed address was admitted to the table")
	}
}

func TestAttemptCooldown(t *testing.T) {
	am := New(t.TempDir())
	am.AddAddress("10.0.0.1:9333", wire.SFNodeNetwork)

	am.Attempt("10.0.0.1:9333")
	if _, ok := am.GetAddress(wire.SFNodeNetwork); ok {
		t.Fatal("address proposed during its retry cooldown")
	}

	// A completed handshake resets the failure bookkeeping, and the entry
	// becomes selectable again.
	am.Good("10.0.0.1:9333", wire.SFNodeNetwork)
	ka, ok := am.GetAddress(wire.SFNodeNetwork)
	if !ok {
		t.Fatal("address not proposed after Good")
	}
	if ka.Attempts != 0 {
		t.Fatalf("attempts = %d after Good, want 0", ka.Attempts)
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	am := New(dir)
	am.AddAddresses([]*wire.NetAddress{
		{IP: net.ParseIP("10.0.0.1"), Port: 9333, Services: wire.SFNodeNetwork},
		{IP: net.ParseIP("2001:db8::1"), Port: 9333, Services: wire.SFNodeNetwork},
	})
	if err := am.save(); err != nil {
		t.Fatalf("saving node table: %v", err)
	}

	reloaded := New(dir)
	if reloaded.NumAddresses() != 2 {
		t.Fatalf("reloaded %d addresses, want 2", reloaded.NumAddresses())
	}
	ka, ok := reloaded.GetAddress(wire.SFNodeNetwork)
	if !ok {
		t.Fatal("no address proposed from the reloaded table")
	}
	if ka.Services != wire.SFNodeNetwork {
		t.Fatalf("reloaded services %v, want SFNodeNetwork", ka.Services)
	}
}

func TestAddressCacheBounded(t *testing.T) {
	am := New(t.TempDir())
	for i := 0; i < 50; i++ {
		am.AddAddress(net.JoinHostPort("10.0.0.1", strconv.Itoa(9000+i)), wire.SFNodeNetwork)
	}
	if got := len(am.AddressCache(23)); got != 23 {
		t.Fatalf("cache returned %d entries, want 23", got)
	}
}
