// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"errors"
	"net"
	"time"

	"github.com/decred/go-socks/socks"
)

// dialTimeout bounds a single TCP connect attempt.
const dialTimeout = 30 * time.Second

// NetRestriction limits which address families outbound dials may use,
// the --only-net setting.
type NetRestriction int

const (
	// NetAny allows both IPv4 and IPv6 dials.
	NetAny NetRestriction = iota

	// NetIPv4Only rejects IPv6 destinations.
	NetIPv4Only

	// NetIPv6Only rejects IPv4 destinations.
	NetIPv6Only
)

// ErrNetRestricted is returned when a dial target's address family is
// excluded by the configured restriction.
var ErrNetRestricted = errors.New("connmgr: address family excluded by onlynet")

// TCPDialer returns a Dial function performing plain TCP connects,
// filtered by the address-family restriction.
func TCPDialer(restrict NetRestriction) func(string) (net.Conn, error) {
	return func(addr string) (net.Conn, error) {
		if err := checkRestriction(addr, restrict); err != nil {
			return nil, err
		}
		return net.DialTimeout("tcp", addr, dialTimeout)
	}
}

// ProxyDialer returns a Dial function routing every connect through the
// SOCKS5 proxy at proxyAddr. TorIsolation gives every dial its own proxy
// credentials so an observing exit cannot correlate the node's circuits.
func ProxyDialer(proxyAddr, username, password string, torIsolation bool, restrict NetRestriction) func(string) (net.Conn, error) {
	proxy := &socks.Proxy{
		Addr:         proxyAddr,
		Username:     username,
		Password:     password,
		TorIsolation: torIsolation,
	}
	return func(addr string) (net.Conn, error) {
		if err := checkRestriction(addr, restrict); err != nil {
			return nil, err
		}
		return proxy.Dial("tcp", addr)
	}
}

func checkRestriction(addr string, restrict NetRestriction) error {
	if restrict == NetAny {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// Hostnames resolve at dial time; the restriction cannot be
		// checked here and is left to the resolver's family preference.
		return nil
	}
	isV4 := ip.To4() != nil
	if restrict == NetIPv4Only && !isV4 {
		return ErrNetRestricted
	}
	if restrict == NetIPv6Only && isV4 {
		return ErrNetRestricted
	}
	return nil
}
