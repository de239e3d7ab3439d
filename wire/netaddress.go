// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"net"
)

// ServiceFlag identifies the services supported by a peer, advertised in
// its version message and addr entries.
type ServiceFlag uint64

const (
	// SFNodeNetwork indicates a peer serves the full chain.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeGetUTXO indicates a peer can answer getutxo requests.
	SFNodeGetUTXO

	// SFNodeBloom indicates a peer supports bloom-filtered connections.
	SFNodeBloom
)

// NetAddress describes a peer on the network, as carried in version and
// addr messages.
type NetAddress struct {
	Timestamp uint32
	Services  ServiceFlag
	IP        net.IP
	Port      uint16
}

func (na *NetAddress) encode(w io.Writer, withTimestamp bool) error {
	if withTimestamp {
		if err := writeElement(w, na.Timestamp); err != nil {
			return err
		}
	}
	if err := writeElement(w, uint64(na.Services)); err != nil {
		return err
	}
	var ip [16]byte
	copy(ip[:], na.IP.To16())
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}
	return writeElement(w, na.Port)
}

func (na *NetAddress) decode(r io.Reader, withTimestamp bool) error {
	if withTimestamp {
		if err := readElement(r, &na.Timestamp); err != nil {
			return err
		}
	}
	var services uint64
	if err := readElement(r, &services); err != nil {
		return err
	}
	na.Services = ServiceFlag(services)

	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	na.IP = net.IP(append([]byte(nil), ip[:]...))

	return readElement(r, &na.Port)
}
