// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the Corvid peer-to-peer wire protocol: frame
// layout, per-network magic, and the message set exchanged between peers.
package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

// BitcoinNet represents which Corvid network a message belongs to.
type BitcoinNet uint32

// Constants used to indicate the message Corvid network. Every frame header
// carries one of these as its first four bytes.
const (
	// MainNet represents the main Corvid network.
	MainNet BitcoinNet = 0xc0d1d9a1

	// TestNet represents the test network.
	TestNet BitcoinNet = 0x0c0d1d9a

	// RegNet represents the regression test network, used for a single
	// operator-controlled chain.
	RegNet BitcoinNet = 0xda11ce00

	// UniTest represents the network used exclusively by unit tests; it
	// has no peers and no on-disk footprint beyond what a test creates.
	UniTest BitcoinNet = 0xffffffff
)

// String returns the BitcoinNet in human-readable form.
func (n BitcoinNet) String() string {
	switch n {
	case MainNet:
		return "mainnet"
	case TestNet:
		return "testnet"
	case RegNet:
		return "regtest"
	case UniTest:
		return "unitest"
	default:
		return fmt.Sprintf("unknown network (%d)", uint32(n))
	}
}

const (
	// CommandSize is the fixed size in bytes of a message command.
	CommandSize = 12

	// MessageHeaderSize is the number of bytes in a message header:
	// 4 byte magic + 12 byte command + 4 byte payload length + 4 byte checksum.
	MessageHeaderSize = 24

	// MaxMessagePayload is the maximum bytes a message payload may be.
	MaxMessagePayload = (1024 * 1024 * 32) // 32MB

	// ProtocolVersion is the latest protocol version this implementation
	// supports and negotiates by default.
	ProtocolVersion uint32 = 70016

	// MinAcceptableProtocolVersion is the minimum protocol version this
	// node accepts from a remote peer during handshake.
	MinAcceptableProtocolVersion uint32 = 70001
)

// Message command strings.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdAddr        = "addr"
	CmdGetAddr     = "getaddr"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdNotFound    = "notfound"
	CmdGetBlocks   = "getblocks"
	CmdGetHeaders  = "getheaders"
	CmdHeaders     = "headers"
	CmdBlock       = "block"
	CmdTx          = "tx"
	CmdMemPool     = "mempool"
	CmdReject      = "reject"
	CmdSendHeaders = "sendheaders"
	CmdSendCmpct   = "sendcmpct"
)

// checksum returns the first four bytes of the double-SHA256 of data, used
// as the wire frame's checksum field.
func checksum(data []byte) [4]byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	var cksum [4]byte
	copy(cksum[:], second[:4])
	return cksum
}

// readElement reads a single fixed-size little-endian integer from r into
// element, which must be a pointer to one of the supported integer types.
func readElement(r io.Reader, element interface{}) error {
	return binary.Read(r, binary.LittleEndian, element)
}

// writeElement writes a single fixed-size little-endian integer from
// element to w.
func writeElement(w io.Writer, element interface{}) error {
	return binary.Write(w, binary.LittleEndian, element)
}

// readVarInt reads a variable length integer from r using the Corvid
// variable length integer encoding and returns it as a uint64.
func readVarInt(r io.Reader) (uint64, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	switch b[0] {
	case 0xff:
		var v uint64
		if err := readElement(r, &v); err != nil {
			return 0, err
		}
		return v, nil
	case 0xfe:
		var v uint32
		if err := readElement(r, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfd:
		var v uint16
		if err := readElement(r, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	default:
		return uint64(b[0]), nil
	}
}

// writeVarInt writes val to w using the Corvid variable length integer
// encoding.
func writeVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}
	if val <= 0xffff {
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		return writeElement(w, uint16(val))
	}
	if val <= 0xffffffff {
		if _, err := w.Write([]byte{0xfe}); err != nil {
			return err
		}
		return writeElement(w, uint32(val))
	}
	if _, err := w.Write([]byte{0xff}); err != nil {
		return err
	}
	return writeElement(w, val)
}

// readVarBytes reads a variable length byte array preceded by a var-int
// length and bounded by maxAllowed, naming field for error messages.
func readVarBytes(r io.Reader, maxAllowed uint64, field string) ([]byte, error) {
	count, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		return nil, fmt.Errorf("%s exceeds max length %d", field, maxAllowed)
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeVarBytes writes b to w as a var-int length prefix followed by the
// raw bytes.
func writeVarBytes(w io.Writer, b []byte) error {
	if err := writeVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readVarString reads a variable length string preceded by a var-int length.
func readVarString(r io.Reader, maxAllowed uint64) (string, error) {
	b, err := readVarBytes(r, maxAllowed, "string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeVarString writes s to w as a var-int length prefix followed by the
// raw bytes of s.
func writeVarString(w io.Writer, s string) error {
	return writeVarBytes(w, []byte(s))
}
