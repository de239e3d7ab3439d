// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Message is implemented by every wire payload type. MinVersion gates
// deserialization: if a peer's negotiated version is below it, decoding the
// payload fails with ErrInvalidVersion.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MinVersion() uint32
}

// messageHeader holds the header fields of a wire message.
type messageHeader struct {
	magic    BitcoinNet
	command  string
	length   uint32
	checksum [4]byte
}

// readMessageHeader reads a 24-byte frame header from r.
func readMessageHeader(r io.Reader) (*messageHeader, int, error) {
	var headerBytes [MessageHeaderSize]byte
	n, err := io.ReadFull(r, headerBytes[:])
	if err != nil {
		return nil, n, err
	}

	hr := bytes.NewReader(headerBytes[:])
	hdr := &messageHeader{}

	var magic uint32
	if err := readElement(hr, &magic); err != nil {
		return nil, n, err
	}
	hdr.magic = BitcoinNet(magic)

	var command [CommandSize]byte
	if _, err := io.ReadFull(hr, command[:]); err != nil {
		return nil, n, err
	}
	hdr.command = commandString(command)

	if err := readElement(hr, &hdr.length); err != nil {
		return nil, n, err
	}
	if _, err := io.ReadFull(hr, hdr.checksum[:]); err != nil {
		return nil, n, err
	}

	return hdr, n, nil
}

// commandString trims the zero padding from a fixed 12-byte command field.
func commandString(raw [CommandSize]byte) string {
	i := bytes.IndexByte(raw[:], 0)
	if i == -1 {
		i = len(raw)
	}
	return string(raw[:i])
}

// commandBytes encodes a command name into its fixed 12-byte, zero-padded
// wire form, returning an error if cmd is longer than CommandSize.
func commandBytes(cmd string) ([CommandSize]byte, error) {
	var buf [CommandSize]byte
	if len(cmd) > CommandSize {
		return buf, fmt.Errorf("command %q exceeds max length %d", cmd, CommandSize)
	}
	copy(buf[:], cmd)
	return buf, nil
}

// WriteMessageN writes a wire frame for msg to w under the given network
// magic and negotiated protocol version, returning the number of bytes
// written. This is the symmetric construction to ReadMessageN.
func WriteMessageN(w io.Writer, msg Message, pver uint32, net BitcoinNet) (int, error) {
	var payload bytes.Buffer
	if err := msg.BtcEncode(&payload, pver); err != nil {
		return 0, err
	}
	payloadBytes := payload.Bytes()
	if len(payloadBytes) > MaxMessagePayload {
		return 0, messageError(ErrPayloadTooLarge,
			fmt.Sprintf("message payload of %d bytes exceeds max of %d", len(payloadBytes), MaxMessagePayload))
	}

	cmdBytes, err := commandBytes(msg.Command())
	if err != nil {
		return 0, err
	}
	cksum := checksum(payloadBytes)

	var header bytes.Buffer
	header.Grow(MessageHeaderSize)
	if err := writeElement(&header, uint32(net)); err != nil {
		return 0, err
	}
	if _, err := header.Write(cmdBytes[:]); err != nil {
		return 0, err
	}
	if err := writeElement(&header, uint32(len(payloadBytes))); err != nil {
		return 0, err
	}
	if _, err := header.Write(cksum[:]); err != nil {
		return 0, err
	}

	n1, err := w.Write(header.Bytes())
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(payloadBytes)
	return n1 + n2, err
}

// ReadMessageN reads a single wire frame from r, verifying its magic and
// checksum, and dispatching to newEmptyMessage to construct the payload
// type for the frame's declared command: verify magic, verify checksum,
// then version-gated decode.
func ReadMessageN(r io.Reader, pver uint32, net BitcoinNet, newEmptyMessage func(command string) (Message, error)) (Message, []byte, error) {
	hdr, _, err := readMessageHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if hdr.magic != net {
		return nil, nil, messageError(ErrInvalidMagic,
			fmt.Sprintf("message from network %s is not for network %s", hdr.magic, net))
	}
	if hdr.length > MaxMessagePayload {
		return nil, nil, messageError(ErrPayloadTooLarge,
			fmt.Sprintf("payload length of %d exceeds max of %d", hdr.length, MaxMessagePayload))
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}

	gotChecksum := checksum(payload)
	if gotChecksum != hdr.checksum {
		return nil, nil, messageError(ErrInvalidChecksum,
			fmt.Sprintf("payload checksum %x does not match header checksum %x", gotChecksum, hdr.checksum))
	}

	msg, err := newEmptyMessage(hdr.command)
	if err != nil {
		return nil, payload, err
	}
	if msg == nil {
		// Unknown command: surfaced to the caller but not fatal, peers
		// may legitimately advertise newer messages.
		return nil, payload, nil
	}

	if msg.MinVersion() > pver {
		return nil, payload, messageError(ErrInvalidVersion,
			fmt.Sprintf("message %s requires protocol version >= %d, negotiated %d", hdr.command, msg.MinVersion(), pver))
	}

	if err := msg.BtcDecode(bytes.NewReader(payload), pver); err != nil {
		return nil, payload, err
	}
	return msg, payload, nil
}

// ReadAnyMessage reads a single frame and returns its command and raw
// payload without attempting to decode it.
func ReadAnyMessage(r io.Reader, net BitcoinNet) (string, []byte, error) {
	hdr, _, err := readMessageHeader(r)
	if err != nil {
		return "", nil, err
	}
	if hdr.magic != net {
		return "", nil, messageError(ErrInvalidMagic,
			fmt.Sprintf("message from network %s is not for network %s", hdr.magic, net))
	}
	if hdr.length > MaxMessagePayload {
		return "", nil, messageError(ErrPayloadTooLarge,
			fmt.Sprintf("payload length of %d exceeds max of %d", hdr.length, MaxMessagePayload))
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, err
	}
	if checksum(payload) != hdr.checksum {
		return "", nil, messageError(ErrInvalidChecksum, "checksum mismatch")
	}
	return hdr.command, payload, nil
}

// ReadTypedMessage reads a single frame and requires its command to match
// exactly want.Command(), rejecting with ErrInvalidCommand otherwise, and
// decodes the payload into want.
func ReadTypedMessage(r io.Reader, pver uint32, net BitcoinNet, want Message) error {
	hdr, _, err := readMessageHeader(r)
	if err != nil {
		return err
	}
	if hdr.magic != net {
		return messageError(ErrInvalidMagic, fmt.Sprintf("message from network %s is not for network %s", hdr.magic, net))
	}
	if hdr.command != want.Command() {
		return messageError(ErrInvalidCommand, fmt.Sprintf("got command %q, want %q", hdr.command, want.Command()))
	}
	if hdr.length > MaxMessagePayload {
		return messageError(ErrPayloadTooLarge, fmt.Sprintf("payload length of %d exceeds max of %d", hdr.length, MaxMessagePayload))
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	if checksum(payload) != hdr.checksum {
		return messageError(ErrInvalidChecksum, "checksum mismatch")
	}
	if want.MinVersion() > pver {
		return messageError(ErrInvalidVersion, fmt.Sprintf("message %s requires protocol version >= %d, negotiated %d", hdr.command, want.MinVersion(), pver))
	}
	return want.BtcDecode(bytes.NewReader(payload), pver)
}
