// -*- Mode: Go; indent-tabs-mode: t -*-
package canutec

import "github.com/gobraille/brld/internal/framing"

// subProtocol is the common shape the three candidate framers are
// adapted to, so Open and pumpIncoming can treat "which sub-protocol
// answered" as an implementation detail fixed once at probe time.
type subProtocol interface {
	encode(opcode byte, payload []byte) []byte
	feed(data []byte)
	next() (opcode byte, payload []byte, ok bool)
}

// lengthAdapter wraps the native fixed-header-length framer, which has
// no embedded opcode of its own; opcode is carried as payload[0].
type lengthAdapter struct {
	codec  framing.LengthCodec
	reader *framing.LengthReader
}

func newLengthAdapter(codec framing.LengthCodec) *lengthAdapter {
	return &lengthAdapter{codec: codec, reader: codec.NewReader()}
}

func (a *lengthAdapter) encode(opcode byte, payload []byte) []byte {
	return a.codec.Encode(append([]byte{opcode}, payload...))
}

func (a *lengthAdapter) feed(data []byte) { a.reader.Feed(data) }

func (a *lengthAdapter) next() (byte, []byte, bool) {
	payload, ok := a.reader.Next()
	if !ok || len(payload) == 0 {
		return 0, nil, false
	}
	return payload[0], payload[1:], true
}

// dleAdapter wraps the legacy DLE-sentinel framer, also carrying
// opcode as payload[0]; frames that fail checksum are discarded
// silently (spec.md §7 protocol_error) rather than surfaced.
type dleAdapter struct {
	codec  framing.DLECodec
	reader *framing.DLEReader
}

func newDLEAdapter(codec framing.DLECodec) *dleAdapter {
	return &dleAdapter{codec: codec, reader: codec.NewReader()}
}

func (a *dleAdapter) encode(opcode byte, payload []byte) []byte {
	return a.codec.Encode(append([]byte{opcode}, payload...))
}

func (a *dleAdapter) feed(data []byte) { a.reader.Feed(data) }

func (a *dleAdapter) next() (byte, []byte, bool) {
	for {
		payload, ok, valid := a.reader.Next()
		if !ok {
			return 0, nil, false
		}
		if !valid || len(payload) == 0 {
			continue
		}
		return payload[0], payload[1:], true
	}
}

// escapeAdapter wraps the escape-of-reserved compatibility framer,
// which already carries opcode as a distinct field.
type escapeAdapter struct {
	codec  framing.EscapeCodec
	reader *framing.Reader
}

func newEscapeAdapter(codec framing.EscapeCodec) *escapeAdapter {
	return &escapeAdapter{codec: codec, reader: framing.NewReader(codec)}
}

func (a *escapeAdapter) encode(opcode byte, payload []byte) []byte {
	return a.codec.Encode(opcode, payload)
}

func (a *escapeAdapter) feed(data []byte) { a.reader.Feed(data) }

func (a *escapeAdapter) next() (byte, []byte, bool) {
	return a.reader.Next()
}
