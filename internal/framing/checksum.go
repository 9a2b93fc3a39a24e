// -*- Mode: Go; indent-tabs-mode: t -*-

// Package framing implements the four wire-framing patterns spec.md
// §4.4 enumerates as the only ones implementers of this system
// encounter: escape-of-reserved, DLE-sentinel, fixed-header-length,
// and idiosyncratic bytestream. Each is a small, reusable codec; a
// driver picks one and supplies its own opcode/length tables.
package framing

// XOR computes the XOR-accumulator checksum spec.md §4.4 names as one
// of the three checksum styles drivers use.
func XOR(data []byte) byte {
	var c byte
	for _, b := range data {
		c ^= b
	}
	return c
}

// Sum8 computes the byte-sum checksum (mod 256), the second style
// spec.md §4.4 names.
func Sum8(data []byte) byte {
	var s byte
	for _, b := range data {
		s += b
	}
	return s
}
