// -*- Mode: Go; indent-tabs-mode: t -*-

// Package transport implements the uniform blocking/poll/timeout I/O
// interface of spec.md §4.2 that every protocol engine is written
// against, with one concrete backend per wire (serial, USB,
// Bluetooth, TCP) plus a deterministic in-memory fake for tests.
package transport

import "time"

// Port is the backend-independent operation set spec.md §4.2
// requires. Concrete backends live in serialport, usbport, btport,
// netport and mocktransport; drivers never import those packages directly, only
// this interface and the registry-supplied constructor.
type Port interface {
	// Await returns true iff at least one byte becomes readable within
	// timeout. It returns false on timeout and only fails on
	// disconnection.
	Await(timeout time.Duration) (bool, error)

	// Read fills buf and returns the number of bytes read. When wait is
	// false it returns 0 immediately if nothing is available; when wait
	// is true it blocks up to an internal short timeout. Reads may
	// return short counts — reassembly is the protocol engine's job.
	Read(buf []byte, wait bool) (int, error)

	// Write sends data and returns the number of bytes written.
	Write(data []byte) (int, error)

	// Discard drops any buffered, unread input.
	Discard() error

	// Drain blocks until all previously queued output has left the
	// port.
	Drain() error

	// Close releases the underlying OS resource. Idempotent.
	Close() error
}

// SerialPort is implemented by backends that additionally support
// serial-specific reconfiguration (spec.md §4.2).
type SerialPort interface {
	Port

	SetBaud(baud int) error
	SetParity(parity Parity) error
	SetFlowControl(flow FlowControl) error

	// DTR/RTS modem-line control, used by a handful of vendors to
	// signal reset or wake a sleeping display.
	SetDTR(on bool) error
	SetRTS(on bool) error
}

// Parity mirrors the small enumeration every serial backend in the
// pack exposes (goburrow/serial's Config.Parity is a one-letter
// string; this keeps the same values as named constants instead of
// scattering "N"/"E"/"O" literals through driver code).
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityEven Parity = 'E'
	ParityOdd  Parity = 'O'
)

// FlowControl selects hardware or no flow control. None of the
// drivers in this module need software (XON/XOFF) flow control; the
// devices that lack hardware flow control are instead paced by
// WriteDelay (see below).
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
)

// OpenParams carries the parsed device_spec address plus the serial
// line settings and read timeout, shared by every backend's Open
// constructor.
type OpenParams struct {
	// Address is the backend-specific remainder of the device_spec URI
	// (the path for serial, the vendor:product[:index] selector for
	// USB, the address for Bluetooth, the host[:port] for net).
	Address string
	// BaudRate, DataBits, StopBits, Parity are serial-only and ignored
	// by other backends.
	BaudRate int
	DataBits int
	StopBits int
	Parity   Parity
	// Timeout bounds the internal short read documented on Port.Read.
	Timeout time.Duration
}

// WriteDelay computes the spec.md §4.2 inter-write credit: enough
// time for n bytes to leave the wire at baud, plus 1ms of slack, so a
// driver without hardware flow control never outruns a display that
// has none either.
func WriteDelay(n int, baud int, bitsPerChar int) time.Duration {
	if baud <= 0 || bitsPerChar <= 0 {
		return 0
	}
	charsPerSecond := baud / bitsPerChar
	if charsPerSecond <= 0 {
		return time.Millisecond
	}
	ms := (n*1000)/charsPerSecond + 1
	return time.Duration(ms) * time.Millisecond
}

// ReconfigureSettle is the spec.md §4.2 wait after a baud change
// before the first I/O.
const ReconfigureSettle = 100 * time.Millisecond
