// -*- Mode: Go; indent-tabs-mode: t -*-

// Package serialport is the serial transport backend for
// `serial:<path>` device specs (spec.md §6). It wraps
// github.com/goburrow/serial, the direct transport dependency the
// teacher pulled in (indirectly, via goburrow/modbus) for exactly
// this purpose in example/device-modbus/modbus.go's createRTUDevice.
package serialport

import (
	"io"
	"time"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"

	"github.com/gobraille/brld/internal/transport"
)

// Port adapts a *serial.Port to the transport.SerialPort contract.
type Port struct {
	cfg    serial.Config
	port   io.ReadWriteCloser
	closed bool
}

// Open opens the serial device at p.Address with the given framing.
// Baud defaults to 9600 when zero; data bits default to 8.
func Open(p transport.OpenParams) (*Port, error) {
	cfg := serial.Config{
		Address:  p.Address,
		BaudRate: p.BaudRate,
		DataBits: p.DataBits,
		StopBits: p.StopBits,
		Parity:   string(byte(p.Parity)),
		Timeout:  p.Timeout,
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.Parity == "" {
		cfg.Parity = "N"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}

	sp, err := serial.Open(&cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "serialport: open %s", p.Address)
	}
	return &Port{cfg: cfg, port: sp}, nil
}

// Await blocks up to timeout waiting for at least one byte. goburrow/serial
// has no select-style primitive, so Await degrades to a zero-length
// probe read bounded by timeout.
func (p *Port) Await(timeout time.Duration) (bool, error) {
	type deadliner interface {
		SetReadTimeout(time.Duration) error
	}
	if d, ok := p.port.(deadliner); ok {
		_ = d.SetReadTimeout(timeout)
		defer d.SetReadTimeout(p.cfg.Timeout)
	}
	buf := make([]byte, 1)
	n, err := p.port.Read(buf)
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, errors.Wrap(err, "serialport: await")
	}
	return n > 0, nil
}

// Read fills buf. When wait is false and the port would block, it
// returns (0, nil) immediately rather than surface the platform's
// EAGAIN/timeout error, per spec.md §4.2.
func (p *Port) Read(buf []byte, wait bool) (int, error) {
	n, err := p.port.Read(buf)
	if err != nil {
		if err == io.EOF || isTimeout(err) {
			if !wait {
				return 0, nil
			}
			return 0, nil
		}
		return 0, errors.Wrap(err, "serialport: read")
	}
	return n, nil
}

func (p *Port) Write(data []byte) (int, error) {
	n, err := p.port.Write(data)
	if err != nil {
		return n, errors.Wrap(err, "serialport: write")
	}
	return n, nil
}

// Discard drops buffered input. goburrow/serial exposes no explicit
// flush, so this reads and throws away whatever is immediately
// available.
func (p *Port) Discard() error {
	buf := make([]byte, 256)
	for {
		n, err := p.port.Read(buf)
		if err != nil || n == 0 {
			return nil
		}
	}
}

// Drain is a no-op: goburrow/serial writes synchronously with no
// internal output queue to flush.
func (p *Port) Drain() error { return nil }

func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}

// SetBaud, SetParity, SetFlowControl, SetDTR, SetRTS implement
// transport.SerialPort. goburrow/serial requires a full reopen to
// renegotiate framing (used for baud renegotiation, spec.md §4.4);
// after reconfiguring, callers must honor transport.ReconfigureSettle
// before the next I/O.
func (p *Port) SetBaud(baud int) error {
	p.cfg.BaudRate = baud
	return p.reopen()
}

func (p *Port) SetParity(parity transport.Parity) error {
	p.cfg.Parity = string(byte(parity))
	return p.reopen()
}

// SetFlowControl is a no-op: goburrow/serial has no hardware flow
// control knob, and no driver in this module relies on it (they pace
// writes via transport.WriteDelay instead, per spec.md §4.2).
func (p *Port) SetFlowControl(transport.FlowControl) error { return nil }

// SetDTR and SetRTS are unsupported by goburrow/serial's portable
// Config surface; devices that need line-level reset cycle power via
// a probe/ping sequence instead (spec.md §4.4).
func (p *Port) SetDTR(bool) error { return errors.New("serialport: DTR control unsupported") }
func (p *Port) SetRTS(bool) error { return errors.New("serialport: RTS control unsupported") }

func (p *Port) reopen() error {
	if err := p.port.Close(); err != nil {
		return errors.Wrap(err, "serialport: close for reconfigure")
	}
	sp, err := serial.Open(&p.cfg)
	if err != nil {
		return errors.Wrap(err, "serialport: reopen after reconfigure")
	}
	p.port = sp
	time.Sleep(transport.ReconfigureSettle)
	return nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}

var _ transport.SerialPort = (*Port)(nil)
