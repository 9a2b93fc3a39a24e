// -*- Mode: Go; indent-tabs-mode: t -*-

// Package mocktransport is a deterministic, scriptable in-memory
// transport.Port used by every driver's tests to exercise spec.md §8's
// end-to-end scenarios without real hardware. It mirrors the
// teacher's own substitution pattern (internal/cache/init_test.go
// swaps in a mock.DeviceClientMock in place of a live EdgeX client)
// applied to a byte-stream transport instead of an HTTP client.
package mocktransport

import (
	"bytes"
	"sync"
	"time"
)

// Port is a loopback byte pipe: bytes written by the driver land in
// out, and bytes queued via Feed become readable by the driver.
// The writes slice accumulates every Write call verbatim so tests
// can assert exact wire bytes (spec.md §8 scenarios name exact frame
// contents).
type Port struct {
	mu      sync.Mutex
	in      bytes.Buffer // bytes the driver will Read
	out     bytes.Buffer // bytes the driver has Written
	writes  [][]byte
	closed  bool
	onWrite func(data []byte) // optional hook, e.g. to script an ACK reply
}

// New returns an empty mock port.
func New() *Port { return &Port{} }

// OnWrite installs a callback invoked synchronously after every
// Write, used to script a device's reply (e.g. an ACK/NAK) the moment
// the driver sends a frame, the way a real display would.
func (p *Port) OnWrite(fn func(data []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onWrite = fn
}

// Feed queues bytes as if the device had sent them, to be returned by
// subsequent Read calls.
func (p *Port) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(data)
}

// Writes returns every byte slice passed to Write, in order.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// LastWrite returns the most recent Write call's payload, or nil.
func (p *Port) LastWrite() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return nil
	}
	return p.writes[len(p.writes)-1]
}

func (p *Port) Await(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		ready := p.in.Len() > 0
		p.mu.Unlock()
		if ready {
			return true, nil
		}
		time.Sleep(time.Millisecond)
	}
	return false, nil
}

func (p *Port) Read(buf []byte, wait bool) (int, error) {
	deadline := time.Now().Add(5 * time.Millisecond)
	for {
		p.mu.Lock()
		n, _ := p.in.Read(buf)
		p.mu.Unlock()
		if n > 0 || !wait || time.Now().After(deadline) {
			return n, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *Port) Write(data []byte) (int, error) {
	cp := make([]byte, len(data))
	copy(cp, data)

	p.mu.Lock()
	p.writes = append(p.writes, cp)
	p.out.Write(cp)
	hook := p.onWrite
	p.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return len(data), nil
}

func (p *Port) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Reset()
	return nil
}

func (p *Port) Drain() error { return nil }

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close has been called, for idempotence
// assertions.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
