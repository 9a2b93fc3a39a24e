// -*- Mode: Go; indent-tabs-mode: t -*-

// Package netport implements transport.Port over a plain TCP
// connection, the backend behind the "net:<host>[:port]" device_spec
// scheme used by tunnel-style drivers (e.g. a braille display exposed
// by a serial-to-network bridge). Grounded on the teacher's
// modbus.TCPClientHandler (example/device-modbus/modbus.go): a
// Timeout field set before Connect, here a deadline set before every
// Read/Write instead, since this package has no client library to
// delegate framing to.
package netport

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/gobraille/brld/internal/transport"
)

// Port is a transport.Port backed by a net.Conn.
type Port struct {
	conn     net.Conn
	timeout  time.Duration
	pushback []byte
}

// Open dials a TCP connection to address ("host:port"), defaulting
// the port to defaultPort when address carries none.
func Open(p transport.OpenParams, address string, defaultPort int) (*Port, error) {
	host, port, err := splitHostPort(address, defaultPort)
	if err != nil {
		return nil, err
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "netport: dial %s", address)
	}
	return &Port{conn: conn, timeout: timeout}, nil
}

func splitHostPort(address string, defaultPort int) (host, port string, err error) {
	h, p, splitErr := net.SplitHostPort(address)
	if splitErr != nil {
		return address, portString(defaultPort), nil
	}
	return h, p, nil
}

func portString(port int) string {
	if port <= 0 {
		return "0"
	}
	buf := [6]byte{}
	i := len(buf)
	for port > 0 {
		i--
		buf[i] = byte('0' + port%10)
		port /= 10
	}
	return string(buf[i:])
}

// Await reports whether data becomes readable within timeout by
// attempting a zero-length-tolerant deadline read.
func (p *Port) Await(timeout time.Duration) (bool, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	defer p.conn.SetReadDeadline(time.Time{})
	one := make([]byte, 1)
	n, err := p.conn.Read(one)
	if n > 0 {
		p.pushback = append(p.pushback, one[:n]...)
		return true, nil
	}
	if isTimeout(err) {
		return false, nil
	}
	return false, err
}

func (p *Port) Read(buf []byte, wait bool) (int, error) {
	if len(p.pushback) > 0 {
		n := copy(buf, p.pushback)
		p.pushback = p.pushback[n:]
		return n, nil
	}
	deadline := time.Now().Add(p.timeout)
	if !wait {
		deadline = time.Now()
	}
	_ = p.conn.SetReadDeadline(deadline)
	n, err := p.conn.Read(buf)
	if isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (p *Port) Write(data []byte) (int, error) {
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	return p.conn.Write(data)
}

// Discard drops any buffered pushback byte from a prior Await.
func (p *Port) Discard() error {
	p.pushback = nil
	return nil
}

// Drain is a no-op: TCP has no local output queue to flush beyond the
// kernel's own send buffer, which the peer drains independently.
func (p *Port) Drain() error { return nil }

func (p *Port) Close() error { return p.conn.Close() }

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
