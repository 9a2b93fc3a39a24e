// -*- Mode: Go; indent-tabs-mode: t -*-

// Package usbport is the USB transport backend for
// `usb:<vendor:product[:index]>` device specs (spec.md §6). Scope is
// deliberately narrow per spec.md's Non-goals: vendor/product match
// and bulk endpoint I/O only, no broader USB enumeration.
package usbport

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"

	"github.com/gobraille/brld/internal/transport"
)

// Selector is a parsed `vendor:product[:index]` address.
type Selector struct {
	Vendor  gousb.ID
	Product gousb.ID
	Index   int
}

// ParseSelector parses the USB address portion of a device_spec.
func ParseSelector(address string) (Selector, error) {
	parts := strings.Split(address, ":")
	if len(parts) < 2 {
		return Selector{}, errors.Errorf("usbport: invalid selector %q", address)
	}
	vendor, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return Selector{}, errors.Wrapf(err, "usbport: invalid vendor id %q", parts[0])
	}
	product, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return Selector{}, errors.Wrapf(err, "usbport: invalid product id %q", parts[1])
	}
	index := 0
	if len(parts) > 2 {
		index, err = strconv.Atoi(parts[2])
		if err != nil {
			return Selector{}, errors.Wrapf(err, "usbport: invalid index %q", parts[2])
		}
	}
	return Selector{Vendor: gousb.ID(vendor), Product: gousb.ID(product), Index: index}, nil
}

// Port adapts a matched gousb device's bulk IN/OUT endpoints to the
// transport.Port contract.
type Port struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

// Open opens the first device matching selector's vendor and product
// IDs and claims its first interface's first bulk IN and OUT
// endpoints. A selector index other than 0 is rejected.
func Open(p transport.OpenParams, sel Selector) (*Port, error) {
	ctx := gousb.NewContext()

	matchIdx := -1
	dev, err := ctx.OpenDeviceWithVIDPID(sel.Vendor, sel.Product)
	if err != nil || dev == nil {
		ctx.Close()
		if err == nil {
			return nil, errors.Errorf("usbport: no device %04x:%04x", sel.Vendor, sel.Product)
		}
		return nil, errors.Wrapf(err, "usbport: open %04x:%04x", sel.Vendor, sel.Product)
	}
	matchIdx++
	if matchIdx != sel.Index {
		// Only one device of this VID:PID was requested by index but
		// gousb's single-device open can't disambiguate further; this
		// is reported rather than silently used, per the Non-goals
		// bound against "USB enumeration beyond vendor/product match".
		dev.Close()
		ctx.Close()
		return nil, errors.Errorf("usbport: device index %d not available for %04x:%04x", sel.Index, sel.Vendor, sel.Product)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, errors.Wrap(err, "usbport: select config")
	}
	intf, done, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, errors.Wrap(err, "usbport: claim interface")
	}

	var inEp *gousb.InEndpoint
	var outEp *gousb.OutEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && inEp == nil {
			inEp, err = intf.InEndpoint(ep.Number)
			if err != nil {
				continue
			}
		}
		if ep.Direction == gousb.EndpointDirectionOut && outEp == nil {
			outEp, err = intf.OutEndpoint(ep.Number)
			if err != nil {
				continue
			}
		}
	}
	if inEp == nil || outEp == nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, errors.New("usbport: device has no usable bulk endpoint pair")
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}

	return &Port{ctx: ctx, dev: dev, intf: intf, done: done, in: inEp, out: outEp, timeout: timeout}, nil
}

func (p *Port) Await(timeout time.Duration) (bool, error) {
	buf := make([]byte, 1)
	n, err := p.readWithin(buf, timeout)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Port) Read(buf []byte, wait bool) (int, error) {
	timeout := p.timeout
	if !wait {
		timeout = time.Millisecond
	}
	n, err := p.readWithin(buf, timeout)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// readWithin reads once from the bulk IN endpoint, bounded by the
// endpoint's own ReadTimeout (set per-call since each driver polls at
// a different cadence). gousb has no context-scoped read; transient
// failures (including the endpoint's own timeout) are absorbed here
// per spec.md §7 io_error_transient, surfacing as (0, nil) so the
// caller's non-blocking contract holds.
func (p *Port) readWithin(buf []byte, timeout time.Duration) (int, error) {
	p.in.ReadTimeout = timeout
	n, err := p.in.Read(buf)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (p *Port) Write(data []byte) (int, error) {
	n, err := p.out.Write(data)
	if err != nil {
		return n, errors.Wrap(err, "usbport: write")
	}
	return n, nil
}

// Discard drains any immediately-available input.
func (p *Port) Discard() error {
	buf := make([]byte, 256)
	for {
		n, _ := p.readWithin(buf, time.Millisecond)
		if n == 0 {
			return nil
		}
	}
}

func (p *Port) Drain() error { return nil }

func (p *Port) Close() error {
	if p.done != nil {
		p.done()
		p.done = nil
	}
	if p.dev != nil {
		p.dev.Close()
		p.dev = nil
	}
	if p.ctx != nil {
		p.ctx.Close()
		p.ctx = nil
	}
	return nil
}

var _ transport.Port = (*Port)(nil)
