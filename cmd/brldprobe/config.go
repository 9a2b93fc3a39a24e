// -*- Mode: Go; indent-tabs-mode: t -*-
package main

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/gobraille/brld/internal/transport"
)

// Config is the on-disk device profile brldprobe loads before
// dispatching Open, grounded on the teacher's own TOML-backed
// common.Config (internal/config/loader.go) but narrowed to the
// handful of fields one display needs instead of a whole service's
// configuration tree.
type Config struct {
	Driver     string `toml:"driver"`
	DeviceSpec string `toml:"device_spec"`

	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`

	TimeoutMillis int `toml:"timeout_millis"`

	Status struct {
		Enabled bool   `toml:"enabled"`
		Listen  string `toml:"listen"`
	} `toml:"status"`
}

// LoadConfig reads and parses path as TOML. Like the teacher's
// loadConfigFromFile, malformed TOML is reported as a plain error
// rather than left to panic the process.
func LoadConfig(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "brldprobe: reading config %s", path)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(contents, cfg); err != nil {
		return nil, errors.Wrapf(err, "brldprobe: parsing config %s", path)
	}
	if cfg.Driver == "" {
		return nil, errors.Errorf("brldprobe: %s: driver is required", path)
	}
	if cfg.DeviceSpec == "" {
		return nil, errors.Errorf("brldprobe: %s: device_spec is required", path)
	}
	return cfg, nil
}

// OpenParams translates the config's serial fields into a
// transport.OpenParams, defaulting a handful of values the way the
// teacher's getRTUConfig does (example/device-modbus/modbus.go).
func (c *Config) OpenParams() transport.OpenParams {
	parity := transport.ParityNone
	switch c.Parity {
	case "E":
		parity = transport.ParityEven
	case "O":
		parity = transport.ParityOdd
	}

	timeout := time.Duration(c.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	baud := c.BaudRate
	if baud == 0 {
		baud = 9600
	}
	dataBits := c.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	stopBits := c.StopBits
	if stopBits == 0 {
		stopBits = 1
	}

	return transport.OpenParams{
		BaudRate: baud,
		DataBits: dataBits,
		StopBits: stopBits,
		Parity:   parity,
		Timeout:  timeout,
	}
}
