// -*- Mode: Go; indent-tabs-mode: t -*-

// Command brldprobe is a development smoke-test harness: it loads a
// TOML device profile, dispatches Open against the named driver, runs
// the spec.md §8 scenario S1 minimal cycle (all-zeros, then all-ones)
// once, and optionally serves a status page while it holds the handle
// open. It is not part of the host integration surface; it exists so
// a new driver can be exercised against real hardware without a full
// screen-reader host.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/dispatch"
	"github.com/gobraille/brld/internal/registry"

	_ "github.com/gobraille/brld/drivers/canutec"
	_ "github.com/gobraille/brld/drivers/lumitech"
	_ "github.com/gobraille/brld/drivers/optiline"
	_ "github.com/gobraille/brld/drivers/tactilenet"
	_ "github.com/gobraille/brld/drivers/vega40"
)

func main() {
	configPath := flag.String("config", "brldprobe.toml", "path to the device profile")
	listDrivers := flag.Bool("list-drivers", false, "print the linked driver names and exit")
	flag.Parse()

	if *listDrivers {
		for _, name := range registry.Names() {
			os.Stdout.WriteString(name + "\n")
		}
		return
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("brldprobe: could not load config")
	}

	handle, err := dispatch.Open(cfg.Driver, cfg.DeviceSpec, cfg.OpenParams())
	if err != nil {
		logrus.WithError(err).Fatal("brldprobe: open failed")
	}
	defer handle.Close()

	geometry := handle.Geometry()
	logrus.WithField("geometry", geometry).Info("brldprobe: opened")

	if err := runMinimalCycle(handle, geometry); err != nil {
		logrus.WithError(err).Fatal("brldprobe: minimal cycle failed")
	}

	if cfg.Status.Enabled {
		startStatusServer(cfg.Status.Listen, cfg.Driver, geometry)
	}

	waitForSignal(handle)
}

// runMinimalCycle implements spec.md §8 scenario S1 against whatever
// handle Open returned: write the text window all zeroed, then all
// cells set, to confirm the wire round-trips without needing a host.
func runMinimalCycle(handle braille.Handle, geometry braille.Geometry) error {
	zeros := make(braille.Cells, geometry.TextColumns*geometry.TextRows)
	if err := handle.WriteWindow(zeros); err != nil {
		return err
	}

	ones := make(braille.Cells, len(zeros))
	for i := range ones {
		ones[i] = 0xFF
	}
	return handle.WriteWindow(ones)
}

// waitForSignal polls ReadCommand at a host-like cadence until
// interrupted, logging whatever keys arrive, so this harness also
// exercises the key interpretation pipeline interactively.
func waitForSignal(handle braille.Handle) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-sigc
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cmd, err := handle.ReadCommand(ctx, braille.ContextScreen)
		if err != nil {
			logrus.WithError(err).Error("brldprobe: ReadCommand failed")
			return
		}
		if cmd == braille.Restart {
			logrus.Warn("brldprobe: driver requested RESTART")
			return
		}
		if cmd != braille.None {
			logrus.WithField("command", cmd).Info("brldprobe: key")
		}
	}
}
