// -*- Mode: Go; indent-tabs-mode: t -*-

// Package session provides the per-Open correlation id and structured
// logger every driver attaches to its handle, grounded on the
// teacher's context.WithValue(..., common.CorrelationHeader,
// uuid.New().String()) pattern (internal/clients/init.go,
// internal/cache/init.go) with the EdgeX logging client swapped for
// github.com/sirupsen/logrus per SPEC_FULL.md's Ambient Stack.
package session

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Session carries one Open call's correlation id and a logger
// pre-tagged with it plus the driver and transport names, so every
// log line from that handle's lifetime can be traced back to one
// Open/Close span without the caller repeating fields.
type Session struct {
	ID  string
	Log *logrus.Entry
}

// New starts a session for driver opening over transport.
func New(driver, transport string) Session {
	id := uuid.New().String()
	return Session{
		ID: id,
		Log: logrus.WithFields(logrus.Fields{
			"driver":     driver,
			"transport":  transport,
			"session_id": id,
		}),
	}
}

// FallbackSerialNumber synthesizes a stable serial number from the
// session id when a device's probe reply omits one, so downstream
// code that keys on serial number (e.g. duplicate-handle detection)
// always has something non-empty to use.
func (s Session) FallbackSerialNumber() string {
	return "unknown-" + s.ID[:8]
}
