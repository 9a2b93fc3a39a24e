// -*- Mode: Go; indent-tabs-mode: t -*-

// Package diff computes the minimal on-wire update for a cell buffer
// (spec.md §4.3) and tracks the periodic forced-refresh cadence every
// driver must honor because some displays garble silently.
package diff

import "time"

// Range is an inclusive [Start, End] index range into a cell buffer.
// Empty is true when no bytes changed and no refresh is due — the
// "no spurious writes" case (spec.md testable property 3).
type Range struct {
	Start, End int
	Empty      bool
}

// Cadence selects which forced-refresh policy a driver uses. spec.md
// §9 says this must be decided per driver from that driver's own
// documented behavior, not unified, so both forms are first-class
// rather than one being emulated in terms of the other.
type Cadence int

const (
	// CadenceElapsed forces a refresh after Period has passed since the
	// last write regardless of call count.
	CadenceElapsed Cadence = iota
	// CadenceCallCount forces a refresh every Period calls regardless
	// of elapsed time, for devices spec.md §4.3 calls "jittery".
	CadenceCallCount
)

// RefreshPolicy bounds how often a full refresh is forced even when
// nothing changed.
type RefreshPolicy struct {
	Mode   Cadence
	Period time.Duration // used when Mode == CadenceElapsed
	Calls  int           // used when Mode == CadenceCallCount, K ≈ 12
}

// DefaultElapsedPolicy is the spec.md §4.3 default: a full refresh at
// least once per second of wall time.
var DefaultElapsedPolicy = RefreshPolicy{Mode: CadenceElapsed, Period: time.Second}

// DefaultJitteryPolicy is the spec.md §4.3 "jittery" device default:
// a full refresh every 12 write calls.
var DefaultJitteryPolicy = RefreshPolicy{Mode: CadenceCallCount, Calls: 12}

// Engine tracks a single cell buffer's previous-cells snapshot and
// forced-refresh bookkeeping (spec.md §3 "Previous-cells snapshot").
// It is not safe for concurrent use; each driver handle owns one
// Engine per buffer (text window, status cells).
type Engine struct {
	policy   RefreshPolicy
	prev     []byte
	lastSend time.Time
	calls    int
}

// NewEngine returns an Engine sized for n cells, with prev zeroed to
// match a freshly opened handle's buffers (spec.md §3: "Both start
// zeroed").
func NewEngine(n int, policy RefreshPolicy) *Engine {
	return &Engine{policy: policy, prev: make([]byte, n)}
}

// Resize rebuilds prev for a new cell count, zeroing newly appearing
// cells, per spec.md §4.4's payload-adaptation rule. Existing indices
// below the smaller of the two lengths keep their values so a
// shrink-then-grow doesn't spuriously redraw everything that didn't
// change.
func (e *Engine) Resize(n int) {
	next := make([]byte, n)
	copy(next, e.prev)
	e.prev = next
}

// Len returns the tracked buffer length.
func (e *Engine) Len() int { return len(e.prev) }

// Diff computes the minimal contiguous range that differs between
// the tracked previous buffer and next, honoring the forced-refresh
// cadence. It does NOT mutate the previous-cells snapshot — per
// spec.md §3's invariant ("never updated before acknowledgement of
// the write"), the caller commits the new snapshot via Commit once
// the write is known to have succeeded (or immediately, for
// non-ACKed drivers).
func (e *Engine) Diff(next []byte) Range {
	e.calls++

	if len(next) != len(e.prev) {
		// A geometry change must go through Resize first; treat a
		// mismatched length defensively as a full refresh rather than
		// index out of range.
		return Range{Start: 0, End: len(next) - 1}
	}

	start := -1
	end := -1
	for i := range next {
		if next[i] != e.prev[i] {
			if start == -1 {
				start = i
			}
			end = i
		}
	}

	if start == -1 {
		if e.refreshDue() {
			e.calls = 0
			if len(next) == 0 {
				return Range{Empty: true}
			}
			return Range{Start: 0, End: len(next) - 1}
		}
		return Range{Empty: true}
	}

	e.calls = 0
	return Range{Start: start, End: end}
}

func (e *Engine) refreshDue() bool {
	switch e.policy.Mode {
	case CadenceElapsed:
		return e.policy.Period > 0 && time.Since(e.lastSend) >= e.policy.Period
	case CadenceCallCount:
		return e.policy.Calls > 0 && e.calls >= e.policy.Calls
	default:
		return false
	}
}

// Commit records next as the last buffer actually transmitted and
// resets the elapsed-time clock. Call only after a write is known to
// have succeeded.
func (e *Engine) Commit(next []byte) {
	copy(e.prev, next)
	e.lastSend = time.Now()
}

// CommitRange updates only prev[start:end+1], for drivers that
// enumerate individual (offset, cell) pairs rather than a contiguous
// range (spec.md §4.3): "prev is updated byte-by-byte as pairs are
// emitted."
func (e *Engine) CommitRange(next []byte, start, end int) {
	copy(e.prev[start:end+1], next[start:end+1])
	e.lastSend = time.Now()
}

// CommitPair updates a single (offset, value) pair, for the pair-style
// write path (spec.md §4.3 / §8 scenario S2).
func (e *Engine) CommitPair(offset int, value byte) {
	e.prev[offset] = value
	e.lastSend = time.Now()
}

// Pairs returns every (offset, value) whose value differs between the
// tracked previous buffer and next, within [r.Start, r.End]. Drivers
// that frame individual cell updates (spec.md §4.3's pair-style
// writers) call this after Diff to get only the cells that actually
// changed, since a contiguous range can still contain unchanged bytes
// in the middle.
func (e *Engine) Pairs(next []byte, r Range) []Pair {
	if r.Empty {
		return nil
	}
	var pairs []Pair
	for i := r.Start; i <= r.End; i++ {
		if next[i] != e.prev[i] {
			pairs = append(pairs, Pair{Offset: i, Value: next[i]})
		}
	}
	return pairs
}

// Pair is a single changed cell, (offset, new value).
type Pair struct {
	Offset int
	Value  byte
}
