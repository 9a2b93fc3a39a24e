// Package braille defines the host-facing data model for the braille
// display driver core: the handle contract, geometry, cell buffers,
// command sentinels and the error kinds every layer below reports
// through.
package braille

import "github.com/pkg/errors"

// Kind classifies a driver error the way spec.md §7 enumerates them.
// The host only needs to distinguish these to decide whether to retry
// Open, treat ReadCommand's result as a RESTART, or just log and move
// on.
type Kind int

const (
	// KindUnsupportedTransport means Open rejected a device_spec whose
	// transport the selected driver does not support.
	KindUnsupportedTransport Kind = iota
	// KindOpenFailed means the transport itself refused to open.
	KindOpenFailed
	// KindProbeFailed means no protocol variant answered identification.
	KindProbeFailed
	// KindIdentityMismatch means a model byte was not found in a
	// driver's lookup table.
	KindIdentityMismatch
	// KindTimeout means a bounded wait (probe, ACK) expired.
	KindTimeout
	// KindIOError means a fatal or transient transport I/O failure.
	KindIOError
	// KindProtocolError means a frame failed checksum or carried an
	// unknown opcode.
	KindProtocolError
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedTransport:
		return "unsupported_transport"
	case KindOpenFailed:
		return "open_failed"
	case KindProbeFailed:
		return "probe_failed"
	case KindIdentityMismatch:
		return "identity_mismatch"
	case KindTimeout:
		return "timeout"
	case KindIOError:
		return "io_error"
	case KindProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across the core. It
// carries a Kind so callers can branch without string matching, the
// way spec.md §7's table maps each kind to an outcome.
type Error struct {
	Kind   Kind
	Driver string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Driver + ": " + e.Kind.String() + ": " + e.cause.Error()
	}
	return e.Driver + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds an *Error wrapping cause (which may be nil) with
// errors.Wrap so a full stack trace survives for logging.
func NewError(driver string, kind Kind, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, kind.String())
	}
	return &Error{Kind: kind, Driver: driver, cause: wrapped}
}

// IsKind reports whether err (or anything it wraps) is a *Error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if be, ok := err.(*Error); ok {
			e = be
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
