// Package registry persists the state of in-flight uploads so that a transfer
// can resume correctly after a process restart. It is the single source of
// truth for the upload process: everything that must outlive one function
// call lives here, never in memory.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/movelog/uplink/internal/upload/protocol"
)

var (
	// ErrDuplicateSession is returned by Register when a session already
	// exists for the measurement.
	ErrDuplicateSession = errors.New("upload session already exists")

	// ErrPersistenceUnavailable wraps driver-level failures. Callers treat it
	// as retryable, not as a protocol-level rejection.
	ErrPersistenceUnavailable = errors.New("session store unavailable")

	// ErrNoSession is returned by mutating operations that require an
	// existing session record.
	ErrNoSession = errors.New("no upload session")
)

// LogEntry is one recorded server response. The log is append-only and makes
// the protocol progress replayable for debugging.
type LogEntry struct {
	RequestType protocol.RequestType
	StatusCode  int
	Message     string
	Error       string
	Timestamp   time.Time
}

// Session is the durable record of an in-progress upload attempt for one
// measurement. Location holds the collector-assigned resumable upload URL
// once the pre-request succeeded. Expecting names the request type whose
// response is currently awaited; responses carrying any other type are stale
// and must not be applied.
type Session struct {
	MeasurementID int64
	Location      string
	Expecting     protocol.RequestType
	Log           []LogEntry
}

// Registry stores at most one session per measurement id. Implementations
// must serialize concurrent mutations per measurement id and must make Record
// durable before returning, since the log is the only record of protocol
// progress across process restarts.
type Registry interface {
	// Register creates a session record for the measurement. Returns
	// ErrDuplicateSession if one already exists.
	Register(ctx context.Context, measurementID int64) error

	// Get returns the session for the measurement, or nil if none exists.
	Get(ctx context.Context, measurementID int64) (*Session, error)

	// Record appends a response to the session log.
	Record(ctx context.Context, measurementID int64, entry LogEntry) error

	// SetLocation stores the resumable upload URL assigned by the collector.
	SetLocation(ctx context.Context, measurementID int64, location string) error

	// SetExpecting stores the request type whose response is awaited next.
	SetExpecting(ctx context.Context, measurementID int64, rt protocol.RequestType) error

	// Remove deletes the session and its log. Removing a non-existent
	// session is not an error.
	Remove(ctx context.Context, measurementID int64) error
}
