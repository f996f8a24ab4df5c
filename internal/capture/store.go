package capture

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no measurement exists for the given id.
var ErrNotFound = errors.New("measurement not found")

// Store is the measurement data store consumed by the synchronization
// subsystem. Load and Payload reconstruct upload context after a process
// restart; MarkSynchronized and MarkPending are the terminal-outcome
// notifications and must be idempotent, since duplicate terminal responses
// can arrive.
type Store interface {
	// Save inserts or replaces a measurement together with its payload.
	Save(ctx context.Context, m *Measurement, payload []byte) error

	// Load returns the measurement with the given id, without its payload.
	// Returns ErrNotFound if it does not exist.
	Load(ctx context.Context, id int64) (*Measurement, error)

	// Payload returns the serialized byte content of the measurement.
	Payload(ctx context.Context, id int64) ([]byte, error)

	// ListPending returns all measurements not yet synchronized.
	ListPending(ctx context.Context) ([]*Measurement, error)

	// MarkSynchronized marks the measurement as delivered to the collector.
	MarkSynchronized(ctx context.Context, id int64) error

	// MarkPending clears the synchronized flag so a later sync picks the
	// measurement up again.
	MarkPending(ctx context.Context, id int64) error
}
