// Package upload drives the three-phase resumable upload protocol that
// delivers locally captured measurements to the collector: pre-request,
// status request, upload request. The orchestrator is stateless between
// invocations; everything needed to resume after a process restart lives in
// the session registry.
package upload

import (
	"context"
	"sync"

	"github.com/movelog/uplink/internal/capture"
)

// Upload is a read-only view over one measurement's serialized bytes and
// metadata, plus the terminal-outcome notifications toward the owning data
// store. OnSuccess and OnFailed must be idempotent, since duplicate terminal
// responses can arrive.
type Upload interface {
	// MeasurementID returns the identifier of the measurement being
	// transferred.
	MeasurementID() int64

	// MetaData returns the descriptor sent on the pre-request.
	MetaData() (*capture.MetaData, error)

	// Data returns the full serialized payload. The result is computed once
	// and reused across retries.
	Data(ctx context.Context) ([]byte, error)

	// OnSuccess tells the data store the measurement may be marked
	// synchronized.
	OnSuccess(ctx context.Context) error

	// OnFailed tells the data store the measurement stays pending.
	OnFailed(ctx context.Context) error
}

// Factory constructs a fresh Upload for a measurement when no session exists
// yet, and re-derives one after a process restart.
type Factory interface {
	Upload(m *capture.Measurement) Upload
}

// measurementUpload is the store-backed Upload implementation.
type measurementUpload struct {
	m     *capture.Measurement
	store capture.Store

	mu   sync.Mutex
	data []byte
}

func newMeasurementUpload(m *capture.Measurement, store capture.Store) *measurementUpload {
	return &measurementUpload{m: m, store: store}
}

func (u *measurementUpload) MeasurementID() int64 {
	return u.m.ID
}

func (u *measurementUpload) MetaData() (*capture.MetaData, error) {
	return u.m.MetaData(), nil
}

func (u *measurementUpload) Data(ctx context.Context) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.data != nil {
		return u.data, nil
	}
	data, err := u.store.Payload(ctx, u.m.ID)
	if err != nil {
		return nil, err
	}
	u.data = data
	return data, nil
}

func (u *measurementUpload) OnSuccess(ctx context.Context) error {
	return u.store.MarkSynchronized(ctx, u.m.ID)
}

func (u *measurementUpload) OnFailed(ctx context.Context) error {
	return u.store.MarkPending(ctx, u.m.ID)
}

// StoreFactory builds measurement uploads backed by the given store.
type StoreFactory struct {
	store capture.Store
}

func NewStoreFactory(store capture.Store) *StoreFactory {
	return &StoreFactory{store: store}
}

func (f *StoreFactory) Upload(m *capture.Measurement) Upload {
	return newMeasurementUpload(m, f.store)
}
