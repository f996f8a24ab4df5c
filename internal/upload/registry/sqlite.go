package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/movelog/uplink/internal/dbx"
	"github.com/movelog/uplink/internal/upload/protocol"
)

// SQLiteRegistry implements Registry using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRegistry struct {
	db dbx.DBTX
}

// NewSQLiteRegistry returns a new SQLiteRegistry bound to the given DBTX.
func NewSQLiteRegistry(db dbx.DBTX) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// storeErr wraps driver failures so callers can classify them as retryable
// with errors.Is(err, ErrPersistenceUnavailable).
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistenceUnavailable, err)
}

func (r *SQLiteRegistry) Register(ctx context.Context, measurementID int64) error {
	// INSERT OR IGNORE keeps the at-most-one-session invariant without
	// depending on driver-specific constraint error codes.
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO upload_sessions (measurement_id, location, expecting, created_at)
		 VALUES (?, NULL, '', ?)`,
		measurementID, time.Now().UnixMilli())
	if err != nil {
		return storeErr("failed to register session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("failed to register session", err)
	}
	if n == 0 {
		return ErrDuplicateSession
	}
	return nil
}

func (r *SQLiteRegistry) Get(ctx context.Context, measurementID int64) (*Session, error) {
	var s Session
	var location sql.NullString
	var expecting string

	err := r.db.QueryRowContext(ctx,
		`SELECT measurement_id, location, expecting FROM upload_sessions WHERE measurement_id = ?`,
		measurementID).Scan(&s.MeasurementID, &location, &expecting)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("failed to load session", err)
	}
	s.Location = location.String
	s.Expecting = protocol.RequestType(expecting)

	rows, err := r.db.QueryContext(ctx,
		`SELECT request_type, http_status, message, error, recorded_at
		 FROM upload_session_log WHERE measurement_id = ? ORDER BY id`,
		measurementID)
	if err != nil {
		return nil, storeErr("failed to load session log", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e LogEntry
		var rt string
		var recordedAt int64
		if err := rows.Scan(&rt, &e.StatusCode, &e.Message, &e.Error, &recordedAt); err != nil {
			return nil, storeErr("failed to scan log entry", err)
		}
		e.RequestType = protocol.RequestType(rt)
		e.Timestamp = time.UnixMilli(recordedAt)
		s.Log = append(s.Log, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to iterate session log", err)
	}

	return &s, nil
}

func (r *SQLiteRegistry) Record(ctx context.Context, measurementID int64, entry LogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO upload_session_log (measurement_id, request_type, http_status, message, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		measurementID, string(entry.RequestType), entry.StatusCode, entry.Message, entry.Error, ts.UnixMilli())
	if err != nil {
		return storeErr("failed to record response", err)
	}
	return nil
}

func (r *SQLiteRegistry) SetLocation(ctx context.Context, measurementID int64, location string) error {
	return r.update(ctx, `UPDATE upload_sessions SET location = ? WHERE measurement_id = ?`,
		"failed to set location", location, measurementID)
}

func (r *SQLiteRegistry) SetExpecting(ctx context.Context, measurementID int64, rt protocol.RequestType) error {
	return r.update(ctx, `UPDATE upload_sessions SET expecting = ? WHERE measurement_id = ?`,
		"failed to set expected request type", string(rt), measurementID)
}

func (r *SQLiteRegistry) update(ctx context.Context, query, op string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	return nil
}

func (r *SQLiteRegistry) Remove(ctx context.Context, measurementID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM upload_session_log WHERE measurement_id = ?`, measurementID); err != nil {
		return storeErr("failed to remove session log", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM upload_sessions WHERE measurement_id = ?`, measurementID); err != nil {
		return storeErr("failed to remove session", err)
	}
	return nil
}
