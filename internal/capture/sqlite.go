package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/movelog/uplink/internal/dbx"
)

// SQLiteStore implements Store using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteStore struct {
	db dbx.DBTX
}

// NewSQLiteStore returns a new SQLiteStore bound to the given DBTX.
func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Save(ctx context.Context, m *Measurement, payload []byte) error {
	query := `INSERT INTO measurements
			(id, device_id, device_type, os_version, app_version, length, location_count,
			 start_lat, start_lon, start_ts, end_lat, end_lon, end_ts, modality, payload, synchronized)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				length = excluded.length,
				location_count = excluded.location_count,
				start_lat = excluded.start_lat,
				start_lon = excluded.start_lon,
				start_ts = excluded.start_ts,
				end_lat = excluded.end_lat,
				end_lon = excluded.end_lon,
				end_ts = excluded.end_ts,
				payload = excluded.payload,
				synchronized = excluded.synchronized
	`
	var startLat, startLon, endLat, endLon sql.NullFloat64
	var startTS, endTS sql.NullInt64
	if m.StartLocation != nil {
		startLat = sql.NullFloat64{Float64: m.StartLocation.Latitude, Valid: true}
		startLon = sql.NullFloat64{Float64: m.StartLocation.Longitude, Valid: true}
		startTS = sql.NullInt64{Int64: m.StartLocation.Timestamp, Valid: true}
	}
	if m.EndLocation != nil {
		endLat = sql.NullFloat64{Float64: m.EndLocation.Latitude, Valid: true}
		endLon = sql.NullFloat64{Float64: m.EndLocation.Longitude, Valid: true}
		endTS = sql.NullInt64{Int64: m.EndLocation.Timestamp, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.DeviceID, m.DeviceType, m.OSVersion, m.AppVersion, m.Length, m.LocationCount,
		startLat, startLon, startTS, endLat, endLon, endTS, m.Modality, payload, m.Synchronized)
	if err != nil {
		return fmt.Errorf("failed to upsert measurement: %w", err)
	}
	return nil
}

const measurementColumns = `id, device_id, device_type, os_version, app_version, length, location_count,
	start_lat, start_lon, start_ts, end_lat, end_lon, end_ts, modality, synchronized`

func scanMeasurement(row interface{ Scan(...any) error }) (*Measurement, error) {
	var m Measurement
	var startLat, startLon, endLat, endLon sql.NullFloat64
	var startTS, endTS sql.NullInt64

	err := row.Scan(&m.ID, &m.DeviceID, &m.DeviceType, &m.OSVersion, &m.AppVersion,
		&m.Length, &m.LocationCount,
		&startLat, &startLon, &startTS, &endLat, &endLon, &endTS,
		&m.Modality, &m.Synchronized)
	if err != nil {
		return nil, err
	}

	if startLat.Valid {
		m.StartLocation = &GeoLocation{Latitude: startLat.Float64, Longitude: startLon.Float64, Timestamp: startTS.Int64}
	}
	if endLat.Valid {
		m.EndLocation = &GeoLocation{Latitude: endLat.Float64, Longitude: endLon.Float64, Timestamp: endTS.Int64}
	}
	return &m, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id int64) (*Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE id = ?`

	m, err := scanMeasurement(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load measurement %d: %w", id, err)
	}
	return m, nil
}

func (s *SQLiteStore) Payload(ctx context.Context, id int64) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM measurements WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load payload of measurement %d: %w", id, err)
	}
	return payload, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]*Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE synchronized = 0 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending measurements: %w", err)
	}
	defer rows.Close()

	var result []*Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurements: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) MarkSynchronized(ctx context.Context, id int64) error {
	return s.setSynchronized(ctx, id, 1)
}

func (s *SQLiteStore) MarkPending(ctx context.Context, id int64) error {
	return s.setSynchronized(ctx, id, 0)
}

func (s *SQLiteStore) setSynchronized(ctx context.Context, id int64, value int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE measurements SET synchronized = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("failed to update measurement %d: %w", id, err)
	}
	return nil
}
