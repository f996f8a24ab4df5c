package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const deviceIDSetting = "device_id"

// EnsureDeviceID returns the installation-wide device identifier, generating
// and persisting a new UUID on first use. Concurrent callers converge on the
// same identifier.
func (s *SQLiteStore) EnsureDeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE name = ?`, deviceIDSetting).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO app_settings (name, value) VALUES (?, ?)`,
		deviceIDSetting, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("failed to store device id: %w", err)
	}

	// Re-read so a concurrent insert wins consistently.
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE name = ?`, deviceIDSetting).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	return id, nil
}
