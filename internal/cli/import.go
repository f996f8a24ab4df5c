package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/movelog/uplink/internal/capture"
	"github.com/movelog/uplink/internal/dbx"
)

// importDescriptor is the JSON shape of an import file. The device id is not
// part of it: imported measurements are stamped with this installation's
// device identifier.
type importDescriptor struct {
	MeasurementID int64              `json:"measurementId"`
	DeviceType    string             `json:"deviceType"`
	OSVersion     string             `json:"osVersion"`
	AppVersion    string             `json:"appVersion"`
	Length        float64            `json:"length"`
	LocationCount int64              `json:"locationCount"`
	Modality      string             `json:"modality"`
	StartLocation *importGeoLocation `json:"startLocation,omitempty"`
	EndLocation   *importGeoLocation `json:"endLocation,omitempty"`
}

type importGeoLocation struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Timestamp int64   `json:"ts"`
}

func (l *importGeoLocation) geoLocation() *capture.GeoLocation {
	if l == nil {
		return nil
	}
	return &capture.GeoLocation{Latitude: l.Latitude, Longitude: l.Longitude, Timestamp: l.Timestamp}
}

// runImport stores a measurement described by a JSON descriptor file and a
// payload file, leaving it pending so the next sync run picks it up.
//
// Usage: uplink import <descriptor.json> <payload>
func (a *App) runImport(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: import <descriptor.json> <payload>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read descriptor: %w", err)
	}
	var d importDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if d.MeasurementID <= 0 {
		return fmt.Errorf("descriptor must carry a positive measurementId, got %d", d.MeasurementID)
	}

	payload, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	// Device id assignment and the save happen in one transaction so a
	// half-imported measurement never becomes visible to sync.
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store := capture.NewSQLiteStore(tx)

		deviceID, err := store.EnsureDeviceID(ctx)
		if err != nil {
			return err
		}

		m := &capture.Measurement{
			ID:            d.MeasurementID,
			DeviceID:      deviceID,
			DeviceType:    d.DeviceType,
			OSVersion:     d.OSVersion,
			AppVersion:    d.AppVersion,
			Length:        d.Length,
			LocationCount: d.LocationCount,
			StartLocation: d.StartLocation.geoLocation(),
			EndLocation:   d.EndLocation.geoLocation(),
			Modality:      d.Modality,
		}
		return store.Save(ctx, m, payload)
	})
	if err != nil {
		return err
	}

	a.log.Info(ctx, "measurement imported",
		"measurement_id", d.MeasurementID, "payload_bytes", len(payload))
	return nil
}
