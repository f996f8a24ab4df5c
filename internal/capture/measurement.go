// Package capture defines the locally persisted measurement model and the
// store the synchronization subsystem reads it from.
package capture

// GeoLocation is a single captured geo coordinate with its capture time in
// unix milliseconds.
type GeoLocation struct {
	Latitude  float64
	Longitude float64
	Timestamp int64
}

// Measurement is one logical unit of captured data, transferred to the
// collector as a whole. The payload (the serialized sensor data) is stored
// alongside but loaded separately via Store.Payload since it can be large.
type Measurement struct {
	ID            int64
	DeviceID      string
	DeviceType    string
	OSVersion     string
	AppVersion    string
	Length        float64
	LocationCount int64
	StartLocation *GeoLocation
	EndLocation   *GeoLocation
	Modality      string
	Synchronized  bool
}

// MetaDataFormatVersion identifies the metadata descriptor layout expected by
// the collector.
const MetaDataFormatVersion = 2

// MetaData is the JSON descriptor sent to the collector on the pre-request.
type MetaData struct {
	DeviceID      string  `json:"deviceId"`
	MeasurementID int64   `json:"measurementId"`
	DeviceType    string  `json:"deviceType"`
	OSVersion     string  `json:"osVersion"`
	AppVersion    string  `json:"appVersion"`
	Length        float64 `json:"length"`
	LocationCount int64   `json:"locationCount"`
	// The location fields are pointers so a legitimate zero coordinate (the
	// equator, the prime meridian) is still serialized; only measurements
	// without locations omit them.
	StartLocLat   *float64 `json:"startLocLat,omitempty"`
	StartLocLon   *float64 `json:"startLocLon,omitempty"`
	StartLocTS    *int64   `json:"startLocTS,omitempty"`
	EndLocLat     *float64 `json:"endLocLat,omitempty"`
	EndLocLon     *float64 `json:"endLocLon,omitempty"`
	EndLocTS      *int64   `json:"endLocTS,omitempty"`
	Modality      string   `json:"modality"`
	FormatVersion int      `json:"formatVersion"`
}

// MetaData builds the collector descriptor for the measurement.
func (m *Measurement) MetaData() *MetaData {
	md := &MetaData{
		DeviceID:      m.DeviceID,
		MeasurementID: m.ID,
		DeviceType:    m.DeviceType,
		OSVersion:     m.OSVersion,
		AppVersion:    m.AppVersion,
		Length:        m.Length,
		LocationCount: m.LocationCount,
		Modality:      m.Modality,
		FormatVersion: MetaDataFormatVersion,
	}
	if l := m.StartLocation; l != nil {
		lat, lon, ts := l.Latitude, l.Longitude, l.Timestamp
		md.StartLocLat, md.StartLocLon, md.StartLocTS = &lat, &lon, &ts
	}
	if l := m.EndLocation; l != nil {
		lat, lon, ts := l.Latitude, l.Longitude, l.Timestamp
		md.EndLocLat, md.EndLocLon, md.EndLocTS = &lat, &lon, &ts
	}
	return md
}
