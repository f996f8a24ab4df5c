package protocol

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movelog/uplink/internal/capture"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewPreRequest_HeadersAndBody(t *testing.T) {
	meta := &capture.MetaData{
		DeviceID:      "dev-1",
		MeasurementID: 42,
		DeviceType:    "iPhone15,2",
		OSVersion:     "17.4",
		AppVersion:    "3.2.1",
		Length:        1000.5,
		LocationCount: 10,
		Modality:      "BICYCLE",
		FormatVersion: capture.MetaDataFormatVersion,
	}

	req, err := NewPreRequest(mustParseURL(t, "https://collector.example.com/api/v4"), meta, 4096, "tok123")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://collector.example.com/api/v4/measurements", req.URL.String())

	assert.Equal(t, "application/json; charset=UTF-8", req.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer tok123", req.Header.Get("Authorization"))
	assert.Equal(t, "4096", req.Header.Get("x-upload-content-length"))
	assert.Equal(t, "application/octet-stream", req.Header.Get("x-upload-content-type"))
	assert.Equal(t, "gzip", req.Header.Get("Accept-Encoding"))

	var decoded capture.MetaData
	require.NoError(t, json.Unmarshal(req.Body, &decoded))
	assert.Equal(t, *meta, decoded)
}

func TestNewStatusRequest_Headers(t *testing.T) {
	loc := mustParseURL(t, "https://collector.example.com/upload/x")

	req := NewStatusRequest(loc, 4096, "tok123")

	assert.Equal(t, http.MethodPut, req.Method)
	assert.Same(t, loc, req.URL)
	assert.Empty(t, req.Body)
	assert.Equal(t, "bytes */4096", req.Header.Get("Content-Range"))
	assert.Equal(t, "Bearer tok123", req.Header.Get("Authorization"))
	assert.Equal(t, "application/octet-stream", req.Header.Get("Content-Type"))
}

func TestNewUploadRequest_FullPayload(t *testing.T) {
	loc := mustParseURL(t, "https://collector.example.com/upload/x")
	payload := []byte("hello world")

	req := NewUploadRequest(loc, payload, 0, "tok123")

	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, payload, req.Body)
	assert.Equal(t, "bytes 0-10/11", req.Header.Get("Content-Range"))
	assert.Equal(t, "Bearer tok123", req.Header.Get("Authorization"))
	assert.Equal(t, "application/octet-stream", req.Header.Get("Content-Type"))
}

func TestNewUploadRequest_Resumed(t *testing.T) {
	loc := mustParseURL(t, "https://collector.example.com/upload/x")
	payload := make([]byte, 2000)

	req := NewUploadRequest(loc, payload, 1000, "tok123")

	assert.Equal(t, payload[1000:], req.Body)
	assert.Equal(t, "bytes 1000-1999/2000", req.Header.Get("Content-Range"))
}

func TestNewUploadRequest_NegativeOffsetRestarts(t *testing.T) {
	loc := mustParseURL(t, "https://collector.example.com/upload/x")
	payload := []byte("hello world")

	req := NewUploadRequest(loc, payload, -4, "tok123")

	assert.Equal(t, payload, req.Body)
	assert.Equal(t, "bytes 0-10/11", req.Header.Get("Content-Range"))
}

func TestNewUploadRequest_OffsetBeyondPayload(t *testing.T) {
	loc := mustParseURL(t, "https://collector.example.com/upload/x")
	payload := []byte("abc")

	req := NewUploadRequest(loc, payload, 3, "tok123")

	assert.Empty(t, req.Body)
	assert.Equal(t, "bytes */3", req.Header.Get("Content-Range"))
}

func TestParseRangeEnd(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    int64
		wantErr bool
	}{
		{name: "empty means nothing received", header: "", want: 0},
		{name: "first kilobyte", header: "bytes=0-999", want: 1000},
		{name: "single byte", header: "bytes=0-0", want: 1},
		{name: "no prefix", header: "0-999", wantErr: true},
		{name: "missing dash", header: "bytes=999", wantErr: true},
		{name: "garbage end", header: "bytes=0-xyz", wantErr: true},
		{name: "negative end", header: "bytes=0--5", wantErr: true},
		{name: "end overflows next offset", header: "bytes=0-9223372036854775807", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRangeEnd(tc.header)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
