package protocol

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/movelog/uplink/internal/capture"
)

// NewPreRequest builds the request that asks the collector to open a
// resumable upload session: a POST of the measurement metadata to the
// measurements endpoint. The x-upload-content-* headers announce the size and
// type of the payload that will follow, so the collector can refuse it up
// front.
func NewPreRequest(endpoint *url.URL, meta *capture.MetaData, payloadSize int64, token string) (*Request, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json; charset=UTF-8")
	header.Set("Authorization", bearer(token))
	header.Set("x-upload-content-length", strconv.FormatInt(payloadSize, 10))
	header.Set("x-upload-content-type", "application/octet-stream")
	header.Set("Accept-Encoding", "gzip")

	return &Request{
		Method: http.MethodPost,
		URL:    endpoint.JoinPath("measurements"),
		Header: header,
		Body:   body,
	}, nil
}
