package protocol

import (
	"fmt"
	"net/http"
	"net/url"
)

// NewUploadRequest builds the request transferring the measurement bytes from
// offset onward: a PUT of the remaining payload to the session's location URL.
// An offset beyond the payload produces the indeterminate form "bytes */total"
// with an empty body, prompting the collector to finalize the upload.
func NewUploadRequest(location *url.URL, payload []byte, offset int64, token string) *Request {
	total := int64(len(payload))

	// A negative offset cannot come from a well-formed Range header; restart
	// the transfer from the beginning rather than slicing out of bounds.
	if offset < 0 {
		offset = 0
	}

	header := http.Header{}
	header.Set("Authorization", bearer(token))
	header.Set("Content-Type", "application/octet-stream")

	var body []byte
	if offset < total {
		body = payload[offset:]
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, total-1, total))
	} else {
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
	}

	return &Request{
		Method: http.MethodPut,
		URL:    location,
		Header: header,
		Body:   body,
	}
}
