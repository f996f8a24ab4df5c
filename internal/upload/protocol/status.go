package protocol

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// NewStatusRequest builds the "how much have you received?" request: a
// zero-length PUT to the session's location URL with an indeterminate
// Content-Range.
func NewStatusRequest(location *url.URL, totalSize int64, token string) *Request {
	header := http.Header{}
	header.Set("Content-Range", fmt.Sprintf("bytes */%d", totalSize))
	header.Set("Authorization", bearer(token))
	header.Set("Content-Type", "application/octet-stream")

	return &Request{
		Method: http.MethodPut,
		URL:    location,
		Header: header,
	}
}

// ParseRangeEnd extracts the next upload offset from a collector Range header
// such as "bytes=0-999", which means 1000 bytes were received. An empty
// header means nothing was received yet.
func ParseRangeEnd(rangeHeader string) (int64, error) {
	if rangeHeader == "" {
		return 0, nil
	}
	spec, ok := strings.CutPrefix(rangeHeader, "bytes=")
	if !ok {
		return 0, fmt.Errorf("unsupported range header %q", rangeHeader)
	}
	_, endPart, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, fmt.Errorf("malformed range header %q", rangeHeader)
	}
	end, err := strconv.ParseInt(endPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed range header %q: %w", rangeHeader, err)
	}
	// The end index must be a valid zero-based byte position and end+1 must
	// not overflow; anything else is a malformed or hostile header.
	if end < 0 || end == math.MaxInt64 {
		return 0, fmt.Errorf("range end out of bounds in %q", rangeHeader)
	}
	return end + 1, nil
}
