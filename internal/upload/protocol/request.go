// Package protocol builds the three HTTP requests of the resumable upload
// protocol: the pre-request negotiating a session, the status request querying
// progress, and the upload request transferring bytes. Builders are stateless;
// all protocol state lives in the session registry.
package protocol

import (
	"net/http"
	"net/url"
)

// RequestType tags an outgoing request so the asynchronous response can be
// routed back to the matching handler, possibly in a different process run.
type RequestType string

const (
	RequestTypePreRequest RequestType = "preRequest"
	RequestTypeStatus     RequestType = "status"
	RequestTypeUpload     RequestType = "upload"
)

// Request is a fully composed protocol request, ready to be handed to a
// transport. Body is nil for requests without a payload.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

func bearer(token string) string {
	return "Bearer " + token
}
