package upload

import (
	"context"
	"fmt"
	"net/http"

	"github.com/movelog/uplink/internal/upload/protocol"
)

// Tag identifies an outgoing request so its response can be routed back to
// the correct handler. Tags are self-describing: together with the session
// registry and the measurement store they are enough to reconstruct the
// upload context even in a process that did not send the request.
type Tag struct {
	RequestType   protocol.RequestType
	MeasurementID int64
}

func (t Tag) String() string {
	return fmt.Sprintf("%s/%d", t.RequestType, t.MeasurementID)
}

// Result is the eventual outcome of a tagged request. Err is set for
// transport-level failures, in which case StatusCode and Header are zero.
type Result struct {
	Tag        Tag
	StatusCode int
	Header     http.Header
	Err        error
}

// Transport sends protocol requests in the background and eventually delivers
// a Result for each. Send never blocks on the network; deliver may be invoked
// from an arbitrary goroutine, possibly long after Send returned. A Transport
// is a single shared object, safe for concurrent use, that outlives
// individual requests. Timeout and retry/backoff policy for network-level
// failures belong to the transport, not to its callers.
type Transport interface {
	Send(ctx context.Context, tag Tag, req *protocol.Request, deliver func(Result))
}
