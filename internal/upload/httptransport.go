package upload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/movelog/uplink/internal/logging"
	"github.com/movelog/uplink/internal/upload/protocol"
)

// HTTPTransport implements Transport over a retrying HTTP client. Request
// bodies are served from seekable readers so network-level retries rewind
// instead of truncating the payload. At most one connection per collector
// host is kept open.
type HTTPTransport struct {
	client *retryablehttp.Client
	log    logging.Logger
	wg     sync.WaitGroup
}

func NewHTTPTransport(timeout time.Duration, log logging.Logger) *HTTPTransport {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	client.HTTPClient.Timeout = timeout
	// Exhausted retries must still surface the final status code to the
	// upload process instead of a synthetic "giving up" error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if t, ok := client.HTTPClient.Transport.(*http.Transport); ok {
		t.MaxConnsPerHost = 1
	}
	return &HTTPTransport{client: client, log: log}
}

func (t *HTTPTransport) Send(ctx context.Context, tag Tag, req *protocol.Request, deliver func(Result)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		deliver(t.do(ctx, tag, req))
	}()
}

func (t *HTTPTransport) do(ctx context.Context, tag Tag, req *protocol.Request) Result {
	var body any
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return Result{Tag: tag, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.ContentLength = int64(len(req.Body))

	t.log.Debug(ctx, "sending request", "tag", tag.String(), "method", req.Method, "url", req.URL.String())

	resp, err := t.client.Do(hreq)
	if err != nil {
		return Result{Tag: tag, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{Tag: tag, StatusCode: resp.StatusCode, Header: resp.Header}
}

// Wait blocks until every in-flight request has been delivered. Used on
// shutdown so pending responses still reach the registry.
func (t *HTTPTransport) Wait() {
	t.wg.Wait()
}
