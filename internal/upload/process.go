package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/movelog/uplink/internal/auth"
	"github.com/movelog/uplink/internal/capture"
	"github.com/movelog/uplink/internal/logging"
	"github.com/movelog/uplink/internal/upload/protocol"
	"github.com/movelog/uplink/internal/upload/registry"
)

// ErrMissingLocation is raised when the collector accepted a pre-request but
// assigned no resumable upload URL.
var ErrMissingLocation = errors.New("pre-request response carried no Location header")

// Process is the upload orchestrator. It runs no loop of its own: it is
// invoked by explicit Upload calls and by transport completion callbacks,
// which may fire on arbitrary goroutines, including in a process relaunched
// after the original sender died. All durable state lives in the session
// registry; the process re-derives its context from (tag, registry,
// measurement store) on every callback.
type Process struct {
	endpoint  *url.URL
	registry  registry.Registry
	store     capture.Store
	factory   Factory
	auth      auth.Authenticator
	transport Transport
	log       logging.Logger

	status statusPublisher

	mu    sync.Mutex
	locks map[int64]*keyedLock
}

// keyedLock is a per-measurement mutex with a holder/waiter count, so the
// lock map can evict entries nobody is using.
type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewProcess wires the orchestrator. endpoint is the collector API base URL;
// the measurements resource is resolved relative to it.
func NewProcess(endpoint *url.URL, reg registry.Registry, store capture.Store, factory Factory,
	authenticator auth.Authenticator, transport Transport, log logging.Logger) *Process {
	return &Process{
		endpoint:  endpoint,
		registry:  reg,
		store:     store,
		factory:   factory,
		auth:      authenticator,
		transport: transport,
		log:       log,
		locks:     map[int64]*keyedLock{},
	}
}

// Subscribe registers a status stream consumer. Handlers run synchronously on
// the emitting goroutine and must not call back into the Process.
func (p *Process) Subscribe(fn func(StatusEvent)) {
	p.status.subscribe(fn)
}

// lockKey acquires the mutex serializing all registry mutations and response
// handling for one measurement id, so two responses for the same measurement
// cannot corrupt the log or double-invoke the terminal callbacks. The
// returned function releases the lock and evicts the map entry once no other
// goroutine holds or awaits it.
func (p *Process) lockKey(id int64) (unlock func()) {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &keyedLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

// Upload starts or resumes the synchronization of one measurement. It issues
// the first request of the attempt and returns without waiting for the
// network; the terminal outcome arrives later on the status stream. Setup
// errors (serialization, registry persistence, authentication) are returned
// synchronously.
func (p *Process) Upload(ctx context.Context, m *capture.Measurement) (Upload, error) {
	unlock := p.lockKey(m.ID)
	defer unlock()

	s, err := p.registry.Get(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	u := p.factory.Upload(m)

	if s == nil {
		if err := p.registry.Register(ctx, m.ID); err != nil {
			return nil, err
		}
		p.status.emit(StatusEvent{MeasurementID: m.ID, Phase: PhaseStarted})
		if err := p.sendPreRequest(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}

	p.status.emit(StatusEvent{MeasurementID: m.ID, Phase: PhaseStarted})

	if s.Location == "" {
		// The previous run died between registering the session and the
		// pre-request response. No collector state to resume; negotiate anew.
		if err := p.sendPreRequest(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}

	location, err := url.Parse(s.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid session location %q: %w", s.Location, err)
	}
	if err := p.sendStatusRequest(ctx, u, location); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Process) sendPreRequest(ctx context.Context, u Upload) error {
	token, err := p.auth.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	meta, err := u.MetaData()
	if err != nil {
		return err
	}
	data, err := u.Data(ctx)
	if err != nil {
		return err
	}
	req, err := protocol.NewPreRequest(p.endpoint, meta, int64(len(data)), token)
	if err != nil {
		return err
	}
	return p.send(ctx, u.MeasurementID(), protocol.RequestTypePreRequest, req)
}

func (p *Process) sendStatusRequest(ctx context.Context, u Upload, location *url.URL) error {
	token, err := p.auth.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	data, err := u.Data(ctx)
	if err != nil {
		return err
	}
	req := protocol.NewStatusRequest(location, int64(len(data)), token)
	return p.send(ctx, u.MeasurementID(), protocol.RequestTypeStatus, req)
}

func (p *Process) sendUploadRequest(ctx context.Context, u Upload, location *url.URL, offset int64) error {
	token, err := p.auth.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	data, err := u.Data(ctx)
	if err != nil {
		return err
	}
	req := protocol.NewUploadRequest(location, data, offset, token)
	return p.send(ctx, u.MeasurementID(), protocol.RequestTypeUpload, req)
}

// send marks the session as awaiting the response of rt, then hands the
// request to the transport. The expectation is persisted first so a process
// relaunched before delivery still routes the response correctly.
func (p *Process) send(ctx context.Context, measurementID int64, rt protocol.RequestType, req *protocol.Request) error {
	if err := p.registry.SetExpecting(ctx, measurementID, rt); err != nil {
		return err
	}
	p.transport.Send(ctx, Tag{RequestType: rt, MeasurementID: measurementID}, req, p.HandleResponse)
	return nil
}

// HandleResponse routes a transport completion back into the state machine.
// It is safe to call from any goroutine. Responses for unknown sessions, and
// responses whose request type does not match the phase the session is in,
// are stale or duplicate deliveries: they are logged and ignored.
func (p *Process) HandleResponse(res Result) {
	ctx := context.Background()
	id := res.Tag.MeasurementID

	unlock := p.lockKey(id)
	defer unlock()

	log := p.log.With("measurement_id", id, "request_type", string(res.Tag.RequestType))

	s, err := p.registry.Get(ctx, id)
	if err != nil {
		log.Error(ctx, "failed to load session", "error", err)
		p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedWithError, Err: err})
		return
	}
	if s == nil {
		log.Warn(ctx, "response for unknown session ignored", "status", res.StatusCode)
		return
	}
	if s.Expecting != res.Tag.RequestType {
		p.record(ctx, id, registry.LogEntry{
			RequestType: res.Tag.RequestType,
			StatusCode:  res.StatusCode,
			Message:     fmt.Sprintf("stale response ignored, session expects %s", s.Expecting),
		}, log)
		log.Warn(ctx, "stale response ignored", "status", res.StatusCode, "expecting", string(s.Expecting))
		return
	}

	u, err := p.deriveUpload(ctx, id)
	if err != nil {
		log.Error(ctx, "failed to reconstruct upload", "error", err)
		p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedWithError, Err: err})
		return
	}

	if res.Err != nil {
		p.consume(ctx, id, registry.LogEntry{
			RequestType: res.Tag.RequestType,
			Error:       res.Err.Error(),
		}, log)
		p.fail(ctx, u, res.Err, log)
		return
	}

	switch res.Tag.RequestType {
	case protocol.RequestTypePreRequest:
		p.onReceivedPreRequest(ctx, u, res, log)
	case protocol.RequestTypeStatus:
		p.onReceivedStatusRequest(ctx, u, s, res, log)
	case protocol.RequestTypeUpload:
		p.onReceivedUploadResponse(ctx, u, res, log)
	default:
		log.Warn(ctx, "response with unknown request type ignored")
	}
}

// deriveUpload reconstructs the upload context from durable state only, so a
// response can be handled by a process that did not issue the request.
func (p *Process) deriveUpload(ctx context.Context, id int64) (Upload, error) {
	m, err := p.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload measurement %d: %w", id, err)
	}
	return p.factory.Upload(m), nil
}

func (p *Process) onReceivedPreRequest(ctx context.Context, u Upload, res Result, log logging.Logger) {
	id := u.MeasurementID()

	switch res.StatusCode {
	case http.StatusOK:
		location := res.Header.Get("Location")
		if location == "" {
			p.consume(ctx, id, registry.LogEntry{
				RequestType: protocol.RequestTypePreRequest,
				StatusCode:  res.StatusCode,
				Error:       ErrMissingLocation.Error(),
			}, log)
			p.fail(ctx, u, ErrMissingLocation, log)
			return
		}
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypePreRequest,
			StatusCode:  res.StatusCode,
			Message:     "upload session opened",
		}, log)
		if err := p.registry.SetLocation(ctx, id, location); err != nil {
			log.Error(ctx, "failed to store location", "error", err)
			p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedWithError, Err: err})
			return
		}
		locationURL, err := url.Parse(location)
		if err != nil {
			p.fail(ctx, u, fmt.Errorf("invalid location %q: %w", location, err), log)
			return
		}
		p.continueWith(ctx, u, func() error {
			return p.sendUploadRequest(ctx, u, locationURL, 0)
		}, log)

	case http.StatusUnauthorized:
		// Not terminal: the session survives so a freshly authenticated
		// retry can pick it up.
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypePreRequest,
			StatusCode:  res.StatusCode,
			Message:     "token rejected",
		}, log)
		p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedUnsuccessfully})

	case http.StatusConflict:
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypePreRequest,
			StatusCode:  res.StatusCode,
			Message:     "collector already has this measurement",
		}, log)
		p.finishSuccessfully(ctx, u, log)

	case http.StatusPreconditionFailed:
		// The collector refuses this upload permanently. Treated like a
		// success from the data owner's perspective: never retried.
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypePreRequest,
			StatusCode:  res.StatusCode,
			Message:     "collector refused the upload, accepted as terminal",
		}, log)
		p.finishSuccessfully(ctx, u, log)

	default:
		p.recordAndFail(ctx, u, protocol.RequestTypePreRequest, res.StatusCode, log)
	}
}

func (p *Process) onReceivedStatusRequest(ctx context.Context, u Upload, s *registry.Session, res Result, log logging.Logger) {
	id := u.MeasurementID()

	switch res.StatusCode {
	case http.StatusOK:
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypeStatus,
			StatusCode:  res.StatusCode,
			Message:     "upload already complete",
		}, log)
		p.finishSuccessfully(ctx, u, log)

	case http.StatusPermanentRedirect: // 308 Resume Incomplete
		offset, err := protocol.ParseRangeEnd(res.Header.Get("Range"))
		if err != nil {
			p.consume(ctx, id, registry.LogEntry{
				RequestType: protocol.RequestTypeStatus,
				StatusCode:  res.StatusCode,
				Error:       err.Error(),
			}, log)
			p.fail(ctx, u, err, log)
			return
		}
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypeStatus,
			StatusCode:  res.StatusCode,
			Message:     fmt.Sprintf("resume incomplete, %d bytes received", offset),
		}, log)
		location, err := url.Parse(s.Location)
		if err != nil {
			p.fail(ctx, u, fmt.Errorf("invalid session location %q: %w", s.Location, err), log)
			return
		}
		p.continueWith(ctx, u, func() error {
			return p.sendUploadRequest(ctx, u, location, offset)
		}, log)

	case http.StatusNotFound:
		// The collector no longer knows this session. Fall back to a fresh
		// pre-request; its 200 will assign a new location.
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypeStatus,
			StatusCode:  res.StatusCode,
			Message:     "session expired at collector, starting over",
		}, log)
		p.continueWith(ctx, u, func() error {
			return p.sendPreRequest(ctx, u)
		}, log)

	default:
		p.recordAndFail(ctx, u, protocol.RequestTypeStatus, res.StatusCode, log)
	}
}

func (p *Process) onReceivedUploadResponse(ctx context.Context, u Upload, res Result, log logging.Logger) {
	id := u.MeasurementID()

	switch res.StatusCode {
	case http.StatusCreated:
		p.consume(ctx, id, registry.LogEntry{
			RequestType: protocol.RequestTypeUpload,
			StatusCode:  res.StatusCode,
			Message:     "transfer complete",
		}, log)
		p.finishSuccessfully(ctx, u, log)

	default:
		p.recordAndFail(ctx, u, protocol.RequestTypeUpload, res.StatusCode, log)
	}
}

// record appends a response to the session log before any state transition is
// applied. Logging failures are surfaced but do not stop the transition: the
// response already happened and must be acted on.
func (p *Process) record(ctx context.Context, id int64, entry registry.LogEntry, log logging.Logger) {
	if err := p.registry.Record(ctx, id, entry); err != nil {
		log.Error(ctx, "failed to record response", "error", err)
	}
}

// consume records the matched response and then clears the durable
// expectation, so a duplicate delivery is recognized as stale. The log entry
// comes first: a crash between the two leaves a complete log, and the stale
// expectation is overwritten when the next run re-issues a request.
func (p *Process) consume(ctx context.Context, id int64, entry registry.LogEntry, log logging.Logger) {
	p.record(ctx, id, entry, log)
	if err := p.registry.SetExpecting(ctx, id, ""); err != nil {
		log.Error(ctx, "failed to clear expected request type", "error", err)
	}
}

// continueWith issues the next protocol step; failures to do so end the
// attempt through the error path.
func (p *Process) continueWith(ctx context.Context, u Upload, next func() error, log logging.Logger) {
	if err := next(); err != nil {
		p.fail(ctx, u, err, log)
	}
}

func (p *Process) recordAndFail(ctx context.Context, u Upload, rt protocol.RequestType, statusCode int, log logging.Logger) {
	err := fmt.Errorf("%s rejected with unexpected status %d", rt, statusCode)
	p.consume(ctx, u.MeasurementID(), registry.LogEntry{
		RequestType: rt,
		StatusCode:  statusCode,
		Error:       err.Error(),
	}, log)
	p.fail(ctx, u, err, log)
}

// fail ends the attempt without removing the session: retry-or-abandon is the
// caller's decision, made on the emitted error.
func (p *Process) fail(ctx context.Context, u Upload, cause error, log logging.Logger) {
	id := u.MeasurementID()
	if err := u.OnFailed(ctx); err != nil {
		log.Error(ctx, "failed to notify data store about failure", "error", err)
	}
	log.Warn(ctx, "upload attempt failed", "error", cause)
	p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedWithError, Err: cause})
}

// finishSuccessfully removes the session, then notifies the data store and
// the status stream. The session must be gone before success is declared so
// that a crash in between re-runs the protocol instead of losing data.
func (p *Process) finishSuccessfully(ctx context.Context, u Upload, log logging.Logger) {
	id := u.MeasurementID()
	if err := p.registry.Remove(ctx, id); err != nil {
		log.Error(ctx, "failed to remove session", "error", err)
		p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedWithError, Err: err})
		return
	}
	if err := u.OnSuccess(ctx); err != nil {
		log.Error(ctx, "failed to notify data store about success", "error", err)
		p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedWithError, Err: err})
		return
	}
	log.Info(ctx, "measurement synchronized")
	p.status.emit(StatusEvent{MeasurementID: id, Phase: PhaseFinishedSuccessfully})
}
