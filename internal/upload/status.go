package upload

import "sync"

// Phase is the externally visible lifecycle stage of one measurement's
// synchronization attempt.
type Phase int

const (
	// PhaseStarted is emitted when the first request of an attempt goes out.
	PhaseStarted Phase = iota + 1
	// PhaseFinishedSuccessfully means the collector has the measurement;
	// the session is gone and the data store was notified.
	PhaseFinishedSuccessfully
	// PhaseFinishedUnsuccessfully means the attempt stopped on a rejected
	// token. The session is preserved so a re-authenticated retry can resume.
	PhaseFinishedUnsuccessfully
	// PhaseFinishedWithError means the attempt failed for this round; Err
	// carries the cause. Retry-or-abandon is the caller's decision.
	PhaseFinishedWithError
)

func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseFinishedSuccessfully:
		return "finishedSuccessfully"
	case PhaseFinishedUnsuccessfully:
		return "finishedUnsuccessfully"
	case PhaseFinishedWithError:
		return "finishedWithError"
	default:
		return "unknown"
	}
}

// StatusEvent is one entry of the status stream consumed by UI and
// observability layers. Events are not persisted.
type StatusEvent struct {
	MeasurementID int64
	Phase         Phase
	Err           error
}

// statusPublisher fans StatusEvents out to subscribers. Safe for concurrent
// use; handlers are invoked synchronously on the emitting goroutine and must
// not block.
type statusPublisher struct {
	mu   sync.Mutex
	subs []func(StatusEvent)
}

func (p *statusPublisher) subscribe(fn func(StatusEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

func (p *statusPublisher) emit(ev StatusEvent) {
	p.mu.Lock()
	subs := make([]func(StatusEvent), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
