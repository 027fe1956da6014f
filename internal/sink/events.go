package sink

import (
	"context"
	"time"
)

// EventKind identifies a connection lifecycle event.
type EventKind string

// Connection lifecycle events.
const (
	EventConnected     EventKind = "connected"
	EventConnectFailed EventKind = "connect_failed"
	EventReconnected   EventKind = "reconnected"
	EventWriteFailed   EventKind = "write_failed"
	EventDisabled      EventKind = "disabled"
)

// Event is one connection lifecycle transition.
type Event struct {
	Kind    EventKind
	Attempt int
	Detail  string
	At      time.Time
}

// EventRecorder persists lifecycle events, e.g. to the SQLite journal.
// Record is called while the sink lock is held and should return quickly.
type EventRecorder interface {
	Record(ctx context.Context, e Event) error
}

// eventSink forwards events to an optional recorder. Recorder errors are
// logged and otherwise ignored.
type eventSink struct {
	recorder EventRecorder
	logger   Logger
}

func (e *eventSink) emit(ctx context.Context, kind EventKind, attempt int, detail string, at time.Time) {
	if e == nil || e.recorder == nil {
		return
	}
	ev := Event{Kind: kind, Attempt: attempt, Detail: detail, At: at}
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.logger.Debug("recording sink event failed", "kind", string(kind), "error", err)
	}
}
