package eventlog

import (
	"context"
	"log/slog"
)

// Emitter is the side channel between the registries and the event worker.
// Commands append to the buffered inbox after their state change commits, so
// event I/O never runs inside the store's critical section.
type Emitter struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewEmitter(buffer int, logger *slog.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	return &Emitter{inbox: make(chan Event, buffer), logger: logger}
}

// Emit enqueues an event. If the inbox is saturated and the caller's context
// expires, the event is dropped with an error log rather than wedging the
// command path.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	select {
	case e.inbox <- event:
	case <-ctx.Done():
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "event dropped: inbox saturated",
				"kind", string(event.Kind),
				"subject", event.Subject,
			)
		}
	}
}

// Inbox exposes the receive side for the worker.
func (e *Emitter) Inbox() <-chan Event {
	return e.inbox
}
