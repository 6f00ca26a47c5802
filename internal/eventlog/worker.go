package eventlog

import (
	"context"
	"log/slog"
)

// Worker drains the emitter inbox, appends each event to the store, and
// forwards it to the optional sink. It keeps background processing testable
// without wiring a queue implementation into the registries.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{store: store, inbox: inbox}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type WorkerOption func(*Worker)

func WithSink(sink Sink) WorkerOption {
	return func(w *Worker) { w.sink = sink }
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// Run processes events until ctx is cancelled. A store failure stops the
// worker; a sink failure is logged and skipped so a broker outage cannot
// stall the audit log.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
			if w.sink == nil {
				continue
			}
			if err := w.sink.Produce(ctx, event); err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "event sink produce failed",
					"kind", string(event.Kind),
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
