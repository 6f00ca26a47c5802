package eventlog

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplytrace/pkg/domain"
)

var actor = domain.Address("0xab5801a7d398351b8be11c439e05c5b3259aec9b")

// failingSink rejects every produce call.
type failingSink struct{ calls int }

func (s *failingSink) Produce(context.Context, Event) error {
	s.calls++
	return errors.New("broker unavailable")
}

func waitForEvents(t *testing.T, store *InMemoryStore, want int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		events, err := store.List(context.Background())
		require.NoError(t, err)
		if len(events) >= want {
			return events
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %d", want, len(events))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerAppendsEmittedEvents(t *testing.T) {
	store := NewInMemoryStore()
	emitter := NewEmitter(16, slog.Default())
	worker := NewWorker(store, emitter.Inbox(), WithLogger(slog.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	now := time.Now().UTC()
	first := New(KindProductRegistered, "1", actor, now, map[string]string{"name": "Widget"})
	second := New(KindProductTransferred, "1", actor, now, nil)
	emitter.Emit(ctx, first)
	emitter.Emit(ctx, second)

	events := waitForEvents(t, store, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	cancel()
	<-done
}

func TestWorkerSurvivesSinkFailure(t *testing.T) {
	store := NewInMemoryStore()
	sink := &failingSink{}
	emitter := NewEmitter(16, slog.Default())
	worker := NewWorker(store, emitter.Inbox(),
		WithLogger(slog.Default()),
		WithSink(sink),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	emitter.Emit(ctx, New(KindPriceUpdated, "1", actor, time.Now().UTC(), nil))
	emitter.Emit(ctx, New(KindCounterfeitMarked, "1", actor, time.Now().UTC(), nil))

	events := waitForEvents(t, store, 2)
	assert.Len(t, events, 2, "sink failures must not block the audit log")
	assert.GreaterOrEqual(t, sink.calls, 2)

	cancel()
	<-done
}

func TestEmitDropsWhenInboxSaturated(t *testing.T) {
	// No worker draining, capacity one: the second emit must not block once
	// the caller's context is cancelled.
	emitter := NewEmitter(1, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())

	emitter.Emit(ctx, New(KindPriceUpdated, "1", actor, time.Now().UTC(), nil))
	cancel()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		emitter.Emit(ctx, New(KindPriceUpdated, "2", actor, time.Now().UTC(), nil))
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a saturated inbox with a cancelled context")
	}
}

func TestInMemoryStoreListReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, New(KindParticipantRegistered, actor.String(), actor, time.Now().UTC(), nil)))

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	events[0].Subject = "mutated"

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, actor.String(), again[0].Subject)
}
