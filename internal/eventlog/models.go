// Package eventlog is the append-only record of accepted mutations. The core
// emits one event per committed command; the surrounding application drains
// the log for audit and UI refresh. The core never pushes notifications
// anywhere else.
//
// Emission happens after the command's ledger transaction commits, outside
// the serialization point. Under concurrent commands the log's append order
// tracks commit order closely but is not guaranteed identical to it; each
// event carries its own Timestamp, and consumers that need a strict ordering
// for one record order by it.
package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"supplytrace/pkg/domain"
)

// Kind names the mutation an event records.
type Kind string

const (
	KindParticipantRegistered Kind = "participant_registered"
	KindParticipantVerified   Kind = "participant_verified"
	KindProductRegistered     Kind = "product_registered"
	KindProductTransferred    Kind = "product_transferred"
	KindPriceUpdated          Kind = "price_updated"
	KindCounterfeitMarked     Kind = "counterfeit_marked"
)

// Event is an immutable record of one accepted mutation. Subject is the
// product id or participant address the command acted on; Fields carries the
// resulting record fields a consumer needs without a follow-up query.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"kind"`
	Subject   string            `json:"subject"`
	Actor     domain.Address    `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// New stamps a fresh event id onto the record.
func New(kind Kind, subject string, actor domain.Address, at time.Time, fields map[string]string) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Subject:   subject,
		Actor:     actor,
		Timestamp: at,
		Fields:    fields,
	}
}

// Store persists accepted events in append order.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// Sink receives events after they are persisted, e.g. a Kafka producer.
type Sink interface {
	Produce(ctx context.Context, event Event) error
}
