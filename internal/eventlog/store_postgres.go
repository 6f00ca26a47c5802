package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"supplytrace/pkg/domain"
)

// PostgresStore appends events to a ledger_events table. Append order is
// preserved by the seq identity column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventSchema = `
CREATE TABLE IF NOT EXISTS ledger_events (
	id        UUID PRIMARY KEY,
	kind      TEXT NOT NULL,
	subject   TEXT NOT NULL,
	actor     TEXT NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	fields    JSONB,
	seq       BIGINT GENERATED ALWAYS AS IDENTITY
);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, eventSchema); err != nil {
		return fmt.Errorf("ensure event schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var fields []byte
	if event.Fields != nil {
		var err error
		fields, err = json.Marshal(event.Fields)
		if err != nil {
			return fmt.Errorf("marshal event fields: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_events (id, kind, subject, actor, ts, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, string(event.Kind), event.Subject, event.Actor.String(),
		event.Timestamp, fields)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, subject, actor, ts, fields
		FROM ledger_events
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			id     uuid.UUID
			kind   string
			actor  string
			fields []byte
		)
		if err := rows.Scan(&id, &kind, &e.Subject, &actor, &e.Timestamp, &fields); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.ID = id
		e.Kind = Kind(kind)
		e.Actor = domain.Address(actor)
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &e.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal event fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
