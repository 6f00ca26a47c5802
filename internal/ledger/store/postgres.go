package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	identity "supplytrace/internal/identity/models"
	product "supplytrace/internal/product/models"
	"supplytrace/pkg/domain"
	"supplytrace/pkg/platform/sentinel"
)

// Postgres persists the ledger in PostgreSQL. Each Update runs in one
// transaction: record reads take row locks (SELECT ... FOR UPDATE) so
// concurrent commands against the same records serialize, and a callback
// error rolls the whole transaction back.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS participants (
	address       TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	role          SMALLINT NOT NULL,
	verified      BOOLEAN NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	seq           BIGINT GENERATED ALWAYS AS IDENTITY
);

CREATE TABLE IF NOT EXISTS products (
	id              BIGINT PRIMARY KEY,
	name            TEXT NOT NULL,
	batch_number    TEXT NOT NULL,
	manufactured_at TIMESTAMPTZ NOT NULL,
	manufacturer    TEXT NOT NULL,
	current_owner   TEXT NOT NULL,
	status          SMALLINT NOT NULL,
	authentic       BOOLEAN NOT NULL,
	price           BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_counters (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

INSERT INTO ledger_counters (name, value)
VALUES ('product_id', 0)
ON CONFLICT (name) DO NOTHING;
`

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

type pgTxn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTxn) Participant(addr domain.Address) (identity.Participant, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT address, name, role, verified, registered_at
		FROM participants
		WHERE address = $1
		FOR UPDATE`, addr.String())
	return scanParticipant(row)
}

func (t *pgTxn) CreateParticipant(p identity.Participant) error {
	// FOR UPDATE on an absent row locks nothing, so two concurrent
	// registrations for the same address can both pass the existence check.
	// The loser's insert blocks on the unique index until the winner
	// commits, then takes the DO NOTHING arm and reports zero rows — the
	// conflict surfaces instead of merging into the winner's record.
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO participants (address, name, role, verified, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO NOTHING`,
		p.Address.String(), p.Name, int16(p.Role), p.Verified, p.RegisteredAt)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	if inserted == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (t *pgTxn) PutParticipant(p identity.Participant) error {
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE participants
		SET name = $2, role = $3, verified = $4, registered_at = $5
		WHERE address = $1`,
		p.Address.String(), p.Name, int16(p.Role), p.Verified, p.RegisteredAt)
	if err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

func (t *pgTxn) Product(id domain.ProductID) (product.Product, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, name, batch_number, manufactured_at, manufacturer,
		       current_owner, status, authentic, price
		FROM products
		WHERE id = $1
		FOR UPDATE`, int64(id))
	return scanProduct(row)
}

func (t *pgTxn) PutProduct(p product.Product) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO products (id, name, batch_number, manufactured_at,
			manufacturer, current_owner, status, authentic, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET current_owner = EXCLUDED.current_owner, status = EXCLUDED.status,
		    authentic = EXCLUDED.authentic, price = EXCLUDED.price`,
		int64(p.ID), p.Name, p.BatchNumber, p.ManufacturedAt,
		p.Manufacturer.String(), p.CurrentOwner.String(),
		int16(p.Status), p.Authentic, int64(p.Price))
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

func (t *pgTxn) NextProductID() (domain.ProductID, error) {
	// The counter row lock serializes concurrent registrations; rollback
	// returns the issued id, so rejected commands never consume one.
	var value int64
	err := t.tx.QueryRowContext(t.ctx, `
		UPDATE ledger_counters
		SET value = value + 1
		WHERE name = 'product_id'
		RETURNING value`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("advance product id counter: %w", err)
	}
	return domain.ProductID(value), nil
}

func (s *Postgres) Update(ctx context.Context, fn func(tx Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	if err := fn(&pgTxn{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (s *Postgres) GetParticipant(ctx context.Context, addr domain.Address) (identity.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, name, role, verified, registered_at
		FROM participants
		WHERE address = $1`, addr.String())
	return scanParticipant(row)
}

func (s *Postgres) GetProduct(ctx context.Context, id domain.ProductID) (product.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, batch_number, manufactured_at, manufacturer,
		       current_owner, status, authentic, price
		FROM products
		WHERE id = $1`, int64(id))
	return scanProduct(row)
}

func (s *Postgres) ListParticipants(ctx context.Context) ([]identity.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, name, role, verified, registered_at
		FROM participants
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []identity.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) ListProducts(ctx context.Context) ([]product.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, batch_number, manufactured_at, manufacturer,
		       current_owner, status, authentic, price
		FROM products
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) TotalProducts(ctx context.Context) (uint64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM ledger_counters WHERE name = 'product_id'`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("read product id counter: %w", err)
	}
	return uint64(value), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (identity.Participant, error) {
	var (
		p    identity.Participant
		addr string
		role int16
	)
	err := row.Scan(&addr, &p.Name, &role, &p.Verified, &p.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Participant{}, sentinel.ErrNotFound
	}
	if err != nil {
		return identity.Participant{}, fmt.Errorf("scan participant: %w", err)
	}
	p.Address = domain.Address(addr)
	p.Role = identity.Role(role)
	return p, nil
}

func scanProduct(row rowScanner) (product.Product, error) {
	var (
		p            product.Product
		id           int64
		manufacturer string
		owner        string
		status       int16
		price        int64
	)
	err := row.Scan(&id, &p.Name, &p.BatchNumber, &p.ManufacturedAt,
		&manufacturer, &owner, &status, &p.Authentic, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, sentinel.ErrNotFound
	}
	if err != nil {
		return product.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.ID = domain.ProductID(id)
	p.Manufacturer = domain.Address(manufacturer)
	p.CurrentOwner = domain.Address(owner)
	p.Status = product.Status(status)
	p.Price = uint64(price)
	return p, nil
}
