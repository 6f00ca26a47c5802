// Package store owns the custody ledger state: the participant map, the
// product map, and the product id counter. All mutation funnels through
// Ledger.Update so every command executes as one atomic unit — either every
// write in the callback commits, or none do.
package store

import (
	"context"

	identity "supplytrace/internal/identity/models"
	product "supplytrace/internal/product/models"
	"supplytrace/pkg/domain"
)

// Txn is the view handed to an Update callback. Reads see committed state
// plus the callback's own staged writes; nothing becomes visible to other
// callers until the callback returns nil.
type Txn interface {
	// Participant returns the record for addr or sentinel.ErrNotFound.
	Participant(addr domain.Address) (identity.Participant, error)
	// CreateParticipant stages a brand-new participant record. It returns
	// sentinel.ErrConflict when the address already exists — including when
	// a concurrent command created it first — so a duplicate registration
	// can never merge into the existing record.
	CreateParticipant(p identity.Participant) error
	// PutParticipant stages a write to an existing participant record.
	PutParticipant(p identity.Participant) error
	// Product returns the record for id or sentinel.ErrNotFound.
	Product(id domain.ProductID) (product.Product, error)
	// PutProduct stages a product write.
	PutProduct(p product.Product) error
	// NextProductID issues the next sequential id. The counter only
	// advances if the callback commits; rejected commands do not consume
	// ids.
	NextProductID() (domain.ProductID, error)
}

// Ledger is the store contract shared by the memory and Postgres
// implementations.
//
// Update serializes mutating commands: callbacks for the same ledger never
// interleave, and a callback error rolls back every staged write
// (fail-clean). Reads may run concurrently with each other and only ever
// observe committed state.
type Ledger interface {
	Update(ctx context.Context, fn func(tx Txn) error) error

	GetParticipant(ctx context.Context, addr domain.Address) (identity.Participant, error)
	GetProduct(ctx context.Context, id domain.ProductID) (product.Product, error)

	// ListParticipants returns a snapshot in registration order.
	ListParticipants(ctx context.Context) ([]identity.Participant, error)
	// ListProducts returns a snapshot in id order.
	ListProducts(ctx context.Context) ([]product.Product, error)
	// TotalProducts returns the id counter's current value: the count of
	// ever-created products.
	TotalProducts(ctx context.Context) (uint64, error)
}
