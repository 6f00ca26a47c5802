package models

import (
	"strings"
	"time"

	identity "supplytrace/internal/identity/models"
	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
)

// Status is a product's position in its fulfillment lifecycle. The numeric
// values are part of the wire format consumed by downstream tooling; do not
// reorder.
type Status uint8

const (
	StatusManufactured Status = iota
	// StatusInTransit is a valid status that no transfer currently produces.
	// It is reserved for a future shipment-tracking command; transfers map
	// the recipient's role straight to the destination status.
	StatusInTransit
	StatusWithDistributor
	StatusWithRetailer
	StatusSold
)

func (s Status) String() string {
	switch s {
	case StatusManufactured:
		return "manufactured"
	case StatusInTransit:
		return "in_transit"
	case StatusWithDistributor:
		return "with_distributor"
	case StatusWithRetailer:
		return "with_retailer"
	case StatusSold:
		return "sold"
	}
	return "unknown"
}

// Product is a tracked item with custody, status, price, and authenticity.
//
// Invariants:
//   - ID, Name, BatchNumber, ManufacturedAt, and Manufacturer are immutable
//     after creation
//   - CurrentOwner starts equal to Manufacturer and only changes via transfer
//   - Authentic starts true and latches false; it never flips back
//   - Price is mutated only by the current owner
type Product struct {
	ID             domain.ProductID `json:"id"`
	Name           string           `json:"name"`
	BatchNumber    string           `json:"batch_number"`
	ManufacturedAt time.Time        `json:"manufactured_at"`
	Manufacturer   domain.Address   `json:"manufacturer"`
	CurrentOwner   domain.Address   `json:"current_owner"`
	Status         Status           `json:"status"`
	Authentic      bool             `json:"authentic"`
	Price          uint64           `json:"price"`
}

// NewProduct validates creation input and builds the record. The price is in
// the smallest unit of the pricing currency.
func NewProduct(id domain.ProductID, name, batchNumber string, price int64, manufacturer domain.Address, now time.Time) (Product, error) {
	name = strings.TrimSpace(name)
	batchNumber = strings.TrimSpace(batchNumber)
	if name == "" {
		return Product{}, dErrors.New(dErrors.CodeInvalidInput, "product name cannot be empty")
	}
	if batchNumber == "" {
		return Product{}, dErrors.New(dErrors.CodeInvalidInput, "batch number cannot be empty")
	}
	if price < 0 {
		return Product{}, dErrors.New(dErrors.CodeInvalidInput, "price cannot be negative")
	}
	return Product{
		ID:             id,
		Name:           name,
		BatchNumber:    batchNumber,
		ManufacturedAt: now,
		Manufacturer:   manufacturer,
		CurrentOwner:   manufacturer,
		Status:         StatusManufactured,
		Authentic:      true,
		Price:          uint64(price),
	}, nil
}

// CanTransferTo resolves the destination status for a transfer to a recipient
// with the given role. The mapping is fixed:
//
//	distributor -> with_distributor
//	retailer    -> with_retailer
//	consumer    -> sold
//
// Goods never flow back to a manufacturer, and a sold product has no valid
// outgoing transfer.
func (p *Product) CanTransferTo(recipient identity.Role) (Status, error) {
	if p.Status == StatusSold {
		return 0, dErrors.New(dErrors.CodeInvalidTransition, "product has been sold and cannot be transferred")
	}
	switch recipient {
	case identity.RoleDistributor:
		return StatusWithDistributor, nil
	case identity.RoleRetailer:
		return StatusWithRetailer, nil
	case identity.RoleConsumer:
		return StatusSold, nil
	case identity.RoleManufacturer, identity.RoleNone:
		return 0, dErrors.New(dErrors.CodeInvalidTransition, "no transfer is defined for recipient role "+recipient.String())
	}
	return 0, dErrors.New(dErrors.CodeInvalidTransition, "no transfer is defined for recipient role "+recipient.String())
}

// ApplyTransfer reassigns custody. Call CanTransferTo first.
func (p *Product) ApplyTransfer(to domain.Address, status Status) {
	p.CurrentOwner = to
	p.Status = status
}

// SetPrice revises the stored price.
func (p *Product) SetPrice(price int64) error {
	if price < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "price cannot be negative")
	}
	p.Price = uint64(price)
	return nil
}

// CanFlag checks the authenticity latch has not already been tripped.
func (p *Product) CanFlag() error {
	if !p.Authentic {
		return dErrors.New(dErrors.CodeAlreadyFlagged, "product is already marked counterfeit")
	}
	return nil
}

// ApplyFlag marks the product counterfeit. The flag is permanent.
func (p *Product) ApplyFlag() {
	p.Authentic = false
}
