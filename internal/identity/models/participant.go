package models

import (
	"strings"
	"time"

	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
)

// Role is a participant's position in the supply chain. The numeric values
// are part of the wire format consumed by downstream tooling; do not reorder.
type Role uint8

const (
	RoleNone Role = iota
	RoleManufacturer
	RoleDistributor
	RoleRetailer
	RoleConsumer
)

// Registerable reports whether the role may be chosen at registration.
// RoleNone exists only as the unassigned zero value.
func (r Role) Registerable() bool {
	switch r {
	case RoleManufacturer, RoleDistributor, RoleRetailer, RoleConsumer:
		return true
	}
	return false
}

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleManufacturer:
		return "manufacturer"
	case RoleDistributor:
		return "distributor"
	case RoleRetailer:
		return "retailer"
	case RoleConsumer:
		return "consumer"
	}
	return "unknown"
}

// Participant is a registered actor.
//
// Invariants:
//   - Address is unique; a second registration for the same address is
//     rejected, never merged
//   - Role is set exactly once at registration and never changes
//   - Verified starts false and only flips true through the administrator
type Participant struct {
	Address      domain.Address `json:"address"`
	Name         string         `json:"name"`
	Role         Role           `json:"role"`
	Verified     bool           `json:"verified"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// NewParticipant validates registration input and builds the record.
func NewParticipant(addr domain.Address, name string, role Role, now time.Time) (Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Participant{}, dErrors.New(dErrors.CodeInvalidName, "participant name cannot be empty")
	}
	if !role.Registerable() {
		return Participant{}, dErrors.New(dErrors.CodeInvalidRole, "role must be manufacturer, distributor, retailer, or consumer")
	}
	return Participant{
		Address:      addr,
		Name:         name,
		Role:         role,
		Verified:     false,
		RegisteredAt: now,
	}, nil
}

// CanVerify checks that the verification flag may still be set. A repeated
// verification is a reported error so caller bugs surface instead of being
// silently absorbed.
func (p *Participant) CanVerify() error {
	if p.Verified {
		return dErrors.New(dErrors.CodeAlreadyVerified, "participant is already verified")
	}
	return nil
}

// ApplyVerification flips the flag. Call CanVerify first.
func (p *Participant) ApplyVerification() {
	p.Verified = true
}
