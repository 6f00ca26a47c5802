// Package authz is the command validator: a stateless decision layer shared
// by both registries. Every mutating command resolves and checks its caller
// here before any record is touched, so a rejection can never leave partial
// state behind.
package authz

import (
	"errors"

	identity "supplytrace/internal/identity/models"
	"supplytrace/internal/ledger/store"
	product "supplytrace/internal/product/models"
	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
	"supplytrace/pkg/platform/sentinel"
)

// Requirement describes what a command demands of its caller.
type Requirement struct {
	// Role, when not RoleNone, is the exact role the caller must hold.
	Role identity.Role
	// Verified requires the caller to have passed administrator
	// verification.
	Verified bool
}

// CheckCaller resolves the caller against the ledger view and applies the
// requirement. It returns the caller's record on success, or one of the
// validator rejections: not_registered, wrong_role, not_verified.
func CheckCaller(tx store.Txn, caller domain.Address, req Requirement) (identity.Participant, error) {
	p, err := tx.Participant(caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.Participant{}, dErrors.New(dErrors.CodeNotRegistered, "caller is not a registered participant")
		}
		return identity.Participant{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolve caller")
	}
	if req.Role != identity.RoleNone && p.Role != req.Role {
		return identity.Participant{}, dErrors.New(dErrors.CodeWrongRole, "caller must hold the "+req.Role.String()+" role")
	}
	if req.Verified && !p.Verified {
		return identity.Participant{}, dErrors.New(dErrors.CodeNotVerified, "caller has not been verified")
	}
	return p, nil
}

// CheckOwner rejects callers that do not hold custody of the product.
func CheckOwner(p product.Product, caller domain.Address) error {
	if p.CurrentOwner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "caller is not the current owner of product "+p.ID.String())
	}
	return nil
}

// CheckAdmin rejects callers other than the configured registry
// administrator. The administrator is a fixed identity supplied at ledger
// construction, not a participant record.
func CheckAdmin(admin, caller domain.Address) error {
	if caller != admin {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller is not the registry administrator")
	}
	return nil
}
