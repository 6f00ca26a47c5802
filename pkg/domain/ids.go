// Package domain holds the identifier types shared across the ledger.
// Keeping them here lets stores, services, and handlers agree on a single
// representation without importing each other's models.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// addressHexLen is the number of hex digits in an address, excluding the
// "0x" prefix. Addresses are 20 opaque bytes, carried around in their
// canonical lowercase hex form.
const addressHexLen = 40

// Address identifies a participant. It is normalized to lowercase
// "0x"-prefixed hex so map lookups and equality checks are exact.
type Address string

// ParseAddress validates and normalizes an external address string.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("address must start with 0x")
	}
	hex := s[2:]
	if len(hex) != addressHexLen {
		return "", fmt.Errorf("address must be %d hex characters, got %d", addressHexLen, len(hex))
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return "", fmt.Errorf("address contains non-hex character %q", c)
		}
	}
	return Address("0x" + strings.ToLower(hex)), nil
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

// ProductID is the strictly increasing identifier assigned at product
// creation. IDs start at 1; zero means unassigned.
type ProductID uint64

// ParseProductID parses a decimal product id from its path/string form.
func ParseProductID(s string) (ProductID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return ProductID(n), nil
}

func (id ProductID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id ProductID) IsZero() bool {
	return id == 0
}
