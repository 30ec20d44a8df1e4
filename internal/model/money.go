package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FromMinorUnits converts an amount in minor currency units to a decimal.
// The platform API reports prices in cents.
// Examples: 4550 → 45.50, 0 → 0
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ParseAmount parses a decimal string amount in major units, as stored in the
// catalog. Surrounding whitespace is ignored; an empty string is an error.
// Examples: "45.50" → 45.50, " 4.99 " → 4.99, "4,99" → error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// ParseOptionalAmount is ParseAmount for nullable columns. Nil stays nil.
func ParseOptionalAmount(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := ParseAmount(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
