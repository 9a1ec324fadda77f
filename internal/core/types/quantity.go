// Package types provides common type aliases and utilities.
package types

import (
	"fmt"
	"strconv"
)

// Quantity is a whole-unit stock quantity.
//
// The ledger counts physical units; fractional amounts are out of scope,
// so a plain int64 keeps arithmetic exact and storage a BIGINT.
type Quantity int64

func NewQuantity(v int64) Quantity { return Quantity(v) }

func (q Quantity) Int64() int64 { return int64(q) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

// Min returns the smaller of q and other.
func (q Quantity) Min(other Quantity) Quantity {
	if q < other {
		return q
	}
	return other
}

func (q Quantity) String() string {
	return strconv.FormatInt(int64(q), 10)
}

// ParseQuantity parses a decimal string into Quantity.
func ParseQuantity(s string) (Quantity, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	return Quantity(v), nil
}
