package domain

import (
	"fmt"
	"math"
	"strings"
)

// Amount is a monetary value in the smallest currency unit. Integer minor
// units keep capture accumulation free of rounding drift.
type Amount int64

// CheckedAdd returns a+b, saturating at the int64 maximum.
func (a Amount) CheckedAdd(b Amount) Amount {
	if b > 0 && a > Amount(math.MaxInt64)-b {
		return Amount(math.MaxInt64)
	}
	return a + b
}

// Max returns the larger of a and b. Reconciliation uses this to make
// out-of-order capture reports a no-op.
func (a Amount) Max(b Amount) Amount {
	if b > a {
		return b
	}
	return a
}

func (a Amount) Int64() int64 { return int64(a) }

// Currency is an ISO 4217 alphabetic code, uppercase.
type Currency string

func ParseCurrency(s string) (Currency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", fmt.Errorf("parse currency %q", s)
	}
	return Currency(s), nil
}

func (c Currency) String() string { return string(c) }
