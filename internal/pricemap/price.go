package pricemap

import (
	"errors"
	"math"
)

// Price is a finite, positive floating-point scalar usable as a map key.
// NaN (and non-positive values) are rejected at construction so that the
// ordered map never has to reason about an unorderable key.
type Price struct {
	v float64
}

var ErrInvalidPrice = errors.New("pricemap: price must be finite and positive")

// NewPrice validates and wraps a raw float64.
func NewPrice(v float64) (Price, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return Price{}, ErrInvalidPrice
	}
	return Price{v: v}, nil
}

// Float64 returns the underlying value.
func (p Price) Float64() float64 { return p.v }

func (p Price) less(other Price) bool { return p.v < other.v }
func (p Price) equal(other Price) bool { return p.v == other.v }
