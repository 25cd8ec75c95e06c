package money

import (
	"fmt"
	"math"
)

// Cents represents a monetary value stored in euro minor units.
type Cents = int64

// CharmFloor is the lowest charm price the rounder will produce.
const CharmFloor Cents = 90

// CharmRound rounds a price down to the nearest value ending in .90.
// The tenths digit decides: x.9y collapses to x.90, anything lower drops to
// (x-1).90. The result is clamped at 0.90 and never exceeds the input.
func CharmRound(c Cents) Cents {
	if c <= CharmFloor {
		return CharmFloor
	}
	euros := c / 100
	tenths := (c / 10) * 10
	remainder := tenths - euros*100
	var rounded Cents
	if remainder >= 90 {
		rounded = euros*100 + 90
	} else {
		rounded = (euros-1)*100 + 90
	}
	if rounded < CharmFloor {
		return CharmFloor
	}
	return rounded
}

// Euros converts cents into a float euro amount for API payloads.
func Euros(c Cents) float64 {
	return float64(c) / 100
}

// FromEuros converts a decimal euro amount into cents, rounding to the
// nearest cent to absorb float representation noise.
func FromEuros(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// FormatEuros renders cents as a human readable euro string, e.g. "12.90".
func FormatEuros(c Cents) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
