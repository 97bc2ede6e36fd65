package database

import (
	"math"
	"strconv"
)

// FormatQuantity renders a quantity as an integer when integral, otherwise
// with three decimals.
func FormatQuantity(q float64) string {
	if q == math.Trunc(q) {
		return strconv.FormatFloat(q, 'f', 0, 64)
	}
	return strconv.FormatFloat(q, 'f', 3, 64)
}
