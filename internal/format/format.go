// Package format renders game numbers for display.
package format

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// sciThreshold is where grouped digits give way to scientific notation.
const sciThreshold = 1e9

// Format shows v with two decimals and digit grouping, e.g. "1,234.50".
func Format(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsNaN(v):
		return "NaN"
	case math.Abs(v) >= sciThreshold:
		return strconv.FormatFloat(v, 'e', 2, 64)
	}
	return humanize.FormatFloat("#,###.##", v)
}

// FormatWhole shows v truncated to an integer with digit grouping, e.g. "1,234".
func FormatWhole(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsNaN(v):
		return "NaN"
	case math.Abs(v) >= sciThreshold:
		return strconv.FormatFloat(v, 'e', 2, 64)
	}
	return humanize.Comma(int64(v))
}

// FormatFloor is FormatWhole of the floor of v.
func FormatFloor(v float64) string {
	return FormatWhole(math.Floor(v))
}

// FormatDecimal is Format for arbitrary-precision resources.
func FormatDecimal(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromFloat(sciThreshold)) {
		return strconv.FormatFloat(d.InexactFloat64(), 'e', 2, 64)
	}
	return humanize.FormatFloat("#,###.##", d.InexactFloat64())
}
