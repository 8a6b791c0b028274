package decimal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// moneyPlaces is the JoFotara monetary precision (3 fractional digits, JOD fils).
const moneyPlaces = 3

// FromAny converts a host-supplied numeric value to a decimal. Missing
// values (nil) are zero. Invalid numeric strings are an input contract
// violation and return an error rather than being zeroed.
func FromAny(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return Zero, nil
	case decimal.Decimal:
		return x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		if x == "" {
			return Zero, nil
		}
		d, err := decimal.NewFromString(x)
		if err != nil {
			return Zero, fmt.Errorf("invalid numeric value %q: %w", x, err)
		}
		return d, nil
	default:
		return Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// Round3 rounds to 3 fractional digits, half-up.
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Amount formats a monetary value with exactly 3 decimal digits, half-up.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

// Quantity formats a quantity with exactly 1 decimal digit. Quantities
// follow the legacy float convention, not half-up decimal rounding.
func Quantity(d decimal.Decimal) string {
	f, _ := d.Float64()
	return fmt.Sprintf("%.1f", f)
}

// Percent formats a VAT rate with 1 decimal digit (e.g. "16.0").
func Percent(d decimal.Decimal) string {
	return Round3(d).StringFixed(1)
}

// Clamp returns zero for negative values, d otherwise.
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
