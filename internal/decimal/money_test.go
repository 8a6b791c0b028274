package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/jofotara-bridge/internal/decimal"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil is zero", nil, "0"},
		{"int", 5, "5"},
		{"int64", int64(12), "12"},
		{"float", 10.5, "10.5"},
		{"decimal string", "3.141", "3.141"},
		{"empty string is zero", "", "0"},
		{"decimal passthrough", dec.RequireFromString("7.25"), "7.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.FromAny(tt.input)
			require.NoError(t, err)
			assert.True(t, d.Equal(dec.RequireFromString(tt.expected)),
				"got %s, want %s", d, tt.expected)
		})
	}
}

func TestFromAny_InvalidString(t *testing.T) {
	_, err := decimal.FromAny("not-a-number")
	require.Error(t, err)
}

func TestFromAny_UnsupportedType(t *testing.T) {
	_, err := decimal.FromAny(struct{}{})
	require.Error(t, err)
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"pads to 3 places", "20", "20.000"},
		{"half-up at 3rd place", "1.2345", "1.235"},
		{"already 3 places is stable", "23.200", "23.200"},
		{"truncates extra digits", "0.12349", "0.123"},
		{"zero", "0", "0.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decimal.Amount(dec.RequireFromString(tt.input)))
		})
	}
}

func TestAmount_Idempotent(t *testing.T) {
	// Formatting an already-3-decimal value reproduces the same string.
	first := decimal.Amount(dec.RequireFromString("1.2345"))
	second := decimal.Amount(dec.RequireFromString(first))
	assert.Equal(t, first, second)
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, "1.0", decimal.Quantity(dec.NewFromInt(1)))
	assert.Equal(t, "25.0", decimal.Quantity(dec.NewFromInt(25)))
	assert.Equal(t, "2.5", decimal.Quantity(dec.RequireFromString("2.5")))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "16.0", decimal.Percent(dec.RequireFromString("16")))
	assert.Equal(t, "4.5", decimal.Percent(dec.RequireFromString("4.5")))
}

func TestClamp(t *testing.T) {
	assert.True(t, decimal.Clamp(dec.NewFromInt(-5)).IsZero())
	assert.True(t, decimal.Clamp(dec.NewFromInt(5)).Equal(dec.NewFromInt(5)))
	assert.True(t, decimal.Clamp(dec.Zero).IsZero())
}

func TestSum(t *testing.T) {
	values := []dec.Decimal{
		dec.NewFromInt(100),
		dec.NewFromInt(200),
		dec.NewFromInt(300),
	}
	assert.True(t, decimal.Sum(values).Equal(dec.NewFromInt(600)))
	assert.True(t, decimal.Sum(nil).IsZero())
}
