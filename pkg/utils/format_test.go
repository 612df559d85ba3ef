package utils

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFormatCurrencyExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{0, "₹0.00"},
		{1, "₹1.00"},
		{100, "₹100.00"},
		{1000, "₹1,000.00"},
		{100000, "₹1,00,000.00"},      // 1 lakh
		{10000000, "₹1,00,00,000.00"}, // 1 crore
		{-1234.56, "-₹1,234.56"},
		{12345678.90, "₹1,23,45,678.90"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatCurrency(tc.amount); got != tc.expected {
				t.Errorf("FormatCurrency(%f) = %s, want %s", tc.amount, got, tc.expected)
			}
		})
	}
}

func TestFormatPnLExamples(t *testing.T) {
	if got := FormatPnL(1500); got != "+₹1,500.00" {
		t.Errorf("FormatPnL(1500) = %s", got)
	}
	if got := FormatPnL(-1500); got != "-₹1,500.00" {
		t.Errorf("FormatPnL(-1500) = %s", got)
	}
	if got := FormatPnL(0); got != "₹0.00" {
		t.Errorf("FormatPnL(0) = %s", got)
	}
}

func TestFormatPercentExamples(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{0, "0.00%"},
		{1.5, "+1.50%"},
		{-2.5, "-2.50%"},
	}

	for _, tc := range testCases {
		if got := FormatPercent(tc.value); got != tc.expected {
			t.Errorf("FormatPercent(%f) = %s, want %s", tc.value, got, tc.expected)
		}
	}
}

// For any amount in a sane range, the formatted string carries the ₹ prefix,
// two decimal places, and Indian digit grouping (three digits, then twos).
func TestProperty_CurrencyFormatIsWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	indianPattern := regexp.MustCompile(`^(\d{1,2},)*\d{1,3}$`)

	properties.Property("formatted currency is well formed", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}

			formatted := FormatCurrency(amount)

			if amount >= 0 {
				if !strings.HasPrefix(formatted, "₹") {
					t.Logf("missing ₹ prefix for %f: %s", amount, formatted)
					return false
				}
			} else if !strings.HasPrefix(formatted, "-₹") {
				t.Logf("missing -₹ prefix for %f: %s", amount, formatted)
				return false
			}

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("bad decimal part for %f: %s", amount, formatted)
				return false
			}

			numPart := strings.TrimPrefix(strings.TrimPrefix(parts[0], "-"), "₹")
			if !indianPattern.MatchString(numPart) {
				t.Logf("bad grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("grouping strips back to the original digits", prop.ForAll(
		func(amount int64) bool {
			formatted := FormatCurrency(float64(amount))
			stripped := strings.ReplaceAll(strings.TrimPrefix(formatted, "₹"), ",", "")
			return stripped == formatDigits(amount)
		},
		gen.Int64Range(0, 1e15),
	))

	properties.TestingRun(t)
}

func formatDigits(n int64) string {
	s := ""
	if n == 0 {
		s = "0"
	}
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s + ".00"
}
