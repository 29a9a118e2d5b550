package numfmt

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestFormatSmall(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.0000"},
		{"1", "1.0000"},
		{"0.5", "0.5000"},
		{"0.0001", "0.0001"},      // exactly at threshold
		{"0.00012345", "0.0001"},  // fixed 4 decimals above threshold
		{"0.0000575", "0.0₄575"},  // 4 leading zeros
		{"0.00009999", "0.0₄9999"},
		{"0.000001", "0.0₅1"},
		{"0.0000000001234", "0.0₉1234"},   // 9 zeros, at the clamp
		{"0.000000000000015", "0.0₉15"},   // 13 zeros, clamped to 9
		{"-0.0000575", "-0.0₄575"},
	}

	for _, tt := range tests {
		if got := FormatSmall(dec(t, tt.in)); got != tt.want {
			t.Errorf("FormatSmall(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSmall_Deterministic(t *testing.T) {
	v := dec(t, "0.000000789")
	first := FormatSmall(v)
	for i := 0; i < 100; i++ {
		if got := FormatSmall(v); got != first {
			t.Fatalf("FormatSmall changed between calls: %q vs %q", first, got)
		}
	}
}

func TestFormatSmall_TotalOverDomain(t *testing.T) {
	// A spread of magnitudes, including extremes; none may panic.
	inputs := []string{
		"0", "1e-30", "0.000000000000000000001", "0.00009", "0.0001",
		"123456789.987654321", "1e30",
	}
	for _, in := range inputs {
		_ = FormatSmall(dec(t, in))
	}
}
