// Package numfmt renders very small decimal magnitudes in the compressed
// leading-zero notation used by the terminal UI: 0.0000575 displays as
// "0.0₄575" (four zeros, then the significant digits).
package numfmt

import "github.com/shopspring/decimal"

const (
	maxZeroCount = 9 // displayed zero-run is clamped here
	maxSigDigits = 4
)

var smallThreshold = decimal.New(1, -4) // 0.0001

var subscripts = [...]rune{'₀', '₁', '₂', '₃', '₄', '₅', '₆', '₇', '₈', '₉'}

// FormatSmall formats a non-negative magnitude for display. Values at or
// above 0.0001 render with four fixed decimals; smaller values render as a
// compressed zero run plus up to four significant digits. Total over the
// whole domain: no input panics. Negative inputs are formatted by magnitude
// with a leading minus.
func FormatSmall(d decimal.Decimal) string {
	neg := d.Sign() < 0
	v := d.Abs()

	var out string
	switch {
	case v.Sign() == 0:
		out = "0.0000"
	case v.Cmp(smallThreshold) >= 0:
		out = v.StringFixed(4)
	default:
		out = formatCompressed(v)
	}
	if neg {
		return "-" + out
	}
	return out
}

// formatCompressed handles 0 < v < 0.0001. The zero-run count is clamped at
// maxZeroCount; values with longer runs display with the clamped count and
// shifted digits. Deterministic but lossy, by construction.
func formatCompressed(v decimal.Decimal) string {
	// v.String() for 0 < v < 1 is always "0.<digits>" with a non-zero digit
	// somewhere after the point.
	s := v.String()
	frac := s[2:]

	zeros := 0
	for zeros < len(frac) && frac[zeros] == '0' {
		zeros++
	}

	sig := frac[zeros:]
	if len(sig) > maxSigDigits {
		sig = sig[:maxSigDigits]
	}
	// Drop trailing zeros of the significant run; "575" reads better
	// than "5750".
	for len(sig) > 1 && sig[len(sig)-1] == '0' {
		sig = sig[:len(sig)-1]
	}

	if zeros > maxZeroCount {
		zeros = maxZeroCount
	}
	return "0.0" + string(subscripts[zeros]) + sig
}
