// Package subacct derives venue sub-account identifiers from a base account
// address. The venue segregates trading balances per sub-account; the id is
// the base address followed by a fixed-width, zero-padded index suffix.
package subacct

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SuffixLen is the fixed width of the index suffix. Index 0 renders as 23
// zeros followed by "0", so ids for any two indices always have equal length.
const SuffixLen = 24

// ErrInvalidIndex is returned for negative indices or indices too wide to
// fit the fixed suffix.
var ErrInvalidIndex = errors.New("subacct: index out of range")

// Derive produces the sub-account identifier for (base, index).
// Deterministic; distinct indices yield distinct ids of equal length.
func Derive(base string, index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	digits := strconv.Itoa(index)
	if len(digits) > SuffixLen {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return base + strings.Repeat("0", SuffixLen-len(digits)) + digits, nil
}

// BelongsTo reports whether id was derived from base. Exact prefix and
// width match; a different address never matches.
func BelongsTo(id, base string) bool {
	if len(id) != len(base)+SuffixLen {
		return false
	}
	return strings.HasPrefix(id, base)
}
