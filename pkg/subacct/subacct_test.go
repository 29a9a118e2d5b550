package subacct

import (
	"errors"
	"strings"
	"testing"
)

const baseAddr = "0x93c4cD47e9C73fDE0a6b9a30C7aF1c5A0f186367"

func TestDerive_ReferencePadding(t *testing.T) {
	id, err := Derive(baseAddr, 7)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	want := baseAddr + strings.Repeat("0", 23) + "7"
	if id != want {
		t.Errorf("Derive(base, 7) = %s, want %s", id, want)
	}
}

func TestDerive_DistinctEqualLength(t *testing.T) {
	seen := make(map[string]bool)
	wantLen := len(baseAddr) + SuffixLen

	for _, i := range []int{0, 1, 9, 10, 99, 1234567} {
		id, err := Derive(baseAddr, i)
		if err != nil {
			t.Fatalf("Derive(%d): %v", i, err)
		}
		if len(id) != wantLen {
			t.Errorf("Derive(%d) length = %d, want %d", i, len(id), wantLen)
		}
		if seen[id] {
			t.Errorf("Derive(%d) collides with an earlier index", i)
		}
		seen[id] = true
	}
}

func TestDerive_Deterministic(t *testing.T) {
	a, _ := Derive(baseAddr, 3)
	b, _ := Derive(baseAddr, 3)
	if a != b {
		t.Errorf("Derive is not deterministic: %s vs %s", a, b)
	}
}

func TestDerive_InvalidIndex(t *testing.T) {
	if _, err := Derive(baseAddr, -1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("Derive(-1) err = %v, want ErrInvalidIndex", err)
	}
}

func TestBelongsTo(t *testing.T) {
	id, _ := Derive(baseAddr, 0)

	if !BelongsTo(id, baseAddr) {
		t.Error("id should belong to its base address")
	}
	if BelongsTo(id, "0xsomeoneelse") {
		t.Error("id must not belong to a different address")
	}
	if BelongsTo(baseAddr, baseAddr) {
		t.Error("a bare address is not a sub-account id")
	}
}
