package snapshot

import (
	"testing"

	"anvil/internal/demo"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w := demo.Frames()

	data, err := Encode(w)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if m.Name != "frames" {
		t.Fatalf("module name: want frames, got %q", m.Name)
	}
	if len(m.Continuations) == 0 {
		t.Fatalf("snapshot lost the continuations")
	}
	if len(m.PrimOps) == 0 {
		t.Fatalf("snapshot lost the primops")
	}

	seen := make(map[uint64]bool)
	for _, c := range m.Continuations {
		if seen[c.GID] {
			t.Fatalf("duplicate continuation gid %d", c.GID)
		}
		seen[c.GID] = true
	}
	var external int
	for _, c := range m.Continuations {
		if c.External {
			external++
			if len(c.Schedule) == 0 {
				t.Fatalf("the external scope's schedule must not be empty")
			}
		}
	}
	if external != 1 {
		t.Fatalf("expected one external continuation, got %d", external)
	}
}
