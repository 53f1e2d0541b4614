package demo

import (
	"testing"

	"anvil/internal/ir"
)

func TestDemoWorldsAreWellFormed(t *testing.T) {
	for _, name := range Names() {
		build, ok := Lookup(name)
		if !ok {
			t.Fatalf("Names/Lookup disagree on %q", name)
		}
		w := build()
		if len(w.Externals()) == 0 {
			t.Fatalf("%s: demo world without an external entry", name)
		}
		if err := ir.Verify(w); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		w.Cleanup()
		if err := ir.Verify(w); err != nil {
			t.Fatalf("%s after cleanup: %v", name, err)
		}
	}
}

func TestLookupRejectsUnknown(t *testing.T) {
	if _, ok := Lookup("no-such-demo"); ok {
		t.Fatalf("unknown demo must not resolve")
	}
}
