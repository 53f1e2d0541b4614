package trace

import (
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"off":   LevelOff,
		"":      LevelOff,
		"warn":  LevelWarn,
		"INFO":  LevelInfo,
		"debug": LevelDebug,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q): got %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("invalid level must error")
	}
}

func TestStreamTracerFiltersByLevel(t *testing.T) {
	var sb strings.Builder
	tr := NewStreamTracer(&sb, LevelWarn)

	Warnf(tr, "inliner", "skipping %s", "f")
	Debugf(tr, "inliner", "must not appear")
	if err := tr.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	out := sb.String()
	if !strings.Contains(out, "skipping f") {
		t.Fatalf("warn event missing from output: %q", out)
	}
	if strings.Contains(out, "must not appear") {
		t.Fatalf("debug event leaked through a warn-level tracer: %q", out)
	}
}

func TestNopTracerIsSilent(t *testing.T) {
	tr := Nop()
	if tr.Enabled() {
		t.Fatalf("nop tracer must report disabled")
	}
	Warnf(tr, "x", "ignored") // must not panic
}
