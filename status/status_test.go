package status

import (
	"strings"
	"testing"
)

func TestRenderBarProportions(t *testing.T) {
	s := Snapshot{BuildTrackedMiB: 50, OtherUsedMiB: 0, ImminentMiB: 0, FreeMiB: 50}
	bar := renderBar(s, 100, 20)
	if len(bar) != 20 {
		t.Fatalf("expected bar width 20, got %d", len(bar))
	}
	tracked := strings.Count(bar, "#")
	if tracked != 10 {
		t.Fatalf("expected 10 tracked columns, got %d in %q", tracked, bar)
	}
}

func TestRenderBarZeroTotalIsBlank(t *testing.T) {
	bar := renderBar(Snapshot{}, 0, 20)
	if strings.TrimSpace(bar) != "" {
		t.Fatalf("expected a blank bar for zero total, got %q", bar)
	}
	if len(bar) != 20 {
		t.Fatalf("expected width 20, got %d", len(bar))
	}
}

func TestRenderBarAlwaysFillsWidth(t *testing.T) {
	s := Snapshot{BuildTrackedMiB: 1, OtherUsedMiB: 1, ImminentMiB: 1, FreeMiB: 1}
	bar := renderBar(s, 4, 20)
	if len(bar) != 20 {
		t.Fatalf("expected width 20 even with odd proportions, got %d (%q)", len(bar), bar)
	}
}

func TestFormatIncludesJobsAndFreeMiB(t *testing.T) {
	r := &Renderer{width: 80}
	line := r.format(Snapshot{BuildTrackedMiB: 10, FreeMiB: 90, Jobs: 3})
	if !strings.Contains(line, "90 MiB") {
		t.Fatalf("expected free MiB in line, got %q", line)
	}
	if !strings.Contains(line, " 3") {
		t.Fatalf("expected job count in line, got %q", line)
	}
}

func TestDisabledRenderIsNoop(t *testing.T) {
	r := &Renderer{disabled: true}
	// Must not panic or write anywhere; fd is the zero value (stdin),
	// which would be a nonsensical write target if Render didn't bail out.
	r.Render(Snapshot{FreeMiB: 1})
}
