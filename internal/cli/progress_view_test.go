package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestProgressModelTracksBatch(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	cancelled := 0
	m := newProgressModel("sheetbatch: Default", func() { cancelled++ }, func() time.Time { return now })

	next, _ := m.Update(batchProgressMsg{current: 1, total: 4, label: "A101 - Ground Floor"})
	m = next.(progressModel)
	if !strings.Contains(m.View(), "A101 - Ground Floor") {
		t.Fatalf("expected current sheet in view:\n%s", m.View())
	}

	now = start.Add(10 * time.Minute)
	next, _ = m.Update(batchProgressMsg{current: 1, total: 4, label: "A101 - Ground Floor", complete: true})
	m = next.(progressModel)
	if m.done != 1 || m.current != "" {
		t.Fatalf("unexpected state after completion: done=%d current=%q", m.done, m.current)
	}
	if got := m.eta(); got != "30m" {
		t.Fatalf("expected eta 30m, got %q", got)
	}
	if !strings.Contains(m.View(), "1/4") {
		t.Fatalf("expected counter in view:\n%s", m.View())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(progressModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(progressModel)
	if cancelled != 1 || !m.cancelling {
		t.Fatalf("expected a single cancel, got %d", cancelled)
	}

	next, cmd := m.Update(batchDoneMsg{success: true, message: "exported 1 of 4 items (0 failed), 3 cancelled"})
	m = next.(progressModel)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !strings.Contains(m.View(), "3 cancelled") {
		t.Fatalf("expected final message in view:\n%s", m.View())
	}
}

func TestFormatETASeconds(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{30, "<1m"},
		{125, "2m"},
		{3600, "1h"},
		{5400, "1h 30m"},
	}
	for _, tc := range cases {
		if got := formatETASeconds(tc.in); got != tc.want {
			t.Fatalf("formatETASeconds(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlainProgressLines(t *testing.T) {
	var buf bytes.Buffer
	fn := plainProgress(&buf)
	fn(1, 2, "A101 - Ground Floor", false)
	fn(1, 2, "A101 - Ground Floor", true)

	want := "[1/2] start A101 - Ground Floor\n[1/2] done  A101 - Ground Floor\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%q", buf.String())
	}
}
