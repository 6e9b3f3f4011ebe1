package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// parseBool accepts the y/n spellings used by the form fields. Blank is false.
func parseBool(raw string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1", "on":
		return true, true
	case "n", "no", "false", "0", "off", "":
		return false, true
	}
	return false, false
}

func boolToYN(v bool) string {
	if v {
		return "y"
	}
	return "n"
}

func kv(k, v string) string {
	return fmt.Sprintf("%s: %s", k, v)
}

// listWindow returns the [start, end) slice of rows to draw so the cursor
// stays roughly centred.
func listWindow(total, cursor, rows int) (int, int) {
	if total <= rows {
		return 0, total
	}
	start := clampInt(cursor-rows/2, 0, total-rows)
	return start, start + rows
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit == 1 {
		return string(r[:1])
	}
	return string(r[:limit-1]) + "…"
}

func wrapOrTrim(s string, width int) string {
	if width <= 0 {
		return s
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return truncateRunes(s, width)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func formatIntDefault(v int) string {
	if v <= 0 {
		return "(renderer default)"
	}
	return strconv.Itoa(v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
