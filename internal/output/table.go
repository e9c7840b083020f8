// Package output provides terminal output helpers for the setup tools:
// a byte-based progress bar for installations and plain ASCII table
// rendering for the list and inspect commands. The progress bar is
// thread-safe; rendering adapts to whether stdout is a terminal.
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
)

// IsColorEnabled returns true if ANSI codes should be emitted. It checks
// that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Bold wraps text in a bold ANSI code if color is enabled, otherwise
// returns the plain text.
func Bold(text string) string {
	if IsColorEnabled() {
		return colorBold + text + colorReset
	}
	return text
}

// RenderTable renders rows under a header with columns sized to their
// widest cell. All cells are plain left-aligned text.
func RenderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(cells)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(fmt.Sprintf("%-*s", widths[i], cell))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(header)
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(strings.Repeat("-", total-2))
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// Truncate shortens a string to maxLen, keeping the tail and marking the
// cut with "...". Paths stay recognizable by their end.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-(maxLen-3):]
}
