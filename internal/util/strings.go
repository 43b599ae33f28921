// Package util provides shared string helpers used across the codebase.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// CapRunes returns s limited to at most maxLen runes, with no marker appended.
// Stored task text is capped this way so the limit counts characters, not bytes.
// A non-positive maxLen disables the cap.
func CapRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	// Fast path: byte length bounds rune count.
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
// Used for log previews of untrusted model output.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if
// truncated. ANSI escape codes from lipgloss styling are preserved.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}
