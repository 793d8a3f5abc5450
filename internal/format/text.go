// Package format provides shared text formatting utilities for terminal output.
package format

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m|\x1b\]8;;[^\x1b]*\x1b\\`)

// StripANSI removes color sequences and OSC 8 hyperlink markers.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// Width returns the visible width of s in terminal columns.
func Width(s string) int {
	return runewidth.StringWidth(StripANSI(s))
}

// Truncate shortens s to at most maxWidth columns, ending with "...".
// Styling is dropped from truncated strings.
func Truncate(s string, maxWidth int) string {
	if Width(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(StripANSI(s), maxWidth, "...")
}

// Pad appends spaces until s is width columns wide.
func Pad(s string, width int) string {
	if w := Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// Cell truncates then pads s to exactly width columns.
func Cell(s string, width int) string {
	return Pad(Truncate(s, width), width)
}

// SingleLine collapses whitespace runs, including newlines, to one space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
