package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"plain", "hello", 5},
		{"colored", "\x1b[31mred\x1b[0m", 3},
		{"hyperlink", "\x1b]8;;https://example.com\x1b\\link\x1b]8;;\x1b\\", 4},
		{"wide runes", "日本", 4},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Width(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "group/...", Truncate("group/subgroup/project", 9))
	assert.Equal(t, "red...", Truncate("\x1b[31mredder text\x1b[0m", 6))
	assert.LessOrEqual(t, Width(Truncate("日本語のプロジェクト", 7)), 7)
}

func TestCell(t *testing.T) {
	assert.Equal(t, "ab   ", Cell("ab", 5))
	assert.Equal(t, "ab...", Cell("abcdefgh", 5))
	assert.Equal(t, 5, Width(Cell("\x1b[32mok\x1b[0m", 5)))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", SingleLine("a\n b\t\tc  "))
}
