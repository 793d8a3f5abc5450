package log

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitialize(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelInfo, &buf)
	t.Cleanup(func() { Initialize(LevelQuiet, os.Stderr) })

	assert.Equal(t, LevelInfo, Verbosity())
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		wantInfo  bool
		wantDebug bool
		wantTrace bool
	}{
		{"quiet", LevelQuiet, false, false, false},
		{"info", LevelInfo, true, false, false},
		{"debug", LevelDebug, true, true, false},
		{"trace", LevelTrace, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Initialize(tt.level, &buf)
			t.Cleanup(func() { Initialize(LevelQuiet, os.Stderr) })

			Info("info message", "key", "value")
			Debug("debug message", "key", "value")
			Trace("trace message", "key", "value")
			Warn("warn message")

			out := buf.String()
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info message"))
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug message"))
			assert.Equal(t, tt.wantTrace, strings.Contains(out, "trace message"))
			assert.Contains(t, out, "warn message")
		})
	}
}

func TestIsDebug(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelDebug, &buf)
	t.Cleanup(func() { Initialize(LevelQuiet, os.Stderr) })

	assert.True(t, IsDebug())
	assert.NotNil(t, Logger())
}
