package utils

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.raw), "ParseLevel(%q)", tt.raw)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	assert.NotContains(t, out.String(), "debug 1")
	assert.NotContains(t, out.String(), "info 2")
	assert.Contains(t, out.String(), "warn 3")
	assert.Contains(t, errOut.String(), "error 4")
}

func TestNewLoggerUsesLevel(t *testing.T) {
	l := NewLogger(ParseLevel("error"))

	assert.Equal(t, LevelError, l.level)
	assert.Equal(t, os.Stderr, l.err.Writer())
	assert.Equal(t, os.Stdout, l.info.Writer())
}
