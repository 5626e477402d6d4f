package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warning", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"bogus", log.InfoLevel},
		{"", log.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
	assert.True(t, ValidLevel("Warn"))
	assert.False(t, ValidLevel("bogus"))
}

func TestNewWritesAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf, Prefix: "test"})

	l.Info("hidden")
	l.Warn("shown", FieldPath, "a.txt")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "path=a.txt")
	assert.Contains(t, out, "test")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(New(Config{Level: "debug", Output: &buf}), "storage")
	l.Debug("loaded")
	assert.Contains(t, buf.String(), "component=storage")
}

func TestDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	d := Discard()
	SetDefault(d)
	assert.Same(t, d, Default())
}
