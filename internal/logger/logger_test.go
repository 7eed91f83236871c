package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferLoggerCapturesMessages(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %d", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("error: %s", "boom")

	assert.Len(t, l.Messages, 4)
	assert.Equal(t, "debug 1", l.Messages[0].Message)
	assert.Equal(t, "error: boom", l.Messages[3].Message)
	assert.True(t, l.HasLevel("warn"))
	assert.False(t, l.HasLevel("fatal"))
}

func TestBufferLoggerClear(t *testing.T) {
	l := NewBufferLogger()
	l.Info("one")
	l.Clear()
	assert.Empty(t, l.Messages)
}

func TestNoopDiscards(t *testing.T) {
	l := Noop()
	// Should not panic or produce output
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("hello")

	assert.Len(t, buf.Messages, 1)
}
