package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrConfig, "Something failed", "Try again")

	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, "Something failed", err.Message)
	assert.Equal(t, "Try again", err.Suggestion)
	assert.Nil(t, err.Cause)
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying problem")
	err := Wrap(cause, "Operation failed")

	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, cause, err.Cause)
	assert.ErrorIs(t, err, cause)
}

func TestWrapWithCode(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := WrapWithCode(cause, ErrAPI, "API unreachable", "Check your network")

	assert.Equal(t, ErrAPI, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "message only",
			err:      New(ErrPod, "Pod not found", ""),
			contains: []string{"✗ Pod not found"},
		},
		{
			name:     "message and suggestion",
			err:      New(ErrAlias, "Unknown alias", "Run 'rp list' to see aliases"),
			contains: []string{"✗ Unknown alias", "Run 'rp list' to see aliases"},
		},
		{
			name:     "message, cause, and suggestion",
			err:      WrapWithCode(fmt.Errorf("disk full"), ErrSSH, "Failed to update SSH config", "Free up space"),
			contains: []string{"✗ Failed to update SSH config", "disk full", "Free up space"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered := tt.err.Error()
			for _, want := range tt.contains {
				assert.Contains(t, rendered, want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrSchedule, "Invalid time", "Use 2h or 18:30")

	assert.True(t, IsCode(err, ErrSchedule))
	assert.False(t, IsCode(err, ErrAPI))
	assert.False(t, IsCode(nil, ErrSchedule))
	assert.False(t, IsCode(fmt.Errorf("plain error"), ErrSchedule))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := New(ErrPod, "Pod invalid", "")
	outer := fmt.Errorf("while starting: %w", inner)

	require.True(t, IsCode(outer, ErrPod))
}
