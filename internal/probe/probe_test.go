package probe

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailReason
	}{
		{"timeout", errors.New("dial tcp 1.2.3.4:22: i/o timeout"), FailTimeout},
		{"refused", errors.New("dial tcp 1.2.3.4:22: connect: connection refused"), FailRefused},
		{"no route", errors.New("connect: no route to host"), FailUnreachable},
		{"net unreachable", errors.New("connect: network is unreachable"), FailUnreachable},
		{"auth", errors.New("ssh: unable to authenticate, attempted methods [none publickey]"), FailAuth},
		{"permission denied", errors.New("ssh: handshake failed: permission denied"), FailAuth},
		{"other", errors.New("something odd"), FailUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := categorize("1.2.3.4:22", tt.err)
			assert.Equal(t, tt.want, pe.Reason)
			assert.Equal(t, "1.2.3.4:22", pe.Address)
			assert.Equal(t, tt.err, errors.Unwrap(pe))
		})
	}
}

func TestErrorReachable(t *testing.T) {
	auth := &Error{Reason: FailAuth}
	assert.True(t, auth.Reachable())

	for _, reason := range []FailReason{FailUnknown, FailTimeout, FailRefused, FailUnreachable} {
		assert.False(t, (&Error{Reason: reason}).Reachable(), reason.String())
	}
}

func TestResultReachable(t *testing.T) {
	assert.True(t, Result{}.Reachable())
	assert.True(t, Result{Error: &Error{Reason: FailAuth}}.Reachable())
	assert.False(t, Result{Error: &Error{Reason: FailRefused}}.Reachable())
	assert.False(t, Result{Error: errors.New("plain")}.Reachable())
}

func TestFailReasonString(t *testing.T) {
	assert.Equal(t, "connection timed out", FailTimeout.String())
	assert.Equal(t, "connection refused", FailRefused.String())
	assert.Equal(t, "host unreachable", FailUnreachable.String())
	assert.Equal(t, "authentication failed", FailAuth.String())
	assert.Equal(t, "unknown error", FailUnknown.String())
}

func TestTCP(t *testing.T) {
	t.Run("open port", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		latency, err := TCP(ln.Addr().String(), time.Second)
		require.NoError(t, err)
		assert.Greater(t, latency, time.Duration(0))
	})

	t.Run("closed port", func(t *testing.T) {
		// Grab a port and close the listener so nothing is listening there.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		_, err = TCP(addr, time.Second)
		require.Error(t, err)
		var pe *Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, FailRefused, pe.Reason)
	})
}

func TestSSHMissingIdentity(t *testing.T) {
	_, err := SSH("127.0.0.1:22", "root", "/nonexistent/key", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity file")
}

func TestSSHNoAuthMethods(t *testing.T) {
	_, err := SSH("127.0.0.1:22", "root", "", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No SSH auth methods")
}
