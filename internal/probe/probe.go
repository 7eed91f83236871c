package probe

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/rp-cli/rp/internal/errors"
)

// FailReason categorizes why a probe failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailAuth
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailAuth:
		return "authentication failed"
	default:
		return "unknown error"
	}
}

// Error represents a failed probe with a categorized failure reason.
type Error struct {
	Address string
	Reason  FailReason
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Address, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Address, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Reachable reports whether the failure still proves a live SSH daemon.
// An auth rejection means the pod's sshd answered; only transport-level
// failures count as unreachable.
func (e *Error) Reachable() bool {
	return e.Reason == FailAuth
}

// Result is the outcome of probing one pod address.
type Result struct {
	Address string
	Latency time.Duration
	Error   error
}

// Reachable reports whether sshd responded, even if auth was rejected.
func (r Result) Reachable() bool {
	if r.Error == nil {
		return true
	}
	var pe *Error
	if stderrors.As(r.Error, &pe) {
		return pe.Reachable()
	}
	return false
}

// TCP checks that the port is open without attempting an SSH handshake.
func TCP(address string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return 0, categorize(address, err)
	}
	defer conn.Close()

	return time.Since(start), nil
}

// SSH dials address and performs a full SSH handshake as user with the key
// at identityFile. It returns the total latency on success and a *Error
// with a categorized reason on failure.
func SSH(address, user, identityFile string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	config, err := clientConfig(user, identityFile, timeout)
	if err != nil {
		return 0, err
	}

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return 0, categorize(address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return 0, categorize(address, err)
	}
	ssh.NewClient(sshConn, chans, reqs).Close()

	return time.Since(start), nil
}

// Pod probes a pod's SSH endpoint and returns a Result. Unlike SSH, an auth
// failure is folded into a reachable Result so callers can report "pod is up"
// even when key setup is incomplete.
func Pod(address, user, identityFile string, timeout time.Duration) Result {
	latency, err := SSH(address, user, identityFile, timeout)
	return Result{Address: address, Latency: latency, Error: err}
}

// clientConfig builds the SSH client config for a probe. Host keys are not
// verified: pod IPs are reassigned on every start, so known_hosts pinning
// would fail constantly.
func clientConfig(user, identityFile string, timeout time.Duration) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if identityFile != "" {
		key, err := os.ReadFile(identityFile)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Couldn't read SSH identity file "+identityFile,
				"Generate one with: ssh-keygen -t ed25519 -f "+identityFile)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Couldn't parse SSH identity file "+identityFile,
				"Encrypted keys aren't supported here; use an unencrypted key or ssh directly")
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(authMethods) == 0 {
		return nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Set identity_file in ~/.config/rp/config.yaml")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // pod IPs change on every start
		Timeout:         timeout,
	}, nil
}

// categorize converts a dial or handshake error into a *Error.
func categorize(address string, err error) *Error {
	pe := &Error{
		Address: address,
		Reason:  FailUnknown,
		Cause:   err,
	}
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout"):
		pe.Reason = FailTimeout
	case strings.Contains(errStr, "connection refused"):
		pe.Reason = FailRefused
	case strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down"):
		pe.Reason = FailUnreachable
	case strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "authentication failed"):
		pe.Reason = FailAuth
	}

	return pe
}
