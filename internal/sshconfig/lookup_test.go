package sshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLookupConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolve_ConcreteHost(t *testing.T) {
	path := writeLookupConfig(t, `Host dev
    HostName 203.0.113.10
    User ubuntu
    Port 40022
    IdentityFile ~/.ssh/runpod
`)

	settings, err := Resolve(path, "dev")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", settings.Hostname)
	assert.Equal(t, "ubuntu", settings.User)
	assert.Equal(t, "40022", settings.Port)
	assert.Equal(t, "~/.ssh/runpod", settings.IdentityFile)
}

func TestResolve_WildcardApplies(t *testing.T) {
	// The read-only path honors the full grammar, wildcards included.
	path := writeLookupConfig(t, `Host dev
    HostName 203.0.113.10

Host *
    User fallback
`)

	settings, err := Resolve(path, "dev")
	require.NoError(t, err)
	assert.Equal(t, "fallback", settings.User)
}

func TestResolve_MissingFile(t *testing.T) {
	settings, err := Resolve(filepath.Join(t.TempDir(), "nope"), "dev")
	require.NoError(t, err)
	assert.Empty(t, settings.Hostname)
}

func TestDeclaredAliases_SkipsWildcards(t *testing.T) {
	path := writeLookupConfig(t, `Host dev staging
    HostName a

Host *
    User root

Host prod-?
    User root

Host dev
    Port 2222
`)

	aliases, err := DeclaredAliases(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "staging"}, aliases)
}

func TestDeclaredAliases_MissingFile(t *testing.T) {
	aliases, err := DeclaredAliases(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, aliases)
}
