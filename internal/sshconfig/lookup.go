package sshconfig

import (
	"os"
	"strings"

	"github.com/kevinburke/ssh_config"

	"github.com/rp-cli/rp/internal/errors"
)

// EffectiveSettings is what OpenSSH itself would resolve for an alias,
// taking the whole config file into account (wildcards included). Unlike the
// block mutator, this path understands the full config grammar because it
// never writes anything back.
type EffectiveSettings struct {
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

// Resolve parses the config file at path and resolves the effective settings
// for alias. A missing file resolves to empty settings, not an error.
func Resolve(path, alias string) (EffectiveSettings, error) {
	var settings EffectiveSettings

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to read SSH config",
			"Check permissions on "+path)
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return settings, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to parse SSH config",
			"Check the syntax of "+path)
	}

	settings.Hostname, _ = cfg.Get(alias, "HostName")
	settings.User, _ = cfg.Get(alias, "User")
	settings.Port, _ = cfg.Get(alias, "Port")
	settings.IdentityFile, _ = cfg.Get(alias, "IdentityFile")
	return settings, nil
}

// UnmanagedCollision reports whether alias is declared by a block that lacks
// the rp marker. Used to warn before create_or_update overwrites a
// user-authored block sharing the alias.
func (m *Manager) UnmanagedCollision(alias string) (bool, error) {
	lines, err := m.loadLines()
	if err != nil {
		return false, err
	}
	for _, blk := range ParseBlocks(lines) {
		if !blk.Managed && blk.HasAlias(alias) {
			return true, nil
		}
	}
	return false, nil
}

// DeclaredAliases lists every concrete (non-wildcard) host pattern in the
// config file, managed or not. Wildcard patterns are skipped.
func DeclaredAliases(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to read SSH config",
			"Check permissions on "+path)
	}

	seen := make(map[string]bool)
	var aliases []string
	for _, blk := range ParseBlocks(splitLines(data)) {
		for _, h := range blk.Hosts {
			if strings.ContainsAny(h, "*?") || seen[h] {
				continue
			}
			seen[h] = true
			aliases = append(aliases, h)
		}
	}
	return aliases, nil
}
