package sshconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/logger"
)

// HostEntry is the logical record an rp-managed block encodes.
type HostEntry struct {
	Alias        string
	PodID        string
	Hostname     string
	Port         int
	User         string // defaults to "root" when empty
	IdentityFile string // optional
}

// Manager performs create/update/remove/prune mutations on one SSH config
// file. Every operation re-reads, re-parses, mutates, and rewrites the whole
// document; nothing is cached between calls. There is no cross-process
// locking: two concurrent writers race on read-modify-write and the last one
// wins. Rewrites go through a temp file and atomic rename so an interrupted
// write never truncates the config.
type Manager struct {
	path string
	log  logger.Logger
}

// NewManager creates a Manager for the given config file path.
func NewManager(path string) *Manager {
	return &Manager{
		path: path,
		log:  logger.NewEnvLogger("[sshconfig]"),
	}
}

// SetLogger replaces the manager's logger. Useful for tests.
func (m *Manager) SetLogger(l logger.Logger) {
	m.log = l
}

// Path returns the config file path this manager operates on.
func (m *Manager) Path() string {
	return m.path
}

// podIDRE extracts the pod id field from a marker line.
var podIDRE = regexp.MustCompile(`pod_id=(\S+)`)

// CreateOrUpdate writes the canonical block for entry, stamped with now.
// If any existing block declares the entry's alias, that block is replaced in
// full — even a user-authored block without the marker. Callers that need
// stricter safety must check for an unmanaged collision first. When no block
// matches, the new block is appended at document end, preceded by one blank
// separator line if the last existing line is non-blank.
func (m *Manager) CreateOrUpdate(entry HostEntry, now time.Time) error {
	lines, err := m.loadLines()
	if err != nil {
		return err
	}
	blocks := ParseBlocks(lines)

	newBlock := renderBlock(entry, now)

	var target *Block
	for i := range blocks {
		if blocks[i].HasAlias(entry.Alias) {
			target = &blocks[i]
			break
		}
	}

	if target == nil {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "\n")
		}
		lines = append(lines, newBlock...)
		m.log.Debug("appending block for %q", entry.Alias)
		return m.writeLines(lines)
	}

	m.log.Debug("replacing block for %q at lines [%d,%d)", entry.Alias, target.Start, target.End)
	merged := make([]string, 0, len(lines)-(target.End-target.Start)+len(newBlock))
	merged = append(merged, lines[:target.Start]...)
	merged = append(merged, newBlock...)
	merged = append(merged, lines[target.End:]...)
	return m.writeLines(merged)
}

// Remove deletes every managed block that declares alias. Unmanaged blocks
// are never touched, even when they share the alias. Reports whether any
// block was removed; finding nothing is not an error.
func (m *Manager) Remove(alias string) (bool, error) {
	lines, err := m.loadLines()
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		return false, nil
	}

	var ranges []Block
	for _, blk := range ParseBlocks(lines) {
		if blk.Managed && blk.HasAlias(alias) {
			ranges = append(ranges, blk)
		}
	}
	if len(ranges) == 0 {
		return false, nil
	}

	if err := m.writeLines(dropRanges(lines, ranges)); err != nil {
		return false, err
	}
	return true, nil
}

// Prune deletes managed blocks none of whose host names appear in valid.
// Blocks with at least one still-valid name are retained in full. Returns the
// number of blocks removed.
func (m *Manager) Prune(valid map[string]bool) (int, error) {
	lines, err := m.loadLines()
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	var ranges []Block
	for _, blk := range ParseBlocks(lines) {
		if !blk.Managed {
			continue
		}
		keep := false
		for _, h := range blk.Hosts {
			if valid[h] {
				keep = true
				break
			}
		}
		if !keep {
			ranges = append(ranges, blk)
		}
	}
	if len(ranges) == 0 {
		return 0, nil
	}

	if err := m.writeLines(dropRanges(lines, ranges)); err != nil {
		return 0, err
	}
	m.log.Debug("pruned %d block(s)", len(ranges))
	return len(ranges), nil
}

// Get reads back the HostEntry encoded by the managed block declaring alias.
// Returns nil (not an error) when no managed block declares the alias or the
// block is missing any of hostname, port, or pod id. A malformed Port value
// is treated as absent rather than failing the lookup.
func (m *Manager) Get(alias string) (*HostEntry, error) {
	lines, err := m.loadLines()
	if err != nil {
		return nil, err
	}

	for _, blk := range ParseBlocks(lines) {
		if !blk.Managed || !blk.HasAlias(alias) {
			continue
		}

		entry := HostEntry{Alias: alias, User: "root"}
		for j := blk.Start + 1; j < blk.End; j++ {
			line := strings.TrimSpace(lines[j])
			switch {
			case strings.HasPrefix(line, "HostName "):
				entry.Hostname = strings.TrimSpace(strings.TrimPrefix(line, "HostName "))
			case strings.HasPrefix(line, "Port "):
				if p, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Port "))); err == nil {
					entry.Port = p
				}
			case strings.HasPrefix(line, "User "):
				entry.User = strings.TrimSpace(strings.TrimPrefix(line, "User "))
			case strings.HasPrefix(line, "IdentityFile "):
				entry.IdentityFile = strings.TrimSpace(strings.TrimPrefix(line, "IdentityFile "))
			case strings.HasPrefix(line, MarkerPrefix):
				if pm := podIDRE.FindStringSubmatch(line); pm != nil {
					entry.PodID = pm[1]
				}
			}
		}

		if entry.Hostname == "" || entry.Port == 0 || entry.PodID == "" {
			// Not fully configured; keep looking in later blocks.
			continue
		}
		return &entry, nil
	}

	return nil, nil
}

// ManagedAliases returns the union of host names across all managed blocks,
// deduplicated and sorted.
func (m *Manager) ManagedAliases() ([]string, error) {
	lines, err := m.loadLines()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var aliases []string
	for _, blk := range ParseBlocks(lines) {
		if !blk.Managed {
			continue
		}
		for _, h := range blk.Hosts {
			if !seen[h] {
				seen[h] = true
				aliases = append(aliases, h)
			}
		}
	}
	sort.Strings(aliases)
	return aliases, nil
}

// renderBlock produces the canonical managed block for entry: marker line
// first, then directive lines. Field order is fixed so repeated writes with
// the same entry and timestamp are byte-identical.
func renderBlock(entry HostEntry, now time.Time) []string {
	user := entry.User
	if user == "" {
		user = "root"
	}

	lines := []string{
		fmt.Sprintf("Host %s\n", entry.Alias),
		buildMarker(entry.Alias, entry.PodID, now),
		fmt.Sprintf("    HostName %s\n", entry.Hostname),
		fmt.Sprintf("    User %s\n", user),
		fmt.Sprintf("    Port %d\n", entry.Port),
	}
	if entry.IdentityFile != "" {
		lines = append(lines,
			"    IdentitiesOnly yes\n",
			fmt.Sprintf("    IdentityFile %s\n", entry.IdentityFile),
		)
	}
	lines = append(lines, "    ForwardAgent yes\n")
	return lines
}

// buildMarker renders the ownership comment carrying alias, pod id, and the
// last-updated timestamp (UTC, second precision).
func buildMarker(alias, podID string, now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05Z")
	return fmt.Sprintf("    %s alias=%s pod_id=%s updated=%s\n", MarkerPrefix, alias, podID, ts)
}

// dropRanges filters out the given non-overlapping block ranges, preserving
// every other line in order.
func dropRanges(lines []string, ranges []Block) []string {
	out := make([]string, 0, len(lines))
	cur := 0
	for _, r := range ranges {
		out = append(out, lines[cur:r.Start]...)
		cur = r.End
	}
	out = append(out, lines[cur:]...)
	return out
}

// loadLines reads the config file as terminator-retaining lines. A missing
// file is an empty document, not an error.
func (m *Manager) loadLines() ([]string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to read SSH config",
			"Check permissions on "+m.path)
	}
	return splitLines(data), nil
}

// writeLines rewrites the whole document. The content lands in a temp file in
// the target directory and is renamed over the config, so a crash mid-write
// leaves the previous version intact.
func (m *Manager) writeLines(lines []string) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH config directory",
			"Check permissions on "+dir)
	}

	tmp, err := os.CreateTemp(dir, ".rp-config-*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to update SSH configuration",
			"Check permissions and disk space in "+dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strings.Join(lines, "")); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to update SSH configuration",
			"Check disk space in "+dir)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to set SSH config permissions", "")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to update SSH configuration", "")
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to update SSH configuration",
			"Check permissions on "+m.path)
	}
	return nil
}
