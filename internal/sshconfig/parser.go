// Package sshconfig manages rp-owned Host blocks inside an OpenSSH client
// config file. It parses the file into contiguous blocks, tags the ones
// carrying the rp ownership marker, and rewrites the document around them
// while leaving every other line byte-for-byte untouched.
//
// The grammar handled here is the flat subset rp itself produces: a
// "Host <name...>" line followed by indented "Key Value" lines until the next
// Host line or end of file. Match/Include directives, quoting, and multi-line
// continuations are out of scope for mutation; see lookup.go for read-only
// resolution that honors the full grammar.
package sshconfig

import (
	"regexp"
	"strings"
)

// MarkerPrefix is the reserved comment prefix that tags a Host block as
// rp-managed. Any block lacking it is treated as user-authored and is never
// removed or pruned.
const MarkerPrefix = "# rp:managed"

// hostLineRE matches a block-opening line: optional leading whitespace, the
// literal "Host" token, whitespace, then the rest of the line (name tokens).
var hostLineRE = regexp.MustCompile(`^\s*Host\s+(.+)$`)

// Block describes one Host block as a half-open line range [Start, End).
type Block struct {
	Start      int      // index of the "Host ..." line
	End        int      // exclusive end (next Host line or len(lines))
	Hosts      []string // name tokens declared on the opening line
	Managed    bool     // true if a body line starts with MarkerPrefix
	MarkerLine int      // index of the marker line, or -1
}

// HasAlias reports whether the block's opening line declares the given name.
func (b Block) HasAlias(alias string) bool {
	for _, h := range b.Hosts {
		if h == alias {
			return true
		}
	}
	return false
}

// ParseBlocks scans lines top to bottom and returns the Host blocks in
// document order. Blocks are pairwise non-overlapping; lines outside any
// block (leading global options, blank separators, comments before the first
// Host) are not modeled and pass through untouched during rewrites.
//
// Lines may carry their terminators; matching is done on terminator-stripped
// content. A Host line with zero name tokens is not a valid opener.
func ParseBlocks(lines []string) []Block {
	var blocks []Block

	i := 0
	for i < len(lines) {
		hosts, ok := matchHostLine(lines[i])
		if !ok {
			i++
			continue
		}

		start := i
		i++
		for i < len(lines) {
			if _, next := matchHostLine(lines[i]); next {
				break
			}
			i++
		}
		end := i

		managed := false
		markerLine := -1
		for j := start + 1; j < end; j++ {
			if strings.HasPrefix(strings.TrimLeft(lines[j], " \t"), MarkerPrefix) {
				managed = true
				markerLine = j
				break
			}
		}

		blocks = append(blocks, Block{
			Start:      start,
			End:        end,
			Hosts:      hosts,
			Managed:    managed,
			MarkerLine: markerLine,
		})
	}

	return blocks
}

// matchHostLine reports whether a line opens a block, returning its name
// tokens. Requires at least one token after "Host".
func matchHostLine(line string) ([]string, bool) {
	m := hostLineRE.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, false
	}
	hosts := strings.Fields(m[1])
	if len(hosts) == 0 {
		return nil, false
	}
	return hosts, true
}

// splitLines splits raw file content into lines that retain their "\n"
// terminators, so that concatenating the result reproduces the input exactly
// (including a final line without a trailing newline).
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i+1]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
