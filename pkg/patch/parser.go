// Package patch parses unified-diff text and applies it to files on
// disk. Verification is strict: every context and removed line must match
// the target file exactly, with no fuzzy or offset matching. Generated
// diffs frequently carry stale context relative to the true file state;
// applying a mismatched hunk would corrupt source, so the whole patch
// for a file is rejected on the first mismatch and the file is left
// byte-for-byte untouched.
package patch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Hunk is one contiguous block of change within a file.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	// Lines carries the hunk body: each entry prefixed with ' ', '+' or '-'.
	Lines []string
}

// FilePatch is the ordered set of hunks for one file.
type FilePatch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// IsCreate reports whether the patch creates a new file.
func (fp *FilePatch) IsCreate() bool { return fp.OldPath == "/dev/null" }

// IsDelete reports whether the patch deletes the file.
func (fp *FilePatch) IsDelete() bool { return fp.NewPath == "/dev/null" }

// Path returns the effective target path of the file patch.
func (fp *FilePatch) Path() string {
	if fp.IsDelete() {
		return fp.OldPath
	}
	return fp.NewPath
}

// Patch is a parsed unified diff: an ordered list of file-level changes.
type Patch struct {
	Files []FilePatch
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseUnified parses standard unified-diff text: `--- a/...`,
// `+++ b/...` header pairs followed by `@@` hunks.
func ParseUnified(diffText string) (*Patch, error) {
	lines := strings.Split(diffText, "\n")
	p := &Patch{}

	var current *FilePatch
	var hunk *Hunk

	closeHunk := func() error {
		if hunk == nil {
			return nil
		}
		oldCount, newCount := hunkCounts(hunk.Lines)
		if oldCount != hunk.OldLines || newCount != hunk.NewLines {
			return fmt.Errorf("hunk header counts (-%d,+%d) do not match body (-%d,+%d)",
				hunk.OldLines, hunk.NewLines, oldCount, newCount)
		}
		current.Hunks = append(current.Hunks, *hunk)
		hunk = nil
		return nil
	}

	closeFile := func() error {
		if err := closeHunk(); err != nil {
			return err
		}
		if current != nil {
			if len(current.Hunks) == 0 {
				return fmt.Errorf("file header for %s has no hunks", current.Path())
			}
			p.Files = append(p.Files, *current)
			current = nil
		}
		return nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, "--- "):
			if err := closeFile(); err != nil {
				return nil, err
			}
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("line %d: file header missing +++ line", i+1)
			}
			current = &FilePatch{
				OldPath: stripPathPrefix(strings.TrimPrefix(line, "--- ")),
				NewPath: stripPathPrefix(strings.TrimPrefix(lines[i+1], "+++ ")),
			}
			i++
		case strings.HasPrefix(line, "@@"):
			if current == nil {
				return nil, fmt.Errorf("line %d: hunk header before any file header", i+1)
			}
			if err := closeHunk(); err != nil {
				return nil, err
			}
			m := hunkHeaderRegex.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("line %d: malformed hunk header %q", i+1, line)
			}
			hunk = &Hunk{
				OldStart: atoiDefault(m[1], 0),
				OldLines: atoiDefault(m[2], 1),
				NewStart: atoiDefault(m[3], 0),
				NewLines: atoiDefault(m[4], 1),
			}
		case hunk != nil:
			if line == `\ No newline at end of file` {
				continue
			}
			if len(line) == 0 {
				// Some producers emit bare empty lines for empty context.
				line = " "
			}
			switch line[0] {
			case ' ', '+', '-':
				hunk.Lines = append(hunk.Lines, line)
			default:
				return nil, fmt.Errorf("line %d: unexpected line prefix %q inside hunk", i+1, line[0])
			}
			// Close the hunk as soon as its declared counts are satisfied so
			// trailing prose or blank separators are not swallowed as context.
			if oldCount, newCount := hunkCounts(hunk.Lines); oldCount >= hunk.OldLines && newCount >= hunk.NewLines {
				if err := closeHunk(); err != nil {
					return nil, err
				}
			}
		default:
			// Prose between file sections (e.g. "diff --git" or index lines)
			// is ignored.
		}
	}

	if err := closeFile(); err != nil {
		return nil, err
	}
	if len(p.Files) == 0 {
		return nil, fmt.Errorf("no file changes found in diff")
	}
	return p, nil
}

func hunkCounts(lines []string) (oldCount, newCount int) {
	for _, line := range lines {
		switch line[0] {
		case ' ':
			oldCount++
			newCount++
		case '-':
			oldCount++
		case '+':
			newCount++
		}
	}
	return oldCount, newCount
}

func stripPathPrefix(path string) string {
	path = strings.TrimSpace(path)
	// Drop a trailing timestamp some producers append after a tab.
	if idx := strings.IndexByte(path, '\t'); idx >= 0 {
		path = path[:idx]
	}
	if path == "/dev/null" {
		return path
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(path, prefix) {
			return path[len(prefix):]
		}
	}
	return path
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
