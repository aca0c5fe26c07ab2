package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrRejected is the sentinel all patch rejections wrap.
var ErrRejected = errors.New("patch rejected")

// RejectError reports a hunk that could not be verified against the
// target file. The file is left byte-for-byte untouched.
type RejectError struct {
	Path   string
	Hunk   int // 1-based hunk index, 0 when the failure is file-level
	Line   int // 1-based line in the target file, 0 when not applicable
	Reason string
}

func (e *RejectError) Error() string {
	if e.Hunk > 0 {
		return fmt.Sprintf("patch rejected for %s: hunk %d at line %d: %s", e.Path, e.Hunk, e.Line, e.Reason)
	}
	return fmt.Sprintf("patch rejected for %s: %s", e.Path, e.Reason)
}

func (e *RejectError) Is(target error) bool { return target == ErrRejected }

// ApplyOptions controls patch application.
type ApplyOptions struct {
	// RootDir is the working tree all paths resolve under.
	RootDir string
	// AtomicAcrossFiles verifies every file before writing any, and rolls
	// written files back to their pre-images if a later write fails.
	// When false, files are applied independently: a rejected file never
	// blocks files already applied, and is itself left untouched.
	AtomicAcrossFiles bool
	// DryRun verifies the whole patch without writing anything.
	DryRun bool
}

type fileChange struct {
	path       string // absolute
	preImage   string
	postImage  string
	existed    bool
	deleteFile bool
}

// Apply parses and applies unified-diff text to files under
// opts.RootDir. A file whose hunks cannot all be verified is left
// byte-for-byte unchanged and reported via RejectError.
func Apply(diffText string, opts ApplyOptions) error {
	p, err := ParseUnified(diffText)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return applyParsed(p, opts)
}

func applyParsed(p *Patch, opts ApplyOptions) error {
	if opts.AtomicAcrossFiles || opts.DryRun {
		changes := make([]fileChange, 0, len(p.Files))
		for i := range p.Files {
			change, err := verifyFile(&p.Files[i], opts.RootDir)
			if err != nil {
				return err
			}
			changes = append(changes, *change)
		}
		if opts.DryRun {
			return nil
		}
		return writeAll(changes)
	}

	for i := range p.Files {
		change, err := verifyFile(&p.Files[i], opts.RootDir)
		if err != nil {
			return err
		}
		if err := writeChange(change); err != nil {
			return err
		}
	}
	return nil
}

// verifyFile checks every hunk of one file patch against the file on
// disk and returns the computed post-image. Nothing is written.
func verifyFile(fp *FilePatch, rootDir string) (*fileChange, error) {
	absPath, err := resolveUnderRoot(rootDir, fp.Path())
	if err != nil {
		return nil, &RejectError{Path: fp.Path(), Reason: err.Error()}
	}

	change := &fileChange{path: absPath, deleteFile: fp.IsDelete()}

	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		change.existed = true
		change.preImage = string(data)
	case os.IsNotExist(err):
		if !fp.IsCreate() {
			return nil, &RejectError{Path: fp.Path(), Reason: "target file does not exist"}
		}
	default:
		return nil, &RejectError{Path: fp.Path(), Reason: fmt.Sprintf("cannot read target: %v", err)}
	}

	if fp.IsCreate() && change.existed {
		return nil, &RejectError{Path: fp.Path(), Reason: "patch creates a file that already exists"}
	}

	post, err := applyHunks(change.preImage, fp)
	if err != nil {
		return nil, err
	}
	change.postImage = post
	return change, nil
}

// applyHunks computes the post-image of a file. Every context and
// removed line must match the original exactly at the stated position;
// the first mismatch rejects the file.
func applyHunks(content string, fp *FilePatch) (string, error) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")

	var lines []string
	if trimmed != "" || content == "\n" {
		lines = strings.Split(trimmed, "\n")
	}

	var out []string
	idx := 0 // 0-based cursor into the original lines

	for h, hunk := range fp.Hunks {
		start := hunk.OldStart - 1
		if hunk.OldLines == 0 {
			// Pure insertion: OldStart names the line after which to insert.
			start = hunk.OldStart
		}
		if start < idx || start > len(lines) {
			return "", &RejectError{
				Path: fp.Path(), Hunk: h + 1, Line: hunk.OldStart,
				Reason: "hunk start is out of range or overlaps a previous hunk",
			}
		}

		out = append(out, lines[idx:start]...)
		idx = start

		for _, hl := range hunk.Lines {
			body := hl[1:]
			switch hl[0] {
			case ' ', '-':
				if idx >= len(lines) || lines[idx] != body {
					got := "<end of file>"
					if idx < len(lines) {
						got = lines[idx]
					}
					return "", &RejectError{
						Path: fp.Path(), Hunk: h + 1, Line: idx + 1,
						Reason: fmt.Sprintf("expected %q, file has %q", body, got),
					}
				}
				if hl[0] == ' ' {
					out = append(out, lines[idx])
				}
				idx++
			case '+':
				out = append(out, body)
			}
		}
	}

	out = append(out, lines[idx:]...)

	if fp.IsDelete() {
		return "", nil
	}

	result := strings.Join(out, "\n")
	if len(out) > 0 && (hadTrailingNewline || fp.IsCreate()) {
		result += "\n"
	}
	return result, nil
}

// writeAll applies the verified change set, restoring pre-images if any
// write fails so the tree is not left partially patched.
func writeAll(changes []fileChange) error {
	written := make([]*fileChange, 0, len(changes))
	for i := range changes {
		if err := writeChange(&changes[i]); err != nil {
			for _, prev := range written {
				restoreChange(prev)
			}
			return err
		}
		written = append(written, &changes[i])
	}
	return nil
}

// writeChange replaces one file atomically: the post-image goes to a
// temporary file in the same directory which is then renamed over the
// original, so a crash mid-write never leaves a half-written file.
func writeChange(c *fileChange) error {
	if c.deleteFile {
		if err := os.Remove(c.path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", c.path, err)
		}
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".patch-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(c.postImage); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", c.path, err)
	}
	return nil
}

func restoreChange(c *fileChange) {
	if !c.existed {
		os.Remove(c.path)
		return
	}
	_ = os.WriteFile(c.path, []byte(c.preImage), 0644)
}

// resolveUnderRoot joins a diff path to the root directory, rejecting
// paths that escape it.
func resolveUnderRoot(rootDir, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty file path in diff")
	}
	rootAbs, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory: %w", err)
	}
	joined := filepath.Clean(filepath.Join(rootAbs, relPath))
	rel, err := filepath.Rel(rootAbs, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the working tree", relPath)
	}
	return joined, nil
}
