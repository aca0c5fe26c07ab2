package patch

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Color constants for preview rendering
const (
	redColor   = "\x1b[31m"
	greenColor = "\x1b[32m"
	boldStyle  = "\x1b[1m"
	resetColor = "\x1b[0m"
)

// Preview renders a colored summary of the change a verified patch would
// make to one file, without touching disk.
func Preview(diffText string, opts ApplyOptions) (string, error) {
	p, err := ParseUnified(diffText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}

	var b strings.Builder
	for i := range p.Files {
		change, err := verifyFile(&p.Files[i], opts.RootDir)
		if err != nil {
			return "", err
		}
		b.WriteString(renderFileDiff(p.Files[i].Path(), change.preImage, change.postImage))
	}
	return b.String(), nil
}

// renderFileDiff produces a per-file stats line followed by colored
// change lines.
func renderFileDiff(filename, before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	additions, deletions := diffStats(diffs)
	b.WriteString(fmt.Sprintf("%s%s%s ", boldStyle, filename, resetColor))
	if additions > 0 {
		b.WriteString(fmt.Sprintf("%s+%d%s ", greenColor, additions, resetColor))
	}
	if deletions > 0 {
		b.WriteString(fmt.Sprintf("%s-%d%s", redColor, deletions, resetColor))
	}
	b.WriteString("\n")

	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range strings.Split(text, "\n") {
				b.WriteString(fmt.Sprintf("%s- %s%s\n", redColor, line, resetColor))
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range strings.Split(text, "\n") {
				b.WriteString(fmt.Sprintf("%s+ %s%s\n", greenColor, line, resetColor))
			}
		}
	}
	return b.String()
}

// diffStats counts changed characters per side.
func diffStats(diffs []diffmatchpatch.Diff) (additions, deletions int) {
	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			additions += len(diff.Text)
		case diffmatchpatch.DiffDelete:
			deletions += len(diff.Text)
		}
	}
	return
}
