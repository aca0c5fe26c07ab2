// Package prompts builds the system and user prompts handed to the
// provider gateway by the generation phases. Pure string construction.
package prompts

import (
	"fmt"
	"strings"

	"github.com/specdrive/specdrive/pkg/spec"
)

// TestGenerationSystem is the system prompt for the generate-tests phase.
func TestGenerationSystem() string {
	return strings.TrimSpace(`
You are a test engineer. Given a feature specification, produce tests
that pin its acceptance criteria and deterministic tests exactly.
Respond only with a unified diff (--- a/..., +++ b/..., @@ hunks)
creating or modifying test files. Do not include prose outside the diff.
`)
}

// ImplementationSystem is the system prompt for the implement phase.
func ImplementationSystem() string {
	return strings.TrimSpace(`
You are a software engineer implementing an approved specification.
Respond only with a unified diff (--- a/..., +++ b/..., @@ hunks)
against the provided files. Context lines must match the files exactly.
Do not include prose outside the diff.
`)
}

// ReviewSystem is the system prompt for the AI-assisted review phase.
func ReviewSystem() string {
	return strings.TrimSpace(`
You are an adversarial reviewer. Identify ambiguities, missing edge
cases and security gaps in the specification. Respond with one finding
per line.
`)
}

// SpecUser renders the specification portion of a user prompt.
func SpecUser(s *spec.Specification) string {
	var b strings.Builder
	if s.Metadata != nil {
		fmt.Fprintf(&b, "# Specification: %s (%s)\n", s.Metadata.Name, s.Metadata.ID)
		fmt.Fprintf(&b, "Complexity: %s, Maturity: %d\n\n", s.Metadata.Complexity, s.Metadata.Maturity)
	}
	b.WriteString(s.Raw)
	return b.String()
}

// ContextFilesUser renders the workspace file list handed to generation
// phases.
func ContextFilesUser(files []string) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Workspace files\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}
