package spec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullSpec = `# Example Name

---
version: "2.0"
kind: feature
feature_name: Example Name
complexity_tier: HIGH
maturity_level: 5
tags:
  - core
---

## Overview
Reduce review latency by 40% within one quarter.

## Functional Requirements
- FR-1: Parse the input document
  - Rejects empty input
- FR-2: Persist results
  - Survives restart

## Acceptance Criteria
- Given a valid document, when parsed (FR-1), then sections are extracted
- Given a restart, when resuming (FR-2), then state is restored

## Deterministic Tests
` + "```yaml" + `
id: DT-1
input: "hello"
expected: "HELLO"
` + "```" + `

## Rollback Plan
Revert the feature flag.
`

func TestParseFullSpec(t *testing.T) {
	s, err := Parse(fullSpec)
	require.NoError(t, err)
	require.NotNil(t, s.Metadata)

	assert.Equal(t, "2.0", s.Metadata.Version)
	assert.Equal(t, "feature", s.Metadata.Kind)
	assert.Equal(t, "Example Name", s.Metadata.Name)
	assert.Equal(t, "HIGH", s.Metadata.Complexity)
	assert.Equal(t, 5, s.Metadata.Maturity)
	assert.Equal(t, []string{"core"}, s.Metadata.Tags)

	// No explicit id: derived deterministically from the name.
	assert.Equal(t, "feat-example-name", s.Metadata.ID)

	require.Len(t, s.Requirements, 2)
	assert.Equal(t, "FR-1", s.Requirements[0].ID)
	assert.Equal(t, "Parse the input document", s.Requirements[0].Description)
	assert.Equal(t, []string{"Rejects empty input"}, s.Requirements[0].ValidationCriteria)
	assert.Equal(t, "FR-2", s.Requirements[1].ID)

	require.Len(t, s.AcceptanceCriteria, 2)
	require.Len(t, s.DeterministicTests, 1)
	assert.Equal(t, "DT-1", s.DeterministicTests[0].ID)
	assert.Equal(t, "HELLO", s.DeterministicTests[0].Expected)
	assert.Empty(t, s.Faults)
}

func TestParseIsDeterministic(t *testing.T) {
	first, err := Parse(fullSpec)
	require.NoError(t, err)
	second, err := Parse(fullSpec)
	require.NoError(t, err)
	assert.Equal(t, first.Metadata, second.Metadata)
	assert.Equal(t, first.Requirements, second.Requirements)
	assert.Equal(t, first.DeterministicTests, second.DeterministicTests)
}

func TestFieldAliases(t *testing.T) {
	tests := []struct {
		name  string
		front string
		check func(t *testing.T, m *Metadata)
	}{
		{
			name:  "spec_id aliases id",
			front: "spec_id: feat-x\nname: X",
			check: func(t *testing.T, m *Metadata) { assert.Equal(t, "feat-x", m.ID) },
		},
		{
			name:  "spec_version aliases version",
			front: "spec_version: \"1.1\"",
			check: func(t *testing.T, m *Metadata) { assert.Equal(t, "1.1", m.Version) },
		},
		{
			name:  "type aliases kind",
			front: "type: feature",
			check: func(t *testing.T, m *Metadata) { assert.Equal(t, "feature", m.Kind) },
		},
		{
			name:  "complexity lowercased input normalized",
			front: "complexity: moderate",
			check: func(t *testing.T, m *Metadata) { assert.Equal(t, "MODERATE", m.Complexity) },
		},
		{
			name:  "maturity_level as string coerced",
			front: "maturity_level: \"4\"",
			check: func(t *testing.T, m *Metadata) { assert.Equal(t, 4, m.Maturity) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse("---\n" + tt.front + "\n---\n\n## Overview\nx\n")
			require.NoError(t, err)
			require.NotNil(t, s.Metadata)
			tt.check(t, s.Metadata)
		})
	}
}

func TestCanonicalFieldWinsOverAlias(t *testing.T) {
	s, err := Parse("---\nid: feat-canonical\nspec_id: feat-legacy\n---\n")
	require.NoError(t, err)
	assert.Equal(t, "feat-canonical", s.Metadata.ID)
}

func TestUnterminatedFrontMatter(t *testing.T) {
	_, err := Parse("---\nname: X\n\n## Overview\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")
}

func TestMissingFrontMatterIsNotAnError(t *testing.T) {
	s, err := Parse("## Overview\nJust a body.\n")
	require.NoError(t, err)
	assert.Nil(t, s.Metadata)
	assert.False(t, s.Section("overview").IsEmpty())
}

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Example Name", "feat-example-name"},
		{"User Auth (v2)", "feat-user-auth-v2"},
		{"  spaced  out  ", "feat-spaced-out"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := DeriveID(tt.name); got != tt.want {
			t.Errorf("DeriveID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Functional Requirements", "functional-requirements"},
		{"  Overview:  ", "overview"},
		{"Non-Functional   Requirements", "non-functional-requirements"},
	}
	for _, tt := range tests {
		if got := NormalizeHeading(tt.in); got != tt.want {
			t.Errorf("NormalizeHeading(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeadingFormRequirements(t *testing.T) {
	text := `## Functional Requirements

### FR-2: Persist results
- Survives restart

### FR-1: Parse input
- Rejects empty input
- Handles unicode
`
	s, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, s.Requirements, 2)

	// Ordered by numeric suffix regardless of document order.
	assert.Equal(t, "FR-1", s.Requirements[0].ID)
	assert.Equal(t, "parse input", strings.ToLower(s.Requirements[0].Description))
	assert.Len(t, s.Requirements[0].ValidationCriteria, 2)
	assert.Equal(t, "FR-2", s.Requirements[1].ID)
}

func TestBadDeterministicBlockRecordsFault(t *testing.T) {
	text := `## Deterministic Tests
` + "```yaml" + `
id: DT-1
input: [unclosed
` + "```" + `
` + "```yaml" + `
id: DT-2
input: ok
expected: fine
` + "```" + `
`
	s, err := Parse(text)
	require.NoError(t, err)

	// The bad block is dropped with a fault; the good one still decodes.
	assert.True(t, s.HasFault(FaultDeterministicTest))
	require.Len(t, s.DeterministicTests, 1)
	assert.Equal(t, "DT-2", s.DeterministicTests[0].ID)
}

func TestDeterministicTestOutputAlias(t *testing.T) {
	text := "## Deterministic Tests\n```yaml\ninput: a\noutput: b\n```\n"
	s, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, s.DeterministicTests, 1)
	assert.Equal(t, "b", s.DeterministicTests[0].Expected)
	assert.Equal(t, "DT-1", s.DeterministicTests[0].ID)
}

func TestNonYamlFenceIgnored(t *testing.T) {
	text := "## Deterministic Tests\n```go\nfunc main() {}\n```\n"
	s, err := Parse(text)
	require.NoError(t, err)
	assert.Empty(t, s.DeterministicTests)
	assert.Empty(t, s.Faults)
}

func TestRequirementNumber(t *testing.T) {
	assert.Equal(t, 12, RequirementNumber("FR-12"))
	assert.Equal(t, 3, RequirementNumber("AC-3"))
	assert.Equal(t, -1, RequirementNumber("FRX"))
}
