package scope

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdrive/specdrive/pkg/spec"
)

func buildSpecText(frCount, personaCount, integrationCount int) string {
	var b strings.Builder
	b.WriteString("## Overview\nShip value 10% faster.\n\n## Functional Requirements\n")
	for i := 1; i <= frCount; i++ {
		fmt.Fprintf(&b, "- FR-%d: Requirement number %d\n  - checkable\n", i, i)
	}
	if personaCount > 0 {
		b.WriteString("\n## Personas\n")
		for i := 1; i <= personaCount; i++ {
			fmt.Fprintf(&b, "- As a persona%d, I want things to happen\n", i)
		}
	}
	for i := 1; i <= integrationCount; i++ {
		fmt.Fprintf(&b, "\n## Integration With System %d\nCalls the external API.\n", i)
	}
	return b.String()
}

func analyzeText(t *testing.T, text string) Assessment {
	t.Helper()
	s, err := spec.Parse(text)
	require.NoError(t, err)
	return Analyze(s)
}

func TestBroadSpecRecommendsSplit(t *testing.T) {
	a := analyzeText(t, buildSpecText(15, 4, 3))
	assert.True(t, a.ShouldSplit)
	assert.GreaterOrEqual(t, a.Score, 1.0)
}

func TestNarrowSpecDoesNotRecommendSplit(t *testing.T) {
	a := analyzeText(t, buildSpecText(2, 0, 0))
	assert.False(t, a.ShouldSplit)
	assert.Less(t, a.Score, 1.0)
}

func TestSingleTriggeredFactorIsNotEnough(t *testing.T) {
	// Many requirements alone (weight 0.4) stay under the threshold.
	a := analyzeText(t, buildSpecText(20, 0, 0))
	assert.False(t, a.ShouldSplit)
}

func TestFactorsAreReported(t *testing.T) {
	a := analyzeText(t, buildSpecText(15, 4, 3))

	byName := map[string]Factor{}
	for _, f := range a.Factors {
		byName[f.Name] = f
	}
	require.Contains(t, byName, "functional_requirements")
	require.Contains(t, byName, "personas")
	require.Contains(t, byName, "integrations")

	assert.True(t, byName["functional_requirements"].Triggered)
	assert.Equal(t, 15, byName["functional_requirements"].Value)
	assert.True(t, byName["personas"].Triggered)
	assert.Equal(t, 4, byName["personas"].Value)
	assert.True(t, byName["integrations"].Triggered)
}

func TestDuplicatePersonasCountOnce(t *testing.T) {
	text := `## Overview
1 metric.

As a reviewer, I want summaries.
As a reviewer, I want highlights.
As a Reviewer, I want consistency.
`
	s, err := spec.Parse(text)
	require.NoError(t, err)
	a := Analyze(s)
	for _, f := range a.Factors {
		if f.Name == "personas" {
			assert.Equal(t, 1, f.Value)
		}
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	text := buildSpecText(12, 3, 2)
	first := analyzeText(t, text)
	second := analyzeText(t, text)
	assert.Equal(t, first, second)
}
