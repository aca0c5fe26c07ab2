// Package scope implements the heuristic scope analyzer. It scores a
// specification for architectural breadth and recommends splitting when
// the weighted factors cross a threshold. The assessment is advisory
// only: it never blocks pipeline progression on its own.
package scope

import (
	"regexp"
	"strings"

	"github.com/specdrive/specdrive/pkg/spec"
)

// Factor is one contributing signal, returned for explainability.
type Factor struct {
	Name      string  `json:"name"`
	Value     int     `json:"value"`
	Threshold int     `json:"threshold"`
	Weight    float64 `json:"weight"`
	Triggered bool    `json:"triggered"`
}

// Assessment is the analyzer's recommendation.
type Assessment struct {
	ShouldSplit bool     `json:"should_split"`
	Score       float64  `json:"score"`
	Factors     []Factor `json:"factors"`
}

// splitThreshold is the weighted score at or above which a split is
// recommended.
const splitThreshold = 1.0

var (
	frHeadingRegex   = regexp.MustCompile(`(?mi)^#{1,4}.*\bFR-\d+|^[-*]\s+\**FR-\d+`)
	personaRegex     = regexp.MustCompile(`(?i)\bAs an? ([^,]{1,60}), I want\b`)
	integrationRegex = regexp.MustCompile(`(?mi)^#{1,4}\s+.*\b(integration|external system|third.party)\b`)
	workflowKeywords = []string{"workflow", "pipeline", "process", "flow"}
)

type factorSpec struct {
	name      string
	threshold int
	weight    float64
	count     func(raw string) int
}

// The factor table is fixed: counts over the raw text compared against
// per-factor thresholds, weights summing against splitThreshold.
var factorTable = []factorSpec{
	{
		name:      "functional_requirements",
		threshold: 10,
		weight:    0.4,
		count: func(raw string) int {
			return len(frHeadingRegex.FindAllString(raw, -1))
		},
	},
	{
		name:      "personas",
		threshold: 3,
		weight:    0.3,
		count: func(raw string) int {
			seen := map[string]bool{}
			for _, m := range personaRegex.FindAllStringSubmatch(raw, -1) {
				seen[strings.ToLower(strings.TrimSpace(m[1]))] = true
			}
			return len(seen)
		},
	},
	{
		name:      "integrations",
		threshold: 2,
		weight:    0.3,
		count: func(raw string) int {
			return len(integrationRegex.FindAllString(raw, -1))
		},
	},
	{
		name:      "workflows",
		threshold: 6,
		weight:    0.2,
		count: func(raw string) int {
			lower := strings.ToLower(raw)
			total := 0
			for _, kw := range workflowKeywords {
				total += strings.Count(lower, kw)
			}
			return total
		},
	},
}

// Analyze scores the specification's raw text against the factor table.
func Analyze(s *spec.Specification) Assessment {
	assessment := Assessment{Factors: make([]Factor, 0, len(factorTable))}

	for _, fs := range factorTable {
		value := fs.count(s.Raw)
		triggered := value >= fs.threshold
		if triggered {
			assessment.Score += fs.weight
		}
		assessment.Factors = append(assessment.Factors, Factor{
			Name:      fs.name,
			Value:     value,
			Threshold: fs.threshold,
			Weight:    fs.weight,
			Triggered: triggered,
		})
	}

	assessment.ShouldSplit = assessment.Score >= splitThreshold
	return assessment
}
