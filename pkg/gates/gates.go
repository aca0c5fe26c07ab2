// Package gates implements the four validation gates run against a parsed
// specification before the pipeline will treat it as agent-ready. Each
// gate is a pure, read-only pass: violations are reported values, never
// errors, and re-running a gate against the same spec yields the same
// result.
package gates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specdrive/specdrive/pkg/spec"
)

// Violation is one reported gate failure with a machine-readable code and
// remediation guidance.
type Violation struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Location    string `json:"location,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// GateResult is the outcome of a single gate.
type GateResult struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
}

// Violation codes.
const (
	CodeMissingMetadata    = "G1_MISSING_METADATA"
	CodeMissingField       = "G1_MISSING_FIELD"
	CodeBadComplexity      = "G1_BAD_COMPLEXITY"
	CodeBadMaturity        = "G1_BAD_MATURITY"
	CodeMaturityTooLow     = "G1_MATURITY_TOO_LOW"
	CodeMissingSection     = "G1_MISSING_SECTION"
	CodeNoCriteria         = "G2_NO_VALIDATION_CRITERIA"
	CodeBadAcceptance      = "G2_MALFORMED_ACCEPTANCE"
	CodeNoSuccessMetric    = "G2_NO_SUCCESS_METRIC"
	CodeSecurityIncomplete = "G2_SECURITY_INCOMPLETE"
	CodeNoAcceptance       = "G3_NO_ACCEPTANCE_CRITERIA"
	CodeUnlinkedFR         = "G3_UNLINKED_REQUIREMENT"
	CodeNoDeterministic    = "G4_NO_DETERMINISTIC_TESTS"
	CodeEmptyExpected      = "G4_EMPTY_EXPECTED"
	CodeUndecodableBlock   = "G4_UNDECODABLE_BLOCK"
)

var (
	numberRegex = regexp.MustCompile(`\d`)
	acRefRegex  = regexp.MustCompile(`(?i)\b(?:AC|FR)-(\d+)\b`)
)

func result(violations []Violation) GateResult {
	return GateResult{Passed: len(violations) == 0, Violations: violations}
}

// G1Structure verifies front-matter completeness and the presence of
// every section required for the declared (complexity, maturity) pair.
func G1Structure(s *spec.Specification) GateResult {
	var v []Violation

	if s.Metadata == nil {
		v = append(v, Violation{
			Code:        CodeMissingMetadata,
			Message:     "specification has no front matter",
			Remediation: "Add a front matter block with version, kind, id, name, complexity and maturity",
		})
		return result(v)
	}

	meta := s.Metadata
	required := map[string]string{
		"version": meta.Version,
		"kind":    meta.Kind,
		"id":      meta.ID,
		"name":    meta.Name,
	}
	for _, field := range []string{"version", "kind", "id", "name"} {
		if required[field] == "" {
			v = append(v, Violation{
				Code:        CodeMissingField,
				Message:     fmt.Sprintf("required front matter field %q is missing", field),
				Location:    "front matter",
				Remediation: fmt.Sprintf("Set %q in the front matter block", field),
			})
		}
	}

	switch meta.Complexity {
	case spec.ComplexityEasy, spec.ComplexityModerate, spec.ComplexityHigh:
	default:
		v = append(v, Violation{
			Code:        CodeBadComplexity,
			Message:     fmt.Sprintf("complexity %q is not one of EASY, MODERATE, HIGH", meta.Complexity),
			Location:    "front matter",
			Remediation: "Set complexity to EASY, MODERATE or HIGH",
		})
	}
	if meta.Maturity < 1 || meta.Maturity > 5 {
		v = append(v, Violation{
			Code:        CodeBadMaturity,
			Message:     fmt.Sprintf("maturity %d is outside the range 1..5", meta.Maturity),
			Location:    "front matter",
			Remediation: "Set maturity to a value between 1 and 5",
		})
	}

	if meta.Complexity == spec.ComplexityHigh && meta.Maturity < 5 {
		msg := fmt.Sprintf("HIGH complexity requires maturity 5; maturity is %d", meta.Maturity)
		if missing := missingSections(s, Maturity5OnlySections()); len(missing) > 0 {
			msg = fmt.Sprintf("HIGH complexity requires maturity 5; maturity %d omits required sections: %s",
				meta.Maturity, strings.Join(missing, ", "))
		}
		v = append(v, Violation{
			Code:        CodeMaturityTooLow,
			Message:     msg,
			Location:    "front matter",
			Remediation: "Raise the spec to maturity 5 and add the missing sections",
		})
	}

	for _, key := range missingSections(s, RequiredSections(meta.Complexity, meta.Maturity)) {
		v = append(v, Violation{
			Code:        CodeMissingSection,
			Message:     fmt.Sprintf("required section %q is missing or empty", key),
			Location:    key,
			Remediation: fmt.Sprintf("Add a non-empty %q section", key),
		})
	}

	return result(v)
}

func missingSections(s *spec.Specification, keys []string) []string {
	missing := []string{}
	for _, key := range keys {
		if s.Section(key).IsEmpty() {
			missing = append(missing, key)
		}
	}
	return missing
}

// G2Semantic verifies semantic completeness: validation criteria on every
// requirement, Given/When/Then structure on every acceptance criterion, a
// quantifiable success metric in the overview, and authn plus authz
// coverage in the security section of MODERATE and HIGH specs.
func G2Semantic(s *spec.Specification) GateResult {
	var v []Violation

	for _, req := range s.Requirements {
		if len(req.ValidationCriteria) == 0 {
			v = append(v, Violation{
				Code:        CodeNoCriteria,
				Message:     fmt.Sprintf("%s has no validation criteria", req.ID),
				Location:    req.ID,
				Remediation: fmt.Sprintf("Add at least one validation criterion under %s", req.ID),
			})
		}
	}

	for i, ac := range s.AcceptanceCriteria {
		if !hasGivenWhenThen(ac) {
			v = append(v, Violation{
				Code:        CodeBadAcceptance,
				Message:     fmt.Sprintf("acceptance criterion %d lacks Given/When/Then structure", i+1),
				Location:    fmt.Sprintf("acceptance-criteria entry %d", i+1),
				Remediation: "Rewrite the criterion in Given/When/Then form",
			})
		}
	}

	if !overviewHasMetric(s.Section("overview")) {
		v = append(v, Violation{
			Code:        CodeNoSuccessMetric,
			Message:     "overview contains no quantifiable success metric",
			Location:    "overview",
			Remediation: "State at least one numeric success metric in the overview",
		})
	}

	if s.Metadata != nil &&
		(s.Metadata.Complexity == spec.ComplexityModerate || s.Metadata.Complexity == spec.ComplexityHigh) {
		sec := sectionText(s.Section("security"))
		lower := strings.ToLower(sec)
		hasAuthn := strings.Contains(lower, "authentication")
		hasAuthz := strings.Contains(lower, "authorization")
		if !hasAuthn || !hasAuthz {
			v = append(v, Violation{
				Code:        CodeSecurityIncomplete,
				Message:     "security section must address both authentication and authorization",
				Location:    "security",
				Remediation: "Describe both how callers are authenticated and how their actions are authorized",
			})
		}
	}

	return result(v)
}

func hasGivenWhenThen(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "given") &&
		strings.Contains(lower, "when") &&
		strings.Contains(lower, "then")
}

func overviewHasMetric(sec *spec.Section) bool {
	return numberRegex.MatchString(sectionText(sec))
}

func sectionText(sec *spec.Section) string {
	if sec == nil {
		return ""
	}
	parts := append([]string{sec.Text}, sec.Items...)
	for _, child := range sec.Children {
		parts = append(parts, sectionText(child))
	}
	return strings.Join(parts, "\n")
}

// G3Traceability correlates functional requirements to acceptance
// criteria by numeric identifier suffix. Every declared requirement must
// be covered by at least one acceptance criterion.
func G3Traceability(s *spec.Specification) GateResult {
	var v []Violation

	if len(s.Requirements) == 0 {
		return result(nil)
	}
	if len(s.AcceptanceCriteria) == 0 {
		v = append(v, Violation{
			Code:        CodeNoAcceptance,
			Message:     "functional requirements exist but no acceptance criteria were declared",
			Location:    "acceptance-criteria",
			Remediation: "Add acceptance criteria covering each functional requirement",
		})
		return result(v)
	}

	covered := map[int]bool{}
	for _, ac := range s.AcceptanceCriteria {
		for _, m := range acRefRegex.FindAllStringSubmatch(ac, -1) {
			covered[spec.RequirementNumber("X-"+m[1])] = true
		}
	}

	for _, req := range s.Requirements {
		if !covered[spec.RequirementNumber(req.ID)] {
			v = append(v, Violation{
				Code:        CodeUnlinkedFR,
				Message:     fmt.Sprintf("%s has no linked acceptance criteria", req.ID),
				Location:    req.ID,
				Remediation: fmt.Sprintf("Add an acceptance criterion whose identifier correlates with %s", req.ID),
			})
		}
	}

	return result(v)
}

// G4Invariants requires HIGH-complexity specs to pin behavior with at
// least one deterministic test carrying a concrete expected output. A
// block that failed to decode structurally counts as absent.
func G4Invariants(s *spec.Specification) GateResult {
	var v []Violation

	if s.Metadata == nil || s.Metadata.Complexity != spec.ComplexityHigh {
		return result(nil)
	}

	usable := 0
	for _, dt := range s.DeterministicTests {
		if strings.TrimSpace(dt.Expected) != "" {
			usable++
		}
	}
	if usable == 0 {
		for _, dt := range s.DeterministicTests {
			v = append(v, Violation{
				Code:        CodeEmptyExpected,
				Message:     fmt.Sprintf("deterministic test %s has no expected output", dt.ID),
				Location:    dt.ID,
				Remediation: "Declare a concrete, non-empty expected output",
			})
		}
	}

	if s.HasFault(spec.FaultDeterministicTest) {
		v = append(v, Violation{
			Code:        CodeUndecodableBlock,
			Message:     "a deterministic-test block failed to decode and counts as absent",
			Location:    "deterministic-tests",
			Remediation: "Fix the YAML/JSON syntax of the failing block",
		})
	}

	if usable == 0 {
		v = append(v, Violation{
			Code:        CodeNoDeterministic,
			Message:     "HIGH-complexity specs must declare at least one deterministic test with a concrete expected output",
			Location:    "deterministic-tests",
			Remediation: "Add a fenced yaml/json block with id, input and expected fields",
		})
	}

	return result(v)
}

// RunAllGates executes all four gates and returns their results keyed by
// gate id. Gates share no mutable state and are safely re-runnable; the
// map is order-independent.
func RunAllGates(s *spec.Specification) map[string]GateResult {
	return map[string]GateResult{
		"G1": G1Structure(s),
		"G2": G2Semantic(s),
		"G3": G3Traceability(s),
		"G4": G4Invariants(s),
	}
}

// AllPassed reports whether every gate in the result map passed.
func AllPassed(results map[string]GateResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
