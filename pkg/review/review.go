// Package review runs adversarial heuristics against a parsed
// specification, probing it the way a hostile implementer would before
// any code is generated. Like the scope analyzer it is advisory: the
// review phase reports findings but never blocks the pipeline by itself.
package review

import (
	"fmt"
	"strings"

	"github.com/specdrive/specdrive/pkg/spec"
)

// Severity of one finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Finding is one weakness an adversary located in the spec.
type Finding struct {
	Adversary        string   `json:"adversary"`
	Severity         Severity `json:"severity"`
	Issue            string   `json:"issue"`
	Detail           string   `json:"detail,omitempty"`
	SuggestedDefense string   `json:"suggested_defense,omitempty"`
	Location         string   `json:"location,omitempty"`
}

// Report aggregates every adversary's findings.
type Report struct {
	Findings      []Finding `json:"findings"`
	CriticalCount int       `json:"critical_count"`
}

type adversary func(s *spec.Specification, raw string) []Finding

var adversaries = []adversary{securityAdversary, ambiguityAdversary, implementationAdversary, performanceAdversary, complianceAdversary}

// Review runs every adversary against the specification.
func Review(s *spec.Specification) Report {
	raw := strings.ToLower(s.Raw)
	var report Report
	for _, attack := range adversaries {
		report.Findings = append(report.Findings, attack(s, raw)...)
	}
	for _, f := range report.Findings {
		if f.Severity == SeverityCritical {
			report.CriticalCount++
		}
	}
	return report
}

var (
	userActionWords = []string{"create", "update", "delete", "modify", "submit", "approve"}
	authWords       = []string{"authenticate", "authentication", "login", "jwt", "oauth", "token"}
	sensitiveWords  = []string{"payment", "password", "credit", "personal", "private", "pii"}
	vagueTerms      = []string{"fast", "quickly", "appropriate", "robust", "user-friendly", "simple", "efficient", "scalable", "etc"}
	queryWords      = []string{"list", "search", "query"}
	iterationWords  = []string{"for each", "iterate", "process all"}
	expensiveWords  = []string{"calculate", "compute", "aggregate", "report", "analytics"}
	regulatedWords  = []string{
		"personal data", "privacy", "consent", "right to be forgotten",
		"credit card", "payment card", "card number", "cvv", "payment",
		"health", "medical", "patient", "diagnosis", "prescription",
		"confidentiality", "personal information", "consumer privacy",
	}
	auditedOps = []string{"delete", "modify", "access", "view", "export"}
)

func containsAny(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

// securityAdversary looks for mutating operations without authentication
// coverage and sensitive data without protection requirements.
func securityAdversary(s *spec.Specification, raw string) []Finding {
	var findings []Finding

	if action, hasActions := containsAny(raw, userActionWords); hasActions {
		if _, hasAuth := containsAny(raw, authWords); !hasAuth {
			findings = append(findings, Finding{
				Adversary:        "security",
				Severity:         SeverityCritical,
				Issue:            "mutating operations without authentication requirements",
				Detail:           fmt.Sprintf("spec mentions %q but never describes how callers are authenticated", action),
				SuggestedDefense: "Add authentication requirements to the security section",
			})
		}
	}

	if word, hasSensitive := containsAny(raw, sensitiveWords); hasSensitive {
		if !strings.Contains(raw, "encrypt") {
			findings = append(findings, Finding{
				Adversary:        "security",
				Severity:         SeverityHigh,
				Issue:            "sensitive data without protection requirements",
				Detail:           fmt.Sprintf("spec mentions %q but no encryption requirement", word),
				SuggestedDefense: "State how sensitive data is protected at rest and in transit",
			})
		}
	}

	return findings
}

// ambiguityAdversary flags vague terms in requirements that invite
// divergent interpretations.
func ambiguityAdversary(s *spec.Specification, raw string) []Finding {
	var findings []Finding

	for _, req := range s.Requirements {
		lower := strings.ToLower(req.Description)
		for _, term := range vagueTerms {
			if strings.Contains(lower, term) {
				findings = append(findings, Finding{
					Adversary:        "ambiguity",
					Severity:         SeverityMedium,
					Issue:            fmt.Sprintf("vague term %q in requirement", term),
					Detail:           fmt.Sprintf("%s: %q can be read to mean almost anything", req.ID, term),
					SuggestedDefense: "Replace the vague term with a measurable criterion",
					Location:         req.ID,
				})
				break
			}
		}
	}

	return findings
}

// implementationAdversary probes for missing edge-case and failure
// coverage an implementer would have to guess at.
func implementationAdversary(s *spec.Specification, raw string) []Finding {
	var findings []Finding

	if _, ok := containsAny(raw, []string{"empty", "null", "zero", "missing"}); !ok {
		findings = append(findings, Finding{
			Adversary:        "implementation",
			Severity:         SeverityMedium,
			Issue:            "no empty/null input handling specified",
			SuggestedDefense: "Describe expected behavior for empty and missing inputs",
		})
	}

	if _, ok := containsAny(raw, []string{"error", "fail", "invalid", "timeout"}); !ok {
		findings = append(findings, Finding{
			Adversary:        "implementation",
			Severity:         SeverityHigh,
			Issue:            "no error conditions or failure scenarios defined",
			SuggestedDefense: "Add error handling requirements for each major operation",
		})
	}

	if _, ok := containsAny(raw, []string{"concurrent", "simultaneous", "race", "parallel", "single-threaded", "single writer"}); !ok {
		findings = append(findings, Finding{
			Adversary:        "implementation",
			Severity:         SeverityLow,
			Issue:            "concurrent access behavior unspecified",
			SuggestedDefense: "State whether operations may run concurrently and what consistency is promised",
		})
	}

	return findings
}

// performanceAdversary hunts for operations that degrade under load:
// unbounded queries and iteration, missing resource limits, and
// expensive computations with no caching strategy.
func performanceAdversary(s *spec.Specification, raw string) []Finding {
	var findings []Finding

	if word, ok := containsAny(raw, queryWords); ok {
		if _, bounded := containsAny(raw, []string{"limit", "page", "pagination"}); !bounded {
			findings = append(findings, Finding{
				Adversary:        "performance",
				Severity:         SeverityHigh,
				Issue:            "unbounded query results",
				Detail:           fmt.Sprintf("spec mentions %q without any result limit or pagination", word),
				SuggestedDefense: "Add pagination or result limit requirements",
			})
		}
	}

	if word, ok := containsAny(raw, iterationWords); ok {
		if _, bounded := containsAny(raw, []string{"timeout", "limit"}); !bounded {
			findings = append(findings, Finding{
				Adversary:        "performance",
				Severity:         SeverityMedium,
				Issue:            "unbounded iteration",
				Detail:           fmt.Sprintf("spec mentions %q with no iteration limit or timeout", word),
				SuggestedDefense: "Add iteration limits or processing timeouts",
			})
		}
	}

	if _, ok := containsAny(raw, []string{"upload", "file"}); ok {
		if _, capped := containsAny(raw, []string{"size limit", "max size"}); !capped {
			findings = append(findings, Finding{
				Adversary:        "performance",
				Severity:         SeverityHigh,
				Issue:            "file handling without size restrictions",
				SuggestedDefense: "Specify maximum file size and total storage limits",
			})
		}
	}

	if _, ok := containsAny(raw, []string{"api", "endpoint"}); ok {
		if _, limited := containsAny(raw, []string{"rate limit", "throttle"}); !limited {
			findings = append(findings, Finding{
				Adversary:        "performance",
				Severity:         SeverityMedium,
				Issue:            "no rate limiting specified",
				SuggestedDefense: "Add rate limiting requirements per caller",
			})
		}
	}

	if word, ok := containsAny(raw, expensiveWords); ok {
		if !strings.Contains(raw, "cache") {
			findings = append(findings, Finding{
				Adversary:        "performance",
				Severity:         SeverityMedium,
				Issue:            "expensive operations without caching",
				Detail:           fmt.Sprintf("spec mentions %q but no cache strategy", word),
				SuggestedDefense: "Specify caching requirements for expensive operations",
			})
		}
	}

	return findings
}

// complianceAdversary checks regulated-data obligations: retention,
// audit trails, consent, and data portability.
func complianceAdversary(s *spec.Specification, raw string) []Finding {
	var findings []Finding

	if word, regulated := containsAny(raw, regulatedWords); regulated {
		if _, retained := containsAny(raw, []string{"retention", "delete"}); !retained {
			findings = append(findings, Finding{
				Adversary:        "compliance",
				Severity:         SeverityHigh,
				Issue:            "missing data retention policy",
				Detail:           fmt.Sprintf("spec handles %q without a retention or deletion policy", word),
				SuggestedDefense: "Specify data retention periods and deletion procedures",
			})
		}
	}

	if op, ok := containsAny(raw, auditedOps); ok {
		if _, audited := containsAny(raw, []string{"audit", "log"}); !audited {
			findings = append(findings, Finding{
				Adversary:        "compliance",
				Severity:         SeverityMedium,
				Issue:            "missing audit trail requirements",
				Detail:           fmt.Sprintf("spec mentions %q operations without audit logging", op),
				SuggestedDefense: "Add audit logging for all data operations",
			})
		}
	}

	if _, ok := containsAny(raw, []string{"personal", "user data"}); ok {
		if !strings.Contains(raw, "consent") {
			findings = append(findings, Finding{
				Adversary:        "compliance",
				Severity:         SeverityHigh,
				Issue:            "no consent management",
				SuggestedDefense: "Add explicit consent collection and management",
			})
		}
	}

	if strings.Contains(raw, "user") && strings.Contains(raw, "data") {
		if _, portable := containsAny(raw, []string{"export", "download"}); !portable {
			findings = append(findings, Finding{
				Adversary:        "compliance",
				Severity:         SeverityMedium,
				Issue:            "no data portability mechanism",
				SuggestedDefense: "Add data export in a machine-readable format",
			})
		}
	}

	return findings
}
