package gates

import "github.com/specdrive/specdrive/pkg/spec"

// Section requirements are cumulative: every spec needs the base set,
// complexity and maturity each add to it. The table is fixed; G1 consults
// it by the (complexity, maturity) pair declared in front matter.
var (
	baseSections = []string{
		"overview",
		"functional-requirements",
		"acceptance-criteria",
	}

	moderateSections = []string{"security"}
	highSections     = []string{"security", "error-handling"}

	maturity3Sections = []string{"non-functional-requirements"}

	// maturity5Sections are required only at maturity 5. HIGH-complexity
	// specs always require them: a HIGH spec below maturity 5 is rejected
	// by G1 naming these sections.
	maturity5Sections = []string{"deterministic-tests", "rollback-plan"}
)

// RequiredSections returns the section keys a spec with the given
// complexity and maturity must declare, in stable order.
func RequiredSections(complexity string, maturity int) []string {
	out := append([]string{}, baseSections...)

	switch complexity {
	case spec.ComplexityModerate:
		out = append(out, moderateSections...)
	case spec.ComplexityHigh:
		out = append(out, highSections...)
	}

	if maturity >= 3 {
		out = append(out, maturity3Sections...)
	}
	if maturity >= 5 || complexity == spec.ComplexityHigh {
		out = append(out, maturity5Sections...)
	}
	return out
}

// Maturity5OnlySections returns the sections demanded only at maturity 5.
func Maturity5OnlySections() []string {
	return append([]string{}, maturity5Sections...)
}
