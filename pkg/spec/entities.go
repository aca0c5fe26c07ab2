package spec

// Complexity levels accepted in spec front matter.
const (
	ComplexityEasy     = "EASY"
	ComplexityModerate = "MODERATE"
	ComplexityHigh     = "HIGH"
)

// Metadata holds the front-matter fields of a specification document.
// Legacy field names are normalized to these canonical names at parse time.
type Metadata struct {
	Version    string   `json:"version" yaml:"version"`
	Kind       string   `json:"kind" yaml:"kind"`
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Complexity string   `json:"complexity" yaml:"complexity"`
	Maturity   int      `json:"maturity" yaml:"maturity"`
	Owner      string   `json:"owner,omitempty" yaml:"owner,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Created    string   `json:"created,omitempty" yaml:"created,omitempty"`
	Updated    string   `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// Section is one markdown section of the document body. Text carries the
// section's own prose, Items any top-level list entries, and Children the
// third-level headings nested under it.
type Section struct {
	Text     string              `json:"text,omitempty"`
	Items    []string            `json:"items,omitempty"`
	Children map[string]*Section `json:"children,omitempty"`
}

// Requirement is a single functional requirement entry, e.g. FR-1.
type Requirement struct {
	ID                 string   `json:"id"`
	Description        string   `json:"description"`
	ValidationCriteria []string `json:"validation_criteria"`
}

// DeterministicTest is a specification-declared input/expected pair used
// to pin exact expected behavior.
type DeterministicTest struct {
	ID       string `json:"id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// StructuralFault records a non-fatal irregularity found during parsing,
// such as an undecodable deterministic-test block. Gates report these as
// violations instead of the parser aborting.
type StructuralFault struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// Specification is the parsed representation of one spec document.
// Once produced it is treated as immutable: gates and analyzers never
// mutate it.
type Specification struct {
	Metadata           *Metadata           `json:"metadata"`
	Sections           map[string]*Section `json:"sections"`
	Requirements       []Requirement       `json:"functional_requirements"`
	AcceptanceCriteria []string            `json:"acceptance_criteria"`
	DeterministicTests []DeterministicTest `json:"deterministic_tests"`
	Faults             []StructuralFault   `json:"faults,omitempty"`
	Raw                string              `json:"-"`
}

// Section returns the named top-level section, or nil.
func (s *Specification) Section(key string) *Section {
	if s.Sections == nil {
		return nil
	}
	return s.Sections[key]
}

// HasFault reports whether a structural fault with the given code was
// recorded during parsing.
func (s *Specification) HasFault(code string) bool {
	for _, f := range s.Faults {
		if f.Code == code {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the section carries no content at all.
func (sec *Section) IsEmpty() bool {
	if sec == nil {
		return true
	}
	return sec.Text == "" && len(sec.Items) == 0 && len(sec.Children) == 0
}
