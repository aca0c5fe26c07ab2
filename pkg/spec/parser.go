package spec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specdrive/specdrive/pkg/utils"
)

// fieldAliases maps legacy front-matter field names to canonical names.
// Consulted once per parse, before decoding into Metadata.
var fieldAliases = map[string]string{
	"maturity_level":  "maturity",
	"maturity-level":  "maturity",
	"spec_id":         "id",
	"feature_name":    "name",
	"format_version":  "version",
	"spec_version":    "version",
	"type":            "kind",
	"complexity_tier": "complexity",
}

var (
	requirementIDRegex  = regexp.MustCompile(`^(FR-\d+)\s*[:.)-]?\s*(.*)$`)
	requirementKeyRegex = regexp.MustCompile(`^fr-(\d+)[:.]?-?(.*)$`)
	fenceRegex          = regexp.MustCompile("^```(\\S*)")
	nonSlugRegex        = regexp.MustCompile(`[^a-z0-9]+`)
)

// Parse turns raw specification text into a normalized Specification.
// It fails only for malformed front-matter syntax; every other
// irregularity degrades to absent or empty fields so the gates can
// report them as violations instead of the parse aborting.
func Parse(text string) (*Specification, error) {
	s := &Specification{
		Sections: map[string]*Section{},
		Raw:      text,
	}

	front, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, err
	}

	if front != "" {
		meta, err := decodeFrontMatter(front)
		if err != nil {
			return nil, err
		}
		s.Metadata = meta
	}

	blocks := parseSections(body, s.Sections)

	s.Requirements = parseRequirements(s.Section("functional-requirements"))

	if sec := firstNonEmpty(s, "acceptance-criteria", "acceptance-tests"); sec != nil {
		s.AcceptanceCriteria = append(s.AcceptanceCriteria, sec.Items...)
	}

	s.DeterministicTests, s.Faults = decodeDeterministicTests(blocks["deterministic-tests"], s.Faults)

	return s, nil
}

// splitFrontMatter extracts the delimited front-matter block. The block
// may open the document or follow a single leading title line. A missing
// block is not an error; an unterminated one is.
func splitFrontMatter(text string) (front, body string, err error) {
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	// The front matter may sit below a leading "# Title" line.
	if i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "# ") {
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j < len(lines) && strings.TrimSpace(lines[j]) == "---" {
			i = j
		}
	}
	if i >= len(lines) || strings.TrimSpace(lines[i]) != "---" {
		return "", text, nil
	}
	for j := i + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "---" {
			front = strings.Join(lines[i+1:j], "\n")
			body = strings.Join(lines[j+1:], "\n")
			return front, body, nil
		}
	}
	return "", "", utils.NewParseError("unterminated front matter block", nil)
}

// decodeFrontMatter decodes the YAML front matter into Metadata after
// applying the legacy field alias table.
func decodeFrontMatter(front string) (*Metadata, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return nil, utils.NewParseError("malformed front matter", err)
	}

	fields := map[string]any{}
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := fieldAliases[key]; ok {
			// A legacy name never overrides the canonical field.
			if _, exists := fields[canonical]; !exists {
				fields[canonical] = v
			}
			continue
		}
		fields[key] = v
	}

	meta := &Metadata{
		Version:    asString(fields["version"]),
		Kind:       asString(fields["kind"]),
		ID:         asString(fields["id"]),
		Name:       asString(fields["name"]),
		Complexity: strings.ToUpper(asString(fields["complexity"])),
		Maturity:   asInt(fields["maturity"]),
		Owner:      asString(fields["owner"]),
		Created:    asString(fields["created"]),
		Updated:    asString(fields["updated"]),
	}
	if tags, ok := fields["tags"].([]any); ok {
		for _, t := range tags {
			meta.Tags = append(meta.Tags, asString(t))
		}
	}
	if meta.ID == "" && meta.Name != "" {
		meta.ID = DeriveID(meta.Name)
	}
	return meta, nil
}

// DeriveID deterministically derives a spec id from its name.
func DeriveID(name string) string {
	slug := nonSlugRegex.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return ""
	}
	return "feat-" + slug
}

// NormalizeHeading lowercases a heading and collapses whitespace runs to
// single dashes, producing the section map key.
func NormalizeHeading(heading string) string {
	h := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(heading), ":"))
	h = strings.ToLower(h)
	return strings.Join(strings.Fields(h), "-")
}

// parseSections splits the markdown body into the section map and returns
// the fenced code blocks found under each top-level section, keyed by the
// normalized section heading.
func parseSections(body string, sections map[string]*Section) map[string][]fencedBlock {
	blocks := map[string][]fencedBlock{}

	var topKey string
	var current *Section
	var inFence bool
	var fenceLang string
	var fenceLines []string
	fenceStart := 0

	flushFence := func() {
		content := strings.Join(fenceLines, "\n")
		if topKey != "" {
			blocks[topKey] = append(blocks[topKey], fencedBlock{
				Lang:    fenceLang,
				Content: content,
				Line:    fenceStart,
			})
		}
		// Fenced content also counts as section content, so a section
		// holding only code blocks is not reported as empty.
		if current != nil && content != "" {
			if current.Text != "" {
				current.Text += "\n"
			}
			current.Text += content
		}
		fenceLines = nil
	}

	for n, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
				flushFence()
				continue
			}
			fenceLines = append(fenceLines, line)
			continue
		}
		if m := fenceRegex.FindStringSubmatch(trimmed); m != nil {
			inFence = true
			fenceLang = strings.ToLower(m[1])
			fenceStart = n + 1
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "### "):
			if topKey == "" {
				continue
			}
			parent := sections[topKey]
			if parent.Children == nil {
				parent.Children = map[string]*Section{}
			}
			child := &Section{}
			parent.Children[NormalizeHeading(trimmed[4:])] = child
			current = child
		case strings.HasPrefix(trimmed, "## "):
			topKey = NormalizeHeading(trimmed[3:])
			sec := &Section{}
			sections[topKey] = sec
			current = sec
		default:
			if current == nil {
				continue
			}
			if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
				current.Items = append(current.Items, strings.TrimSpace(trimmed[2:]))
			} else if trimmed != "" {
				if current.Text != "" {
					current.Text += "\n"
				}
				current.Text += trimmed
			}
		}
	}
	if inFence {
		// Unterminated fence: keep what we have rather than dropping it.
		flushFence()
	}
	return blocks
}

type fencedBlock struct {
	Lang    string
	Content string
	Line    int
}

// parseRequirements extracts FR entries from the functional-requirements
// section. Requirements appear either as list items or as nested
// headings; validation criteria are the list items captured beneath each
// requirement's own heading or label.
func parseRequirements(sec *Section) []Requirement {
	if sec == nil {
		return nil
	}

	var reqs []Requirement
	appendReq := func(id, desc string) *Requirement {
		reqs = append(reqs, Requirement{ID: id, Description: strings.TrimSpace(desc)})
		return &reqs[len(reqs)-1]
	}

	// Heading form: each requirement a child section with criteria items.
	for key, child := range sec.Children {
		if m := requirementKeyRegex.FindStringSubmatch(key); m != nil {
			req := appendReq("FR-"+m[1], keyToHeading(m[2]))
			req.ValidationCriteria = append(req.ValidationCriteria, child.Items...)
		}
	}

	// List form: "- FR-1: description" followed by indented criteria, which
	// the section parser folds into the same item list.
	var open *Requirement
	for _, item := range sec.Items {
		cleaned := strings.TrimPrefix(strings.TrimPrefix(item, "**"), "__")
		if m := requirementIDRegex.FindStringSubmatch(cleaned); m != nil {
			desc := strings.TrimLeft(m[2], "*_ :")
			open = appendReq(m[1], desc)
			continue
		}
		if open == nil {
			continue
		}
		lower := strings.ToLower(item)
		if strings.HasPrefix(lower, "validation criteria") {
			continue
		}
		open.ValidationCriteria = append(open.ValidationCriteria, item)
	}

	sortRequirements(reqs)
	return reqs
}

func keyToHeading(key string) string {
	return strings.TrimSpace(strings.ReplaceAll(key, "-", " "))
}

// sortRequirements orders requirements by numeric suffix so the two
// recognized layouts produce the same ordering.
func sortRequirements(reqs []Requirement) {
	for i := 1; i < len(reqs); i++ {
		for j := i; j > 0 && requirementNumber(reqs[j-1].ID) > requirementNumber(reqs[j].ID); j-- {
			reqs[j-1], reqs[j] = reqs[j], reqs[j-1]
		}
	}
}

// RequirementNumber extracts the numeric suffix of an FR/AC identifier,
// or -1 when absent. Used for traceability correlation.
func RequirementNumber(id string) int {
	return requirementNumber(id)
}

func requirementNumber(id string) int {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(id[idx+1:]))
	if err != nil {
		return -1
	}
	return n
}

// decodeDeterministicTests decodes each fenced yaml/json block into a
// DeterministicTest. A single malformed block is dropped with a recorded
// structural fault and does not abort the remaining blocks.
func decodeDeterministicTests(blocks []fencedBlock, faults []StructuralFault) ([]DeterministicTest, []StructuralFault) {
	var tests []DeterministicTest
	for i, b := range blocks {
		if b.Lang != "" && b.Lang != "yaml" && b.Lang != "yml" && b.Lang != "json" {
			continue
		}
		raw := map[string]any{}
		if err := yaml.Unmarshal([]byte(b.Content), &raw); err != nil {
			faults = append(faults, StructuralFault{
				Code:     FaultDeterministicTest,
				Message:  fmt.Sprintf("deterministic test block %d failed to decode: %v", i+1, err),
				Location: fmt.Sprintf("deterministic-tests block %d", i+1),
			})
			continue
		}
		expected := asString(raw["expected"])
		if expected == "" {
			// "output" is a legacy alias for "expected".
			expected = asString(raw["output"])
		}
		id := asString(raw["id"])
		if id == "" {
			id = fmt.Sprintf("DT-%d", i+1)
		}
		tests = append(tests, DeterministicTest{
			ID:       id,
			Input:    asString(raw["input"]),
			Expected: expected,
		})
	}
	return tests, faults
}

// FaultDeterministicTest marks a deterministic-test block that failed to
// decode structurally. G4 treats such a block as absent.
const FaultDeterministicTest = "DT_DECODE"

func firstNonEmpty(s *Specification, keys ...string) *Section {
	for _, k := range keys {
		if sec := s.Section(k); !sec.IsEmpty() {
			return sec
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
