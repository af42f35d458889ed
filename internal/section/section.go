// Package section parses note sections (a header line followed by
// "Category: text" lines) and resolves shorthand references between them.
package section

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Reserved categories. Lines with these labels reference other sections'
// headers and are kept in the related map.
const (
	Ancestors = "Ancestors"
	Children  = "Children"
	Related   = "Related"
)

// ReservedCategories lists the categories routed to the related map.
var ReservedCategories = []string{Ancestors, Children, Related}

// IsRelatedCategory reports whether category is one of the reserved names.
func IsRelatedCategory(category string) bool {
	switch category {
	case Ancestors, Children, Related:
		return true
	}
	return false
}

// Section is one topic in the notes (e.g. "Identity Matrix"). It is immutable:
// accessors return copies and Reconcile builds a new value.
type Section struct {
	header      string
	information map[string][]string
	related     map[string][]string
}

// New builds a Section from already categorized data. Every related key must
// be reserved and no information key may be.
func New(header string, information, related map[string][]string) (*Section, error) {
	if header == "" {
		return nil, ErrEmptyInput
	}
	for k := range information {
		if IsRelatedCategory(k) {
			return nil, fmt.Errorf("category %q belongs in related", k)
		}
	}
	for k := range related {
		if !IsRelatedCategory(k) {
			return nil, fmt.Errorf("category %q is not a related category", k)
		}
	}
	return &Section{
		header:      header,
		information: cloneCategories(information),
		related:     cloneCategories(related),
	}, nil
}

func (s *Section) Header() string { return s.header }

// Information returns a copy of the non-reserved categories.
func (s *Section) Information() map[string][]string { return cloneCategories(s.information) }

// Related returns a copy of the reserved categories.
func (s *Section) Related() map[string][]string { return cloneCategories(s.related) }

// References returns every related value in category order, then line order.
func (s *Section) References() []string {
	var refs []string
	for _, k := range slices.Sorted(maps.Keys(s.related)) {
		refs = append(refs, s.related[k]...)
	}
	return refs
}

// Parser turns text blocks into Sections using an injected Classifier.
type Parser struct {
	classifier Classifier
}

// NewParser returns a Parser. A nil classifier selects ColonClassifier.
func NewParser(c Classifier) *Parser {
	if c == nil {
		c = ColonClassifier{}
	}
	return &Parser{classifier: c}
}

var defaultParser = NewParser(nil)

// Parse parses a block with the default "Category: text" classifier.
func Parse(text string) (*Section, error) {
	return defaultParser.Parse(text)
}

// Parse splits text on '\n'. The first line is the header, taken verbatim;
// every other line is classified and appended to its category in order.
func (p *Parser) Parse(text string) (*Section, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	lines := strings.Split(text, "\n")
	header := lines[0]
	if header == "" {
		return nil, ErrEmptyInput
	}

	information := make(map[string][]string)
	related := make(map[string][]string)
	for i, line := range lines[1:] {
		category, body, err := p.classifier.Classify(line)
		if err != nil {
			return nil, &LineError{Line: i + 2, Text: line, Err: err}
		}
		if IsRelatedCategory(category) {
			related[category] = append(related[category], body)
		} else {
			information[category] = append(information[category], body)
		}
	}

	return &Section{header: header, information: information, related: related}, nil
}

// String renders the header, a newline, then one line per related category.
// A section without relations renders as its header and a trailing newline.
// Information is not rendered.
func (s *Section) String() string {
	lines := make([]string, 0, len(s.related))
	for _, k := range slices.Sorted(maps.Keys(s.related)) {
		quoted := make([]string, len(s.related[k]))
		for i, v := range s.related[k] {
			quoted[i] = strconv.Quote(v)
		}
		lines = append(lines, k+": ["+strings.Join(quoted, ", ")+"]")
	}
	return s.header + "\n" + strings.Join(lines, "\n")
}

// record is the serialized shape shared by JSON and YAML.
type record struct {
	Header      string              `json:"header" yaml:"header"`
	Information map[string][]string `json:"information" yaml:"information"`
	Related     map[string][]string `json:"related" yaml:"related"`
}

func (s *Section) record() record {
	r := record{
		Header:      s.header,
		Information: s.information,
		Related:     s.related,
	}
	if r.Information == nil {
		r.Information = map[string][]string{}
	}
	if r.Related == nil {
		r.Related = map[string][]string{}
	}
	return r
}

func (s *Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.record())
}

func (s *Section) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	parsed, err := New(r.Header, r.Information, r.Related)
	if err != nil {
		return fmt.Errorf("decode section: %w", err)
	}
	*s = *parsed
	return nil
}

func (s *Section) MarshalYAML() (any, error) {
	return s.record(), nil
}

func cloneCategories(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
