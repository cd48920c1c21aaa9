// Package filter prunes pattern mappings before they are scored.
package filter

import (
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/japaniel/patternminer/pkg/pattern"
)

// Filter removes patterns from a single mapping. Running a filter twice must
// leave the mapping as after the first run.
type Filter interface {
	Name() string
	Filter(m *pattern.Mapping) int
}

// Pipeline applies filters in registration order across all mappings.
type Pipeline struct {
	filters []Filter
	Log     logrus.FieldLogger
}

// NewPipeline returns a pipeline running filters in the given order.
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters, Log: logrus.StandardLogger()}
}

// Register appends a filter.
func (p *Pipeline) Register(f Filter) { p.filters = append(p.filters, f) }

// Names lists the registered filters in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.filters))
	for i, f := range p.filters {
		names[i] = f.Name()
	}
	return names
}

// Run applies every filter to every mapping and returns the number of
// patterns removed per filter.
func (p *Pipeline) Run(mappings []*pattern.Mapping) map[string]int {
	removed := make(map[string]int, len(p.filters))
	for _, f := range p.filters {
		for _, m := range mappings {
			removed[f.Name()] += f.Filter(m)
		}
		if p.Log != nil {
			p.Log.WithFields(logrus.Fields{"filter": f.Name(), "removed": removed[f.Name()]}).Info("Filter applied")
		}
	}
	return removed
}

// MinOccurrence drops patterns seen in fewer than Min sentences.
type MinOccurrence struct{ Min int }

func (MinOccurrence) Name() string { return "min-occurrence" }

func (f MinOccurrence) Filter(m *pattern.Mapping) int {
	return m.Retain(func(p *pattern.Pattern) bool { return p.Occurrences >= f.Min })
}

// Blacklist drops patterns containing any of Terms as a whole token.
// Comparison ignores case.
type Blacklist struct{ Terms []string }

func (Blacklist) Name() string { return "blacklist" }

func (f Blacklist) Filter(m *pattern.Mapping) int {
	if len(f.Terms) == 0 {
		return 0
	}
	banned := make(map[string]struct{}, len(f.Terms))
	for _, t := range f.Terms {
		banned[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return m.Retain(func(p *pattern.Pattern) bool {
		for _, tok := range strings.Fields(p.WithoutVariables()) {
			if _, ok := banned[strings.ToLower(tok)]; ok {
				return false
			}
		}
		return true
	})
}

// TokenLength keeps patterns whose literal text has between Min and Max
// tokens. Max <= 0 means unbounded.
type TokenLength struct{ Min, Max int }

func (TokenLength) Name() string { return "token-length" }

func (f TokenLength) Filter(m *pattern.Mapping) int {
	return m.Retain(func(p *pattern.Pattern) bool {
		n := len(strings.Fields(p.WithoutVariables()))
		return n >= f.Min && (f.Max <= 0 || n <= f.Max)
	})
}

// NonEmpty drops patterns with no literal text or only punctuation.
type NonEmpty struct{}

func (NonEmpty) Name() string { return "non-empty" }

func (NonEmpty) Filter(m *pattern.Mapping) int {
	return m.Retain(func(p *pattern.Pattern) bool {
		return strings.IndexFunc(p.WithoutVariables(), isWordRune) >= 0
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
