package pattern

import "fmt"

// Mapping owns every pattern learned for one relation.
type Mapping struct {
	Relation Relation
	Patterns []*Pattern

	byText map[string]*Pattern
}

// NewMapping returns an empty mapping for rel.
func NewMapping(rel Relation) *Mapping {
	return &Mapping{Relation: rel, byText: make(map[string]*Pattern)}
}

// Add appends p to the mapping. Patterns of another relation and duplicate
// texts are rejected.
func (m *Mapping) Add(p *Pattern) error {
	if p.Relation != m.Relation.URI {
		return fmt.Errorf("pattern %q belongs to %s, not %s", p.Text, p.Relation, m.Relation.URI)
	}
	if _, ok := m.index()[p.Text]; ok {
		return fmt.Errorf("pattern %q already in mapping %s", p.Text, m.Relation.URI)
	}
	m.byText[p.Text] = p
	m.Patterns = append(m.Patterns, p)
	return nil
}

// Lookup returns the pattern with the given normalized text, or nil.
func (m *Mapping) Lookup(text string) *Pattern {
	return m.index()[text]
}

// Retain keeps only the patterns for which keep returns true, preserving
// order, and returns the number removed.
func (m *Mapping) Retain(keep func(*Pattern) bool) int {
	kept := m.Patterns[:0]
	removed := 0
	for _, p := range m.Patterns {
		if keep(p) {
			kept = append(kept, p)
			continue
		}
		delete(m.index(), p.Text)
		removed++
	}
	for i := len(kept); i < len(m.Patterns); i++ {
		m.Patterns[i] = nil
	}
	m.Patterns = kept
	return removed
}

// PatternCount returns the number of active patterns.
func (m *Mapping) PatternCount() int { return len(m.Patterns) }

// index lazily rebuilds the text index, e.g. for mappings decoded from disk.
func (m *Mapping) index() map[string]*Pattern {
	if m.byText == nil {
		m.byText = make(map[string]*Pattern, len(m.Patterns))
		for _, p := range m.Patterns {
			m.byText[p.Text] = p
		}
	}
	return m.byText
}
