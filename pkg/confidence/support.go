package confidence

import (
	"context"
	"math"

	"github.com/japaniel/patternminer/pkg/pattern"
)

// Support rewards patterns learned from many distinct entity pairs and seen
// in many sentences.
type Support struct{}

// NewSupport returns a Factory producing Support measures.
func NewSupport() Factory { return func() (Measure, error) { return Support{}, nil } }

func (Support) Name() string { return "support" }

func (Support) Measure(_ context.Context, m *pattern.Mapping) error {
	for _, p := range m.Patterns {
		p.SetSupport(math.Log2(float64(len(p.LearnedFrom))+1) * math.Log2(float64(p.Occurrences)+1))
	}
	return nil
}

// SpecificityIndex counts how many mappings contain each pattern text. It is
// built once before scoring and only read afterwards.
type SpecificityIndex struct {
	mappings int
	counts   map[string]int
}

// NewSpecificityIndex indexes mappings.
func NewSpecificityIndex(mappings []*pattern.Mapping) *SpecificityIndex {
	idx := &SpecificityIndex{mappings: len(mappings), counts: make(map[string]int)}
	for _, m := range mappings {
		for _, p := range m.Patterns {
			idx.counts[p.Text]++
		}
	}
	return idx
}

// Specificity returns log2(#mappings / #mappings containing text), 0 for
// texts that were not indexed.
func (idx *SpecificityIndex) Specificity(text string) float64 {
	n := idx.counts[text]
	if n == 0 {
		return 0
	}
	return math.Log2(float64(idx.mappings) / float64(n))
}

// Specificity penalizes patterns shared by many relations.
type Specificity struct {
	Index *SpecificityIndex
}

// NewSpecificity returns a Factory producing Specificity measures over idx.
func NewSpecificity(idx *SpecificityIndex) Factory {
	return func() (Measure, error) { return Specificity{Index: idx}, nil }
}

func (Specificity) Name() string { return "specificity" }

func (s Specificity) Measure(_ context.Context, m *pattern.Mapping) error {
	for _, p := range m.Patterns {
		p.SetSpecificity(s.Index.Specificity(p.Text))
	}
	return nil
}

// Combined folds the other scores into the pattern confidence. Register it
// after the measures it reads.
type Combined struct{}

// NewCombined returns a Factory producing Combined measures.
func NewCombined() Factory { return func() (Measure, error) { return Combined{}, nil } }

func (Combined) Name() string { return "confidence" }

func (Combined) Measure(_ context.Context, m *pattern.Mapping) error {
	for _, p := range m.Patterns {
		p.SetConfidence(p.Typicity * p.Support * (1 + p.Specificity))
	}
	return nil
}
