package pattern

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Placeholders marking where the domain and range entities sat in a pattern.
const (
	DomainVar = "?D?"
	RangeVar  = "?R?"
)

// learnedFromSep joins the two surface forms of a learned-from pair.
const learnedFromSep = "-;-"

// Relation is an RDF property together with its declared domain and range types.
type Relation struct {
	URI    string `json:"uri" yaml:"uri"`
	Domain string `json:"domain" yaml:"domain"`
	Range  string `json:"range" yaml:"range"`
}

// LocalName returns the last path or fragment segment of a URI
// (e.g. "Person" for "http://dbpedia.org/ontology/Person").
func LocalName(uri string) string {
	if i := strings.LastIndexAny(uri, "/#"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	return uri
}

// Seed is a piece of background knowledge: surface forms of a subject and an
// object known to be connected by Relation.
type Seed struct {
	Relation string   `yaml:"relation"`
	Subject  []string `yaml:"subject"`
	Object   []string `yaml:"object"`
}

// Pattern is a deduplicated literal pattern bound to a single relation.
type Pattern struct {
	Text        string `json:"text"`
	Relation    string `json:"relation"`
	DomainFirst bool   `json:"domainFirst"`
	Occurrences int    `json:"occurrences"`
	// FoundIn holds the sentence ids the pattern was seen in.
	FoundIn     map[int64]struct{} `json:"-"`
	LearnedFrom map[string]int     `json:"learnedFrom"`

	UseForEvaluation bool `json:"useForEvaluation"`

	Typicity    float64 `json:"typicity"`
	Support     float64 `json:"support"`
	Specificity float64 `json:"specificity"`
	Confidence  float64 `json:"confidence"`

	POSTags string `json:"posTags,omitempty"`
}

// Normalize puts pattern text in NFC form with single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// StripVariables removes the entity placeholders from text.
func StripVariables(text string) string {
	text = strings.ReplaceAll(text, DomainVar, "")
	text = strings.ReplaceAll(text, RangeVar, "")
	return strings.Join(strings.Fields(text), " ")
}

// New creates a pattern for relation from its first sighting.
func New(relation, text string) *Pattern {
	text = Normalize(text)
	return &Pattern{
		Text:             text,
		Relation:         relation,
		DomainFirst:      strings.HasPrefix(text, DomainVar),
		FoundIn:          make(map[int64]struct{}),
		LearnedFrom:      make(map[string]int),
		UseForEvaluation: true,
	}
}

// WithoutVariables returns the literal text used for phrase searches.
func (p *Pattern) WithoutVariables() string {
	return StripVariables(p.Text)
}

// Observe records a sighting of the pattern in sentenceID, learned from the
// given surface forms. A sentence already recorded is ignored so alternate
// spellings of the same entities do not inflate the count. It reports whether
// the sighting was counted.
func (p *Pattern) Observe(sentenceID int64, first, second string) bool {
	if _, seen := p.FoundIn[sentenceID]; seen {
		return false
	}
	p.FoundIn[sentenceID] = struct{}{}
	p.Occurrences++
	p.LearnedFrom[first+learnedFromSep+second]++
	return true
}

// Sentences returns the ids the pattern was found in, ascending.
func (p *Pattern) Sentences() []int64 {
	ids := make([]int64, 0, len(p.FoundIn))
	for id := range p.FoundIn {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetTypicity, SetSupport, SetSpecificity and SetConfidence store a score,
// flattening NaN and infinities to zero.
func (p *Pattern) SetTypicity(v float64)    { p.Typicity = finite(v) }
func (p *Pattern) SetSupport(v float64)     { p.Support = finite(v) }
func (p *Pattern) SetSpecificity(v float64) { p.Specificity = finite(v) }
func (p *Pattern) SetConfidence(v float64)  { p.Confidence = finite(v) }

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
