package confidence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/japaniel/patternminer/pkg/align"
	"github.com/japaniel/patternminer/pkg/nlp"
	"github.com/japaniel/patternminer/pkg/pattern"
)

// Sampler finds sentences containing an exact phrase.
type Sampler interface {
	ExactMatchSentences(ctx context.Context, phrase string, max int) ([]string, error)
}

// State is the progress of scoring one pattern.
type State int

const (
	NotStarted State = iota
	SamplingSentences
	Aligning
	Scoring
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case SamplingSentences:
		return "SamplingSentences"
	case Aligning:
		return "Aligning"
	case Scoring:
		return "Scoring"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TypicityConfig holds what every Typicity instance shares.
type TypicityConfig struct {
	Sampler      Sampler
	NewAnnotator nlp.AnnotatorFactory
	Types        *align.TypeMapper
	// MaxSamples is the maximum number of sentences sampled per pattern.
	MaxSamples int
	Log        logrus.FieldLogger
	// OnSample, if set, is called after every sample with whether it was skipped.
	OnSample func(skipped bool)
}

// Typicity measures how often the entities next to a pattern's occurrences
// have the relation's domain and range types. It creates its annotator on
// first use.
type Typicity struct {
	cfg       TypicityConfig
	aligner   align.Aligner
	annotator nlp.EntityAnnotator
}

// NewTypicity returns a Factory producing Typicity measures.
func NewTypicity(cfg TypicityConfig) Factory {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return func() (Measure, error) {
		if cfg.Sampler == nil || cfg.NewAnnotator == nil {
			return nil, errors.New("typicity needs a sampler and an annotator")
		}
		if cfg.MaxSamples <= 0 {
			return nil, fmt.Errorf("typicity: max samples must be positive, got %d", cfg.MaxSamples)
		}
		return &Typicity{cfg: cfg, aligner: align.Aligner{Types: cfg.Types}}, nil
	}
}

func (t *Typicity) Name() string { return "typicity" }

// Measure implements Measure.
func (t *Typicity) Measure(ctx context.Context, m *pattern.Mapping) error {
	if t.annotator == nil {
		a, err := t.cfg.NewAnnotator()
		if err != nil {
			return fmt.Errorf("create annotator: %w", err)
		}
		t.annotator = a
	}
	start := time.Now()
	for _, p := range m.Patterns {
		if !p.UseForEvaluation {
			continue
		}
		t.score(ctx, m.Relation, p)
	}
	t.cfg.Log.WithFields(logrus.Fields{
		"relation": m.Relation.URI,
		"elapsed":  time.Since(start),
	}).Info("Typicity measured")
	return nil
}

type task struct {
	log   logrus.FieldLogger
	state State
}

func (t *task) to(s State) {
	t.log.WithFields(logrus.Fields{"from": t.state, "to": s}).Debug("Typicity state")
	t.state = s
}

func (t *Typicity) score(ctx context.Context, rel pattern.Relation, p *pattern.Pattern) {
	tk := &task{log: t.cfg.Log.WithFields(logrus.Fields{"relation": rel.URI, "pattern": p.Text})}
	phrase := p.WithoutVariables()

	tk.to(SamplingSentences)
	sentences, err := t.cfg.Sampler.ExactMatchSentences(ctx, phrase, t.cfg.MaxSamples)
	if err != nil {
		tk.log.WithError(err).Warn("Sampling sentences failed")
		p.SetTypicity(0)
		tk.to(Done)
		return
	}
	if len(sentences) > t.cfg.MaxSamples {
		sentences = sentences[:t.cfg.MaxSamples]
	}

	var correctDomain, correctRange float64
	for _, sentence := range sentences {
		tk.to(Aligning)
		ctxs, err := t.align(sentence, phrase)
		if t.cfg.OnSample != nil {
			t.cfg.OnSample(err != nil)
		}
		if err != nil {
			tk.log.WithError(err).Debug("Sample skipped")
			continue
		}
		left, right := ctxs.Left, ctxs.Right
		near, far := rel.Domain, rel.Range
		if !p.DomainFirst {
			near, far = far, near
		}
		leftScore := inverseDistance(left, near)
		rightScore := inverseDistance(right, far)
		if p.DomainFirst {
			correctDomain += leftScore
			correctRange += rightScore
		} else {
			correctRange += leftScore
			correctDomain += rightScore
		}
	}

	tk.to(Scoring)
	p.SetTypicity(Typicality(correctDomain, correctRange, len(sentences)))
	tk.to(Done)
}

func (t *Typicity) align(sentence, phrase string) (*align.SentenceContext, error) {
	tagged, err := t.annotator.Annotate(align.ReplaceBrackets(sentence))
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	if tagged == "" {
		return nil, errors.New("annotator returned no tokens")
	}
	return t.aligner.Align(tagged, sentence, phrase)
}

func inverseDistance(c *align.Context, typeURI string) float64 {
	if typeURI == "" || !c.HasSuitableEntity(typeURI) {
		return 0
	}
	return 1 / float64(c.SuitableEntityDistance(typeURI))
}

// Typicality combines the accumulated domain and range scores of samples
// sentences. It is 0 when there are no samples.
func Typicality(correctDomain, correctRange float64, samples int) float64 {
	if samples == 0 {
		return 0
	}
	n := float64(samples)
	v := (correctDomain/n + correctRange/n) / 2
	if math.IsNaN(v) {
		return 0
	}
	return v * math.Log2(n+1)
}
