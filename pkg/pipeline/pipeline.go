// Package pipeline wires the pattern mining stages together: corpus search,
// aggregation, filtering, POS tagging, confidence scoring and persistence.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/japaniel/patternminer/pkg/aggregate"
	"github.com/japaniel/patternminer/pkg/align"
	"github.com/japaniel/patternminer/pkg/confidence"
	"github.com/japaniel/patternminer/pkg/config"
	"github.com/japaniel/patternminer/pkg/filter"
	"github.com/japaniel/patternminer/pkg/nlp"
	"github.com/japaniel/patternminer/pkg/pattern"
	"github.com/japaniel/patternminer/pkg/search"
	"github.com/japaniel/patternminer/pkg/store"
)

// Corpus is the sentence index every stage reads from.
type Corpus interface {
	search.Backend
	confidence.Sampler
	SentenceByID(ctx context.Context, id int64) (string, error)
}

// Deps are the external resources of a run.
type Deps struct {
	Corpus Corpus
	Fs     afero.Fs
	Tagger nlp.POSTagger
	// Segmenter tokenizes seed labels the way the corpus was tokenized. Nil
	// uses the labels as given.
	Segmenter nlp.Segmenter
	// NewAnnotator creates one entity annotator per scoring worker.
	NewAnnotator nlp.AnnotatorFactory
	Types        *align.TypeMapper
	Log          logrus.FieldLogger
}

// Report summarizes a run.
type Report struct {
	Search         *search.Report
	SearchSkipped  bool
	MalformedHits  int
	Aggregate      aggregate.Stats
	Removed        map[string]int
	Mappings       int
	Patterns       int
	Tagged         int
	Files          []string
	StageDurations map[string]time.Duration
}

// Pipeline runs all stages for one configuration.
type Pipeline struct {
	cfg    *config.Config
	corpus Corpus
	fs     afero.Fs
	tagger nlp.POSTagger
	seg    nlp.Segmenter
	newAnn nlp.AnnotatorFactory
	types  *align.TypeMapper
	log    logrus.FieldLogger
}

// New validates deps and returns a Pipeline.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: nil config")
	}
	if deps.Corpus == nil || deps.Tagger == nil || deps.NewAnnotator == nil {
		return nil, fmt.Errorf("pipeline: corpus, tagger and annotator are required")
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Pipeline{
		cfg:    cfg,
		corpus: deps.Corpus,
		fs:     deps.Fs,
		tagger: deps.Tagger,
		seg:    deps.Segmenter,
		newAnn: deps.NewAnnotator,
		types:  deps.Types,
		log:    deps.Log,
	}, nil
}

func (p *Pipeline) stage(report *Report, name string, fn func() error) error {
	start := time.Now()
	p.log.WithField("stage", name).Info("Stage started")
	err := fn()
	elapsed := time.Since(start)
	report.StageDurations[name] = elapsed
	metrics.stageSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
	entry := p.log.WithFields(logrus.Fields{"stage": name, "elapsed": elapsed})
	if err != nil {
		entry.WithError(err).Error("Stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	entry.Info("Stage finished")
	return nil
}

// Run mines, scores and persists patterns for relations from seeds.
func (p *Pipeline) Run(ctx context.Context, relations []pattern.Relation, seeds []pattern.Seed) (*Report, error) {
	report := &Report{StageDurations: make(map[string]time.Duration)}
	hitsDir := p.cfg.HitsDir()

	err := p.stage(report, "search", func() error {
		if p.cfg.Search.UseSerializedHits {
			ok, err := search.HasSerializedHits(p.fs, hitsDir)
			if err != nil {
				return err
			}
			if ok {
				report.SearchSkipped = true
				p.log.WithField("dir", hitsDir).Info("Reusing serialized hits")
				return nil
			}
		}
		if err := p.clearHits(hitsDir); err != nil {
			return err
		}
		s := search.New(p.corpus, p.fs, search.Config{
			Workers:             p.cfg.Search.Workers,
			Dir:                 hitsDir,
			MaxSentencesPerPair: p.cfg.Search.MaxSentencesPerPair,
			MaxPatternTokens:    p.cfg.Search.MaxPatternTokens,
			Segmenter:           p.seg,
		}, p.log)
		sr, err := s.Run(ctx, seeds)
		if sr != nil {
			metrics.hitsWritten.Add(float64(sr.Hits))
			metrics.searchFailures.Add(float64(sr.Failures))
		}
		report.Search = sr
		return err
	})
	if err != nil {
		return report, err
	}

	var mappings []*pattern.Mapping
	err = p.stage(report, "aggregate", func() error {
		interner := aggregate.NewInterner()
		hits, malformed, err := aggregate.ReadHits(p.fs, hitsDir, interner, p.log)
		report.MalformedHits = malformed
		metrics.malformedHits.Add(float64(malformed))
		if err != nil {
			return err
		}
		aggregate.SortHits(hits)
		index := make(map[string]pattern.Relation, len(relations))
		for _, r := range relations {
			index[r.URI] = r
		}
		var stats aggregate.Stats
		mappings, stats, err = (&aggregate.Aggregator{Log: p.log}).Aggregate(hits, index)
		report.Aggregate = stats
		p.log.WithFields(logrus.Fields{
			"strings":    interner.Len(),
			"collisions": interner.Collisions(),
		}).Debug("Interned hit fields")
		return err
	})
	if err != nil {
		return report, err
	}

	_ = p.stage(report, "filter", func() error {
		report.Removed = p.filters().Run(mappings)
		return nil
	})

	_ = p.stage(report, "postag", func() error {
		report.Tagged = p.tagPatterns(ctx, mappings)
		return nil
	})

	err = p.stage(report, "score", func() error {
		return p.scorer(mappings).Run(ctx, mappings)
	})
	if err != nil {
		return report, err
	}
	for _, m := range mappings {
		report.Patterns += m.PatternCount()
	}
	report.Mappings = len(mappings)
	metrics.patternsScored.Add(float64(report.Patterns))

	err = p.stage(report, "persist", func() error {
		files, err := store.Persist(p.fs, mappings, p.cfg.MappingsDir())
		report.Files = files
		return err
	})
	return report, err
}

func (p *Pipeline) clearHits(dir string) error {
	files, err := search.HitFiles(p.fs, dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := p.fs.Remove(f); err != nil {
			return fmt.Errorf("remove stale hits: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) filters() *filter.Pipeline {
	fp := filter.NewPipeline(
		filter.NonEmpty{},
		filter.MinOccurrence{Min: p.cfg.Filter.MinOccurrence},
		filter.TokenLength{Min: p.cfg.Filter.MinTokens, Max: p.cfg.Filter.MaxTokens},
	)
	if len(p.cfg.Filter.Blacklist) > 0 {
		fp.Register(filter.Blacklist{Terms: p.cfg.Filter.Blacklist})
	}
	fp.Log = p.log
	return fp
}

func (p *Pipeline) scorer(mappings []*pattern.Mapping) *confidence.Orchestrator {
	o := confidence.NewOrchestrator(p.cfg.Scoring.Workers, p.log)
	o.Register(confidence.NewTypicity(confidence.TypicityConfig{
		Sampler:      p.corpus,
		NewAnnotator: p.newAnn,
		Types:        p.types,
		MaxSamples:   p.cfg.Scoring.MaxSamples,
		Log:          p.log,
		OnSample: func(skipped bool) {
			result := "aligned"
			if skipped {
				result = "skipped"
			}
			metrics.samples.WithLabelValues(result).Inc()
		},
	}))
	o.Register(confidence.NewSupport())
	o.Register(confidence.NewSpecificity(confidence.NewSpecificityIndex(mappings)))
	o.Register(confidence.NewCombined())
	return o
}
