// Package search runs the seed entity pairs of every relation against the
// sentence corpus and writes one raw hit per pattern occurrence.
package search

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/japaniel/patternminer/pkg/corpus"
	"github.com/japaniel/patternminer/pkg/nlp"
	"github.com/japaniel/patternminer/pkg/pattern"
	"github.com/japaniel/patternminer/pkg/worker"
)

// HitFileExt is the extension of raw-hit files.
const HitFileExt = ".sr"

// Backend finds corpus sentences mentioning both surface forms.
type Backend interface {
	SentencesWithBoth(ctx context.Context, first, second string, max int) ([]corpus.Sentence, error)
}

// Config controls a search run.
type Config struct {
	Workers int
	// Dir receives one hit file per worker.
	Dir string
	// MaxSentencesPerPair caps the sentences fetched per label pair, <= 0 is unlimited.
	MaxSentencesPerPair int
	// MaxPatternTokens bounds the literal text between the two labels.
	MaxPatternTokens int
	// Segmenter, if set, tokenizes seed labels like the corpus sentences.
	Segmenter nlp.Segmenter
}

// Report summarizes a finished run.
type Report struct {
	RunID    string
	Seeds    int
	Hits     int64
	Failures int64
	Elapsed  time.Duration
	Files    []string
}

// Searcher fans seeds out over a fixed number of workers.
type Searcher struct {
	backend Backend
	fs      afero.Fs
	cfg     Config
	log     logrus.FieldLogger
}

// New creates a Searcher. A nil logger uses the logrus standard logger.
func New(backend Backend, fs afero.Fs, cfg Config, log logrus.FieldLogger) *Searcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxPatternTokens <= 0 {
		cfg.MaxPatternTokens = 10
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Searcher{backend: backend, fs: fs, cfg: cfg, log: log}
}

// Run searches all seeds and blocks until every worker has closed its file.
// Only failures to set up the output directory or to write hit files are
// returned; per-seed backend errors are logged and counted.
func (s *Searcher) Run(ctx context.Context, seeds []pattern.Seed) (*Report, error) {
	start := time.Now()
	if err := s.fs.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create hit dir: %w", err)
	}
	report := &Report{RunID: uuid.NewString(), Seeds: len(seeds)}

	n := min(s.cfg.Workers, max(len(seeds), 1))
	partitions := make([][]pattern.Seed, n)
	for i, seed := range seeds {
		partitions[i%n] = append(partitions[i%n], seed)
	}

	var (
		hits, failures int64
		mu             sync.Mutex
		firstErr       error
	)
	pool := worker.NewPool(n, n)
	pool.OnError = func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	pool.Start(ctx)

	for i, part := range partitions {
		name := filepath.Join(s.cfg.Dir, fmt.Sprintf("%s-%d%s", report.RunID, i, HitFileExt))
		report.Files = append(report.Files, name)
		part := part
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			h, f, err := s.searchPartition(ctx, name, part)
			atomic.AddInt64(&hits, h)
			atomic.AddInt64(&failures, f)
			return err
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
	}
	pool.Close()
	if err := ctx.Err(); err != nil {
		// Queued partitions may never have run.
		return nil, fmt.Errorf("search interrupted: %w", err)
	}

	report.Hits = atomic.LoadInt64(&hits)
	report.Failures = atomic.LoadInt64(&failures)
	report.Elapsed = time.Since(start)
	s.log.WithFields(logrus.Fields{
		"run":      report.RunID,
		"seeds":    report.Seeds,
		"hits":     report.Hits,
		"failures": report.Failures,
		"elapsed":  report.Elapsed,
	}).Info("Corpus search finished")
	return report, firstErr
}

func (s *Searcher) searchPartition(ctx context.Context, name string, seeds []pattern.Seed) (hits, failures int64, err error) {
	f, err := s.fs.Create(name)
	if err != nil {
		return 0, 0, fmt.Errorf("create %s: %w", name, err)
	}
	w := bufio.NewWriter(f)
	defer func() {
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush %s: %w", name, ferr)
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", name, cerr)
		}
	}()

	for _, seed := range seeds {
		found, serr := s.searchSeed(ctx, seed)
		if serr != nil {
			failures++
			s.log.WithError(serr).WithFields(logrus.Fields{
				"relation": seed.Relation,
				"subject":  seed.Subject,
				"object":   seed.Object,
			}).Warn("Seed search failed, skipping")
			continue
		}
		for _, hit := range found {
			if _, werr := w.WriteString(hit.String() + "\n"); werr != nil {
				return hits, failures, fmt.Errorf("write %s: %w", name, werr)
			}
			hits++
		}
	}
	return hits, failures, nil
}

// searchSeed returns the hits of every subject/object label combination.
// Any backend error fails the whole seed.
func (s *Searcher) searchSeed(ctx context.Context, seed pattern.Seed) ([]pattern.RawHit, error) {
	var out []pattern.RawHit
	for _, subj := range s.labels(seed.Subject) {
		for _, obj := range s.labels(seed.Object) {
			sentences, err := s.backend.SentencesWithBoth(ctx, subj, obj, s.cfg.MaxSentencesPerPair)
			if err != nil {
				return nil, err
			}
			for _, sent := range sentences {
				for _, text := range Extract(sent.Text, subj, obj, s.cfg.MaxPatternTokens) {
					hit := pattern.RawHit{
						Relation:    seed.Relation,
						Pattern:     text,
						FirstLabel:  subj,
						SecondLabel: obj,
						SentenceID:  sent.ID,
					}
					if err := hit.Validate(); err != nil {
						s.log.WithError(err).WithField("sentence", sent.ID).Debug("Dropping unencodable hit")
						continue
					}
					out = append(out, hit)
				}
			}
		}
	}
	return out, nil
}

// labels tokenizes surface forms and drops the ones that are empty or cannot
// be written to a hit line.
func (s *Searcher) labels(forms []string) []string {
	out := make([]string, 0, len(forms))
	for _, form := range forms {
		if s.cfg.Segmenter != nil {
			form = s.cfg.Segmenter.Segment(form)
		}
		form = strings.Join(strings.Fields(form), " ")
		if form == "" {
			continue
		}
		if strings.Contains(form, pattern.HitSeparator) {
			s.log.WithField("label", form).Warn("Label contains the hit separator, skipping")
			continue
		}
		out = append(out, form)
	}
	return out
}

// Extract returns the distinct patterns connecting the domain label to the
// range label in a tokenized sentence. Between 1 and maxTokens tokens must
// separate the two labels.
func Extract(sentence, domain, rng string, maxTokens int) []string {
	tokens := strings.Fields(sentence)
	d := strings.Fields(domain)
	r := strings.Fields(rng)
	if len(d) == 0 || len(r) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(text string) {
		text = pattern.Normalize(text)
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	for _, ds := range occurrences(tokens, d) {
		de := ds + len(d)
		for _, rs := range occurrences(tokens, r) {
			re := rs + len(r)
			switch {
			case rs-de >= 1 && rs-de <= maxTokens:
				add(pattern.DomainVar + " " + strings.Join(tokens[de:rs], " ") + " " + pattern.RangeVar)
			case ds-re >= 1 && ds-re <= maxTokens:
				add(pattern.RangeVar + " " + strings.Join(tokens[re:ds], " ") + " " + pattern.DomainVar)
			}
		}
	}
	return out
}

func occurrences(hay, needle []string) []int {
	var idx []int
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			idx = append(idx, i)
		}
	}
	return idx
}

// HasSerializedHits reports whether dir already holds non-empty hit files.
func HasSerializedHits(fs afero.Fs, dir string) (bool, error) {
	files, err := HitFiles(fs, dir)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		info, err := fs.Stat(f)
		if err != nil {
			return false, err
		}
		if info.Size() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// HitFiles lists the hit files in dir in lexical order.
func HitFiles(fs afero.Fs, dir string) ([]string, error) {
	files, err := afero.Glob(fs, filepath.Join(dir, "*"+HitFileExt))
	if err != nil {
		return nil, fmt.Errorf("list hit files: %w", err)
	}
	return files, nil
}
