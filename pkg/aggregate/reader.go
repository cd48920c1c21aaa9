package aggregate

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/japaniel/patternminer/pkg/pattern"
	"github.com/japaniel/patternminer/pkg/search"
)

// maxLineSize bounds a single raw-hit line.
const maxLineSize = 1024 * 1024

// ReadHits loads every hit file in dir. Malformed lines are logged with their
// content and skipped; the number skipped is returned alongside the hits.
func ReadHits(fs afero.Fs, dir string, in *Interner, log logrus.FieldLogger) ([]pattern.RawHit, int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	files, err := search.HitFiles(fs, dir)
	if err != nil {
		return nil, 0, err
	}
	var (
		hits      []pattern.RawHit
		malformed int
	)
	for _, name := range files {
		f, err := fs.Open(name)
		if err != nil {
			return nil, malformed, fmt.Errorf("open %s: %w", name, err)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			hit, err := pattern.ParseHit(line, in.Intern)
			if err != nil {
				malformed++
				log.WithError(err).WithFields(logrus.Fields{
					"file": name,
					"line": lineNo,
				}).Warnf("Skipping malformed hit %q", line)
				continue
			}
			hits = append(hits, hit)
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, malformed, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return hits, malformed, nil
}

// SortHits orders hits by relation, then pattern text, then sentence id.
func SortHits(hits []pattern.RawHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		return a.SentenceID < b.SentenceID
	})
}
