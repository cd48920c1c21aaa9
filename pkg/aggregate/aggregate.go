// Package aggregate folds the sorted raw-hit stream into one pattern mapping
// per relation.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/japaniel/patternminer/pkg/pattern"
)

// ErrUnsorted is returned when a relation shows up again after hits of
// another relation, i.e. the input was not grouped by relation.
var ErrUnsorted = errors.New("raw hits are not sorted by relation")

// Stats describes one aggregation.
type Stats struct {
	Hits       int
	Counted    int
	Duplicates int
	Relations  int
	Patterns   int
}

// Aggregator builds pattern mappings from raw hits.
type Aggregator struct {
	Log logrus.FieldLogger
}

// Aggregate folds hits, which must be grouped by relation, into mappings in
// order of first appearance. relations supplies the domain and range of each
// relation; unknown relations get empty types.
func (a *Aggregator) Aggregate(hits []pattern.RawHit, relations map[string]pattern.Relation) ([]*pattern.Mapping, Stats, error) {
	log := a.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	var (
		stats    Stats
		mappings []*pattern.Mapping
		current  *pattern.Mapping
		done     = make(map[string]bool)
	)
	finish := func() {
		if current == nil {
			return
		}
		done[current.Relation.URI] = true
		stats.Patterns += current.PatternCount()
		log.WithFields(logrus.Fields{
			"relation": current.Relation.URI,
			"patterns": current.PatternCount(),
		}).Debug("Relation aggregated")
	}

	for _, hit := range hits {
		stats.Hits++
		if current == nil || hit.Relation != current.Relation.URI {
			if done[hit.Relation] {
				return nil, stats, fmt.Errorf("%w: %s seen again", ErrUnsorted, hit.Relation)
			}
			finish()
			rel, ok := relations[hit.Relation]
			if !ok {
				log.WithField("relation", hit.Relation).Warn("Relation has no configured domain and range")
				rel = pattern.Relation{URI: hit.Relation}
			}
			current = pattern.NewMapping(rel)
			mappings = append(mappings, current)
		}

		text := pattern.Normalize(hit.Pattern)
		p := current.Lookup(text)
		if p == nil {
			p = pattern.New(hit.Relation, text)
			if err := current.Add(p); err != nil {
				return nil, stats, err
			}
		}
		if p.Observe(hit.SentenceID, hit.FirstLabel, hit.SecondLabel) {
			stats.Counted++
		} else {
			stats.Duplicates++
		}
	}
	finish()
	stats.Relations = len(mappings)
	return mappings, stats, nil
}
