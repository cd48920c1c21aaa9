// Package confidence scores the patterns of each relation and runs the
// registered measures in parallel over disjoint sets of mappings.
package confidence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/japaniel/patternminer/pkg/pattern"
	"github.com/japaniel/patternminer/pkg/worker"
)

// Measure scores every pattern of a mapping. Instances are owned by a single
// worker and need not be safe for concurrent use.
type Measure interface {
	Name() string
	Measure(ctx context.Context, m *pattern.Mapping) error
}

// Factory creates a fresh Measure for one worker.
type Factory func() (Measure, error)

// Orchestrator runs the registered measures over pattern mappings using a
// fixed number of workers. Each worker owns a disjoint partition of the
// mappings and its own measure instances.
type Orchestrator struct {
	workers   int
	factories []Factory
	log       logrus.FieldLogger
}

// NewOrchestrator returns an Orchestrator with the given worker count.
func NewOrchestrator(workers int, log logrus.FieldLogger) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{workers: workers, log: log}
}

// Register appends a measure. Measures run in registration order.
func (o *Orchestrator) Register(f Factory) { o.factories = append(o.factories, f) }

// Run scores all mappings and returns once every worker has finished its
// partition. A measure failing on one mapping is logged and the worker moves
// on; only failures to create measures are returned.
func (o *Orchestrator) Run(ctx context.Context, mappings []*pattern.Mapping) error {
	if len(mappings) == 0 || len(o.factories) == 0 {
		return nil
	}
	n := min(o.workers, len(mappings))
	partitions := make([][]*pattern.Mapping, n)
	for i, m := range mappings {
		partitions[i%n] = append(partitions[i%n], m)
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	pool := worker.NewPool(n, n)
	pool.OnError = func(err error) {
		o.log.WithError(err).Error("Scoring worker failed")
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	pool.Start(ctx)
	for i, part := range partitions {
		id, part := i, part
		if err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			return o.runPartition(ctx, id, part)
		}); err != nil {
			pool.Close()
			return err
		}
	}
	pool.Close()
	return firstErr
}

func (o *Orchestrator) runPartition(ctx context.Context, id int, part []*pattern.Mapping) error {
	measures := make([]Measure, 0, len(o.factories))
	for _, f := range o.factories {
		m, err := f()
		if err != nil {
			return fmt.Errorf("worker %d: create measure: %w", id, err)
		}
		measures = append(measures, m)
	}
	log := o.log.WithField("worker", id)
	for _, measure := range measures {
		start := time.Now()
		log.WithField("measure", measure.Name()).Info("Measure started")
		for _, m := range part {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := measure.Measure(ctx, m); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"measure":  measure.Name(),
					"relation": m.Relation.URI,
				}).Warn("Measure failed for mapping")
			}
		}
		log.WithFields(logrus.Fields{
			"measure": measure.Name(),
			"elapsed": time.Since(start),
		}).Info("Measure finished")
	}
	return nil
}
