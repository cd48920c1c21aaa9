package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics contains statically-registered Prometheus metrics for the package.
var metrics = struct {
	hitsWritten    prometheus.Counter
	searchFailures prometheus.Counter
	malformedHits  prometheus.Counter
	samples        *prometheus.CounterVec
	patternsScored prometheus.Counter
	stageSeconds   *prometheus.HistogramVec
}{
	hitsWritten: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patternminer",
		Subsystem: "search",
		Name:      "hits_written_total",
		Help:      `The cumulative number of raw hits written by search workers.`,
	}),
	searchFailures: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patternminer",
		Subsystem: "search",
		Name:      "seed_failures_total",
		Help: `The cumulative number of seeds whose corpus search failed.

Failed seeds are skipped, so a rising counter means fewer patterns, not a
failed run.`,
	}),
	malformedHits: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patternminer",
		Subsystem: "aggregate",
		Name:      "malformed_lines_total",
		Help:      `The cumulative number of raw-hit lines skipped because they could not be decoded.`,
	}),
	samples: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patternminer",
		Subsystem: "typicity",
		Name:      "samples_total",
		Help: `The cumulative number of sentences sampled for typicity.

The result label is "aligned" or "skipped". Skipped samples could not be
annotated or aligned and still count against the pattern's score.`,
	}, []string{"result"}),
	patternsScored: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patternminer",
		Subsystem: "scoring",
		Name:      "patterns_total",
		Help:      `The cumulative number of patterns that went through the confidence measures.`,
	}),
	stageSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "patternminer",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      `How long each pipeline stage took.`,
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"stage"}),
}
