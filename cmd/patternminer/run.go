package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/japaniel/patternminer/pkg/align"
	"github.com/japaniel/patternminer/pkg/config"
	"github.com/japaniel/patternminer/pkg/corpus"
	"github.com/japaniel/patternminer/pkg/nlp"
	"github.com/japaniel/patternminer/pkg/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search, aggregate, filter, score and persist patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cfg.Relations == "" || cfg.Gazetteer == "" {
				return errors.New("run needs both relations and gazetteer settings")
			}
			rel, err := config.LoadRelations(cfg.Relations)
			if err != nil {
				return err
			}
			seg, tagger, err := languageTools(cfg.Segmenter)
			if err != nil {
				return err
			}
			// Fail before any stage runs if the gazetteer is unreadable.
			if _, err := nlp.LoadGazetteer(cfg.Gazetteer, seg); err != nil {
				return fmt.Errorf("gazetteer: %w", err)
			}
			store, err := corpus.Open(cfg.Corpus)
			if err != nil {
				return fmt.Errorf("open corpus: %w", err)
			}
			defer store.Close()

			if cfg.MetricsAddr != "" {
				stop := serveMetrics(a, cfg.MetricsAddr)
				defer stop()
			}

			p, err := pipeline.New(cfg, pipeline.Deps{
				Corpus:    store,
				Fs:        afero.NewOsFs(),
				Tagger:    tagger,
				Segmenter: seg,
				NewAnnotator: func() (nlp.EntityAnnotator, error) {
					return nlp.LoadGazetteer(cfg.Gazetteer, seg)
				},
				Types: align.NewTypeMapper(rel.Types),
				Log:   a.log,
			})
			if err != nil {
				return err
			}
			report, err := p.Run(cmd.Context(), rel.Relations, rel.Seeds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report.SearchSkipped {
				fmt.Fprintln(out, "Search skipped, reused serialized hits.")
			} else if report.Search != nil {
				fmt.Fprintf(out, "Searched %d seeds: %d hits, %d failures.\n",
					report.Search.Seeds, report.Search.Hits, report.Search.Failures)
			}
			fmt.Fprintf(out, "Scored %d patterns in %d mappings, written to %s.\n",
				report.Patterns, report.Mappings, cfg.MappingsDir())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("relations", "", "YAML file with relations and seeds")
	flags.String("gazetteer", "", "TSV entity list for entity tagging")
	flags.Bool("use-serialized-hits", false, "reuse raw hits from an earlier run")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = a.v.BindPFlag("relations", flags.Lookup("relations"))
	_ = a.v.BindPFlag("gazetteer", flags.Lookup("gazetteer"))
	_ = a.v.BindPFlag("search.useSerializedHits", flags.Lookup("use-serialized-hits"))
	_ = a.v.BindPFlag("metricsAddr", flags.Lookup("metrics-addr"))
	return cmd
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Metrics server failed")
		}
	}()
	a.log.WithField("addr", addr).Info("Serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
