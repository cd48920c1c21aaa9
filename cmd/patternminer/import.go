package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/japaniel/patternminer/pkg/corpus"
	"github.com/japaniel/patternminer/pkg/nlp"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		url       string
		file      string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Add the sentences of a web article or text file to the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (url == "") == (file == "") {
				return fmt.Errorf("exactly one of --url or --file is required")
			}
			seg, _, err := languageTools(a.cfg.Segmenter)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				text                        string
				sourceType, title, by, site string
			)
			if url != "" {
				a.log.WithField("url", url).Info("Fetching article")
				article, err := corpus.NewFetcher().Fetch(ctx, url)
				if err != nil {
					return err
				}
				text, sourceType, title, by, site = article.Text, "website_article", article.Title, article.Byline, article.SiteName
			} else {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text, sourceType, title = string(data), "text_file", filepath.Base(file)
			}

			store, err := corpus.Open(a.cfg.Corpus)
			if err != nil {
				return fmt.Errorf("open corpus: %w", err)
			}
			defer store.Close()

			sourceID, err := corpus.CreateOrGetSource(store.DB(), sourceType, title, by, site, url, file)
			if err != nil {
				return fmt.Errorf("persist source: %w", err)
			}
			sentences := nlp.SplitSentences(text)
			a.log.WithFields(logrus.Fields{
				"source":    sourceID,
				"title":     title,
				"sentences": len(sentences),
			}).Info("Importing sentences")

			im := corpus.NewImporter(store, seg)
			im.Logger = a.log
			if batchSize > 0 {
				im.BatchSize = batchSize
			}
			n, err := im.Import(ctx, sourceID, sentences)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sentences from %q (source %d).\n", n, title, sourceID)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "web article to import")
	cmd.Flags().StringVar(&file, "file", "", "plain text file to import")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "sentences per transaction")
	return cmd
}
