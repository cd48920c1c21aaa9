package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/japaniel/patternminer/pkg/pattern"
	"github.com/japaniel/patternminer/pkg/store"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		relation string
		top      int
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the best scored patterns of each relation",
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := store.LoadAll(afero.NewOsFs(), a.cfg.MappingsDir())
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				return fmt.Errorf("no mappings in %s, run the pipeline first", a.cfg.MappingsDir())
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			shown := 0
			for _, m := range mappings {
				if relation != "" && m.Relation.URI != relation && pattern.LocalName(m.Relation.URI) != relation {
					continue
				}
				shown++
				patterns := append([]*pattern.Pattern(nil), m.Patterns...)
				sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].Confidence > patterns[j].Confidence })
				if top > 0 && len(patterns) > top {
					patterns = patterns[:top]
				}
				fmt.Fprintf(w, "%s\t(%s -> %s)\n", m.Relation.URI, m.Relation.Domain, m.Relation.Range)
				fmt.Fprintln(w, "  PATTERN\tOCC\tTYPICITY\tSUPPORT\tSPECIFICITY\tCONFIDENCE")
				for _, p := range patterns {
					fmt.Fprintf(w, "  %s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
						p.Text, p.Occurrences, p.Typicity, p.Support, p.Specificity, p.Confidence)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if shown == 0 {
				return fmt.Errorf("relation %q not found", relation)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&relation, "relation", "", "only show this relation (URI or local name)")
	cmd.Flags().IntVar(&top, "top", 10, "patterns per relation, 0 for all")
	return cmd
}
