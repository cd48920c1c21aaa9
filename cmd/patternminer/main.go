// Command patternminer learns natural-language patterns for knowledge-base
// relations from a sentence corpus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/japaniel/patternminer/pkg/config"
	"github.com/japaniel/patternminer/pkg/logging"
)

// app carries state shared by the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), log: logrus.StandardLogger()}
	root := &cobra.Command{
		Use:           "patternminer",
		Short:         "Learn relation patterns from a sentence corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return logging.Configure(logging.Options{Level: cfg.LogLevel, Logger: a.log})
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML, TOML or JSON)")
	flags.String("corpus", "", "SQLite sentence corpus")
	flags.String("work-dir", "", "directory for raw hits and scored mappings")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("segmenter", "", "corpus tokenizer: english, kagome or whitespace")
	_ = a.v.BindPFlag("corpus", flags.Lookup("corpus"))
	_ = a.v.BindPFlag("workDir", flags.Lookup("work-dir"))
	_ = a.v.BindPFlag("logLevel", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("segmenter", flags.Lookup("segmenter"))

	root.AddCommand(newImportCmd(a), newRunCmd(a), newShowCmd(a))
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
