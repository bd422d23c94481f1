// Package cmd implements the docsearch commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	dir        string
	logLevel   string
	cfg        *config.Config
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Relevance search over a small document corpus",
		Long: `docsearch ranks markdown and text documents against a free-text query.

The corpus comes from --dir, or from the corpus section of --config
(a directory or a PostgreSQL table).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "corpus directory (overrides the config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newSearchCmd(opts),
		newExplainCmd(opts),
		newDescribeCmd(opts),
		newInvalidateCmd(opts),
		newImportCmd(opts),
	)
	return cmd
}

func (o *globalOptions) load(cmd *cobra.Command) error {
	logger.SetupWriter(cmd.ErrOrStderr(), o.logLevel, "text")

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.dir != "" {
		cfg.Corpus.Backend = "dir"
		cfg.Corpus.Dir = o.dir
	}
	o.cfg = cfg
	return nil
}

// openExecutor builds an executor over the configured corpus and builds its
// first snapshot. The returned close function is always non-nil.
func (o *globalOptions) openExecutor(ctx context.Context) (*executor.Executor, func(), error) {
	var (
		src     corpus.Source
		closeFn = func() {}
	)
	switch o.cfg.Corpus.Backend {
	case "postgres":
		db, err := postgres.New(ctx, o.cfg.Postgres, resilience.RetryConfig{MaxAttempts: 2})
		if err != nil {
			return nil, closeFn, err
		}
		src = corpus.NewPostgresSource(db.DB, o.cfg.Corpus.Table)
		closeFn = func() { _ = db.Close() }
	case "dir", "":
		if _, err := os.Stat(o.cfg.Corpus.Dir); err != nil {
			return nil, closeFn, fmt.Errorf("corpus directory: %w", err)
		}
		src = corpus.NewDirSource(o.cfg.Corpus.Dir, o.cfg.Corpus.Extensions)
	default:
		return nil, closeFn, fmt.Errorf("unknown corpus backend %q", o.cfg.Corpus.Backend)
	}

	// A CLI process lives for one command, so the snapshot never expires.
	indexCfg := o.cfg.Index
	indexCfg.TTL = 0
	exec := executor.New(indexer.NewEngine(src, indexCfg), o.cfg.Search, o.cfg.Scoring)
	if _, err := exec.Rebuild(ctx); err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return exec, closeFn, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
