package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

func newImportCmd(g *globalOptions) *cobra.Command {
	var createTable bool

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Copy a corpus directory into the PostgreSQL documents table",
		Long: `Upsert every matching file in <dir> into the table named by
corpus.table, keyed by filename, in a single transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, 5*time.Minute)
			defer cancel()

			docs, err := corpus.NewDirSource(args[0], g.cfg.Corpus.Extensions).Load(ctx)
			if err != nil {
				return err
			}

			db, err := postgres.New(ctx, g.cfg.Postgres, resilience.RetryConfig{MaxAttempts: 3})
			if err != nil {
				return err
			}
			defer db.Close()

			table := g.cfg.Corpus.Table
			err = db.InTx(ctx, func(tx *sql.Tx) error {
				if createTable {
					if _, err := tx.ExecContext(ctx, corpus.TableSchema(table)); err != nil {
						return fmt.Errorf("creating table: %w", err)
					}
				}
				return corpus.Import(ctx, tx, table, docs)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents into %s\n", len(docs), table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&createTable, "create-table", false, "create the table when it does not exist")
	return cmd
}
