package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newExplainCmd(g *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "explain <doc-id> <query>",
		Short: "Show how each scoring rule contributed to one document's score",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, time.Minute)
			defer cancel()

			exec, closeFn, err := g.openExecutor(ctx)
			defer closeFn()
			if err != nil {
				return err
			}

			docID, query := args[0], strings.Join(args[1:], " ")
			contributions, ok, err := exec.Explain(ctx, query, docID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("document %q is not in the corpus", docID)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RULE\tCONTRIBUTION")
			var raw float64
			for _, c := range contributions {
				raw += c.Value
				if c.Value == 0 && !all {
					continue
				}
				fmt.Fprintf(tw, "%s\t%.3f\n", c.Label, c.Value)
			}
			fmt.Fprintf(tw, "raw total\t%.3f\n", raw)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include rules that contributed nothing")
	return cmd
}
