package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDescribeCmd(g *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Build the index and print its statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, time.Minute)
			defer cancel()

			exec, closeFn, err := g.openExecutor(ctx)
			defer closeFn()
			if err != nil {
				return err
			}

			d := exec.Describe()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			fmt.Fprintf(out, "documents:       %d\n", d.TotalDocuments)
			fmt.Fprintf(out, "vocabulary:      %d terms\n", d.VocabularySize)
			fmt.Fprintf(out, "avg doc length:  %.1f tokens\n", d.AverageDocumentLength)
			fmt.Fprintf(out, "state:           %s\n", d.State)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
