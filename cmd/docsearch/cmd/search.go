package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
)

type searchOptions struct {
	limit   int
	format  string
	snippet int
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the corpus against a query",
		Long: `Rank every document against the query and print the best matches,
highest score first. Scores run from 0 to 100.

Examples:
  docsearch search "machine learning algorithms" --dir ./docs
  docsearch search "reset password" -n 3 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")
	cmd.Flags().IntVar(&opts.snippet, "snippet", 160, "characters of body to print per result in text format")
	return cmd
}

func runSearch(cmd *cobra.Command, g *globalOptions, query string, opts searchOptions) error {
	ctx, cancel := commandContext(cmd, time.Minute)
	defer cancel()

	exec, closeFn, err := g.openExecutor(ctx)
	defer closeFn()
	if err != nil {
		return err
	}

	resp, err := exec.Search(ctx, query, opts.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "text":
		printResults(out, resp, opts.snippet)
		return nil
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}

func printResults(w io.Writer, resp *executor.Response, snippet int) {
	switch resp.Condition {
	case executor.ConditionEmptyCorpus:
		fmt.Fprintln(w, "The corpus is empty.")
		return
	case executor.ConditionNoSearchableTerms:
		fmt.Fprintln(w, "The query has no searchable terms.")
		return
	}
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No documents matched %q.\n", resp.Query)
		return
	}

	fmt.Fprintf(w, "%d result(s) for %q across %d documents (%dms)\n\n",
		len(resp.Results), resp.Query, resp.TotalDocuments, resp.SearchTimeMs)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d. [%3.0f] %s (%s)\n", i+1, r.Score, r.Title, r.DocumentID)
		if len(r.Tags) > 0 {
			fmt.Fprintf(w, "   tags: %s\n", strings.Join(r.Tags, ", "))
		}
		if body := truncate(strings.Join(strings.Fields(r.Body), " "), snippet); body != "" {
			fmt.Fprintf(w, "   %s\n", body)
		}
	}
	if !resp.Confident {
		fmt.Fprintln(w, "\nLow confidence: the best match scored below the confidence threshold.")
	}
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
