package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
)

func newInvalidateCmd(g *globalOptions) *cobra.Command {
	var (
		reason    string
		documents []string
	)

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Tell every running searcher to rebuild its index",
		Long: `Publish an invalidation event on the index-invalidate Kafka topic.
Searchers drop their snapshot and flush their result cache on receipt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			topic := g.cfg.Kafka.Topics.IndexInvalidate
			producer := kafka.NewProducer(g.cfg.Kafka, topic)
			defer producer.Close()

			origin, _ := os.Hostname()
			event := consumer.InvalidateEvent{
				Reason:    reason,
				Origin:    origin,
				Documents: documents,
				Timestamp: time.Now().UTC(),
			}
			if err := producer.Publish(ctx, kafka.Event{Key: "invalidate", Value: event}); err != nil {
				return fmt.Errorf("publishing invalidation: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidation published to %s\n", topic)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "manual", "why the corpus changed")
	cmd.Flags().StringSliceVar(&documents, "doc", nil, "changed document ids (informational, repeatable)")
	return cmd
}
