package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

// Publisher sends a batch of events; *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the collector. Zero values select the defaults.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	return c
}

// Collector buffers events without blocking the search path and publishes
// them in batches when a batch fills or the flush interval passes. Events
// that arrive while the buffer is full are dropped and counted.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger

	events    chan SearchEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(publisher Publisher, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		events:    make(chan SearchEvent, cfg.BufferSize),
		done:      make(chan struct{}),
	}
}

// Start launches the publishing loop. It stops, after publishing whatever
// is buffered, when ctx is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

// Track queues event for publishing.
func (c *Collector) Track(event SearchEvent) {
	select {
	case c.events <- event:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the buffer to be published.
// It must only be called after Start.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.events) })
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		c.publish(ctx, batch)
		batch = make([]kafka.Event, 0, c.cfg.BatchSize)
	}

	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				flush(context.Background())
				return
			}
			batch = append(batch, toKafka(event))
			if len(batch) >= c.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for drained := false; !drained; {
				select {
				case event, ok := <-c.events:
					if !ok {
						drained = true
						break
					}
					batch = append(batch, toKafka(event))
				default:
					drained = true
				}
			}
			flush(drainCtx)
			cancel()
			return
		}
	}
}

func (c *Collector) publish(ctx context.Context, batch []kafka.Event) {
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		return
	}
	c.count("published", len(batch))
	c.logger.Debug("analytics batch published", "events", len(batch))
}

func (c *Collector) count(status string, n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}

func toKafka(e SearchEvent) kafka.Event {
	return kafka.Event{
		Key:   e.Query,
		Value: e,
		Headers: map[string]string{
			"event-type": string(e.Type),
		},
	}
}
