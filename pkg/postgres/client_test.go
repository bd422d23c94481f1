package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

func TestNew_FailsAfterRetries(t *testing.T) {
	cfg := config.Default().Postgres
	cfg.Host = "127.0.0.1"
	cfg.Port = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := New(ctx, cfg, resilience.RetryConfig{MaxAttempts: 2, InitialDelay: 10 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging postgres")
	assert.Less(t, time.Since(start), 5*time.Second)
}
