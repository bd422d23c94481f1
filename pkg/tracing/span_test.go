package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
)

func TestStart_RootUsesRequestID(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-42")
	_, span := Start(ctx, "search")
	assert.Equal(t, "req-42", span.TraceID)
}

func TestStart_RootWithoutRequestIDGetsRandomID(t *testing.T) {
	_, a := Start(context.Background(), "a")
	_, b := Start(context.Background(), "b")
	assert.Len(t, a.TraceID, 16)
	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestStart_ChildJoinsParent(t *testing.T) {
	ctx, root := Start(context.Background(), "search")
	childCtx, child := Start(ctx, "rank")

	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Same(t, child, FromContext(childCtx))
	require.Len(t, root.Children(), 1)
	assert.Same(t, child, root.Children()[0])
}

func TestEnd_IsIdempotent(t *testing.T) {
	_, span := Start(context.Background(), "x")
	span.End()
	first := span.Duration
	span.End()
	assert.Equal(t, first, span.Duration)
}

func TestLog_WritesTree(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "search")
	root.SetAttr("query", "docker")
	_, child := Start(ctx, "rank")
	child.SetAttr("candidates", 3)
	child.End()
	root.End()
	root.Log(l)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[0], "query=docker")
	assert.Contains(t, lines[1], "span=rank")
	assert.Contains(t, lines[1], "depth=1")
	assert.Contains(t, lines[1], "candidates=3")
}

func TestFromContext_Empty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
