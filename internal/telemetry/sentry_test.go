package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_WithoutSentry(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "Engine.Ingest", SpanAttributes{
		Provenance: "doc-1",
		Store:      "memory",
		Operation:  "ingest",
	})
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	_, child := StartSpan(ctx, "Engine.Ingest.embedding", SpanAttributes{Stage: "embedding"})
	child.SetData("count", 3)
	child.SetError(errors.New("boom"))
	child.End()
	span.End()
}

func TestSpan_NilInnerIsSafe(t *testing.T) {
	span := &Span{}
	assert.NotPanics(t, func() {
		span.SetData("count", 1)
		span.SetError(errors.New("boom"))
		span.End()
	})
}
