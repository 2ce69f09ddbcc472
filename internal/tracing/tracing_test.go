package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyEndpoint_ReturnsNoOpProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "zklite-indexer", SampleRatio: 0.1})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(context.Background())
	assert.NoError(t, err)
}

func TestTracer_ReturnsNonNil(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "zklite-indexer"})
	require.NoError(t, err)
	defer shutdown(context.Background())

	tracer := Tracer("pipeline")
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "pipeline.sync")
	assert.False(t, span.SpanContext().IsSampled(), "noop spans are never sampled")
	span.End()
}

func TestInit_ShutdownIdempotent(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "zklite-indexer"})
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_InvalidSampleRatio(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "zklite-indexer", Endpoint: "localhost:4317", Insecure: true, SampleRatio: 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample ratio")
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions(Config{Endpoint: "collector:4317"}), 1)
	assert.Len(t, exporterOptions(Config{Endpoint: "collector:4317", Insecure: true}), 2)
	assert.Len(t, exporterOptions(Config{Endpoint: "http://collector:4317", Insecure: true}), 1, "the url scheme decides")
}

func TestServiceVersion(t *testing.T) {
	assert.NotEmpty(t, serviceVersion())
}
