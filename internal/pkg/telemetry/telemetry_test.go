package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit(t *testing.T) {
	ctx := context.Background()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	t.Run("none keeps the global provider", func(t *testing.T) {
		shutdown, err := Init(ctx, Config{Exporter: ExporterNone})
		require.NoError(t, err)
		assert.Equal(t, prev, otel.GetTracerProvider())
		assert.NoError(t, shutdown(ctx))
	})

	t.Run("unknown exporter", func(t *testing.T) {
		_, err := Init(ctx, Config{Exporter: "zipkin"})
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})

	t.Run("stdout exports spans", func(t *testing.T) {
		var buf bytes.Buffer
		shutdown, err := Init(ctx, Config{ServiceName: "consumer", Exporter: ExporterStdout, Writer: &buf})
		require.NoError(t, err)

		_, span := otel.Tracer("test").Start(ctx, "ProcessBatch")
		span.End()
		require.NoError(t, shutdown(ctx))

		assert.Contains(t, buf.String(), "ProcessBatch")
		assert.Contains(t, buf.String(), "consumer")
	})
}
