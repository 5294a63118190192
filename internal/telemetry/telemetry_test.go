package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	mp, shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, mp)
	assert.NoError(t, shutdown(context.Background()))
}

func TestParseEndpoint(t *testing.T) {
	host, insecure, err := parseEndpoint("http://collector:4318")
	require.NoError(t, err)
	assert.Equal(t, "collector:4318", host)
	assert.True(t, insecure)

	host, insecure, err = parseEndpoint("https://otel.example.com")
	require.NoError(t, err)
	assert.Equal(t, "otel.example.com", host)
	assert.False(t, insecure)
}

func TestMetricsRecordCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp, "test")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFetch(ctx, "ok")
	m.RecordFetch(ctx, "ok")
	m.RecordWrite(ctx, "validation")
	m.RecordDrain(ctx, "log", "ok")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	totals := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		sum, ok := md.Data.(metricdata.Sum[int64])
		require.True(t, ok, md.Name)
		for _, dp := range sum.DataPoints {
			totals[md.Name] += dp.Value
		}
	}
	assert.Equal(t, int64(2), totals["gridconsole.fetch.requests"])
	assert.Equal(t, int64(1), totals["gridconsole.write.requests"])
	assert.Equal(t, int64(1), totals["gridconsole.journal.drained"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordFetch(context.Background(), "ok")
	m.RecordWrite(context.Background(), "ok")
	m.RecordDrain(context.Background(), "log", "ok")
}
