// Package telemetry configures OpenTelemetry metrics for gridconsole.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config selects the metrics exporter.
type Config struct {
	// OTLPEndpoint is the collector URL. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`

	// ServiceName is reported as the meter scope.
	ServiceName string `yaml:"service_name" json:"service_name"`

	// Interval is how often metrics are pushed.
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// Init installs a meter provider. Without an endpoint a no-op provider is
// installed so instruments can be created unconditionally.
func Init(ctx context.Context, cfg Config) (metric.MeterProvider, func(context.Context) error, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint == "" {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, func(context.Context) error { return nil }, nil
	}

	host, insecure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, nil, err
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = raw
	}
	insecure := parsed.Scheme != "https"
	return host, insecure, nil
}

// Metrics holds the instruments recorded by the API and the journal.
// A nil *Metrics records nothing.
type Metrics struct {
	fetches metric.Int64Counter
	writes  metric.Int64Counter
	drained metric.Int64Counter
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider, scope string) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if scope == "" {
		scope = "gridconsole"
	}
	meter := mp.Meter(scope)

	fetches, err := meter.Int64Counter("gridconsole.fetch.requests",
		metric.WithDescription("Page fetches served, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create fetch counter: %w", err)
	}
	writes, err := meter.Int64Counter("gridconsole.write.requests",
		metric.WithDescription("Cell writes handled, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create write counter: %w", err)
	}
	drained, err := meter.Int64Counter("gridconsole.journal.drained",
		metric.WithDescription("Change events delivered to sinks, by sink and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create drain counter: %w", err)
	}
	return &Metrics{fetches: fetches, writes: writes, drained: drained}, nil
}

// RecordFetch counts one page fetch.
func (m *Metrics) RecordFetch(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordWrite counts one cell write.
func (m *Metrics) RecordWrite(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDrain counts one delivery attempt to a sink.
func (m *Metrics) RecordDrain(ctx context.Context, sink, outcome string) {
	if m == nil {
		return
	}
	m.drained.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.String("outcome", outcome),
	))
}
