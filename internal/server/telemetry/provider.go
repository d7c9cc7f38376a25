package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Exporter names accepted by NewProvider.
const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"
)

const stdoutInterval = time.Minute

// Provider owns the SDK MeterProvider the instruments record into.
// With ExporterNone it has no SDK provider and Metrics falls back to the
// global one.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	handler http.Handler
}

// NewProvider builds a MeterProvider for exporter.
func NewProvider(exporter string) (*Provider, error) {
	switch exporter {
	case "", ExporterNone:
		return &Provider{}, nil

	case ExporterPrometheus:
		reg := prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		return &Provider{
			mp:      sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)),
			handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}, nil

	case ExporterStdout:
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutInterval))
		return &Provider{mp: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))}, nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}
}

// Metrics creates the instruments on the provider.
func (p *Provider) Metrics() (*Metrics, error) {
	if p.mp == nil {
		return NewGlobal()
	}
	return New(p.mp.Meter(MeterName))
}

// Handler serves the scrape endpoint, or is nil when the exporter pushes
// or there is none.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Shutdown flushes pending data and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.mp == nil {
		return nil
	}
	return p.mp.Shutdown(ctx)
}
