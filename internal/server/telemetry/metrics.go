// Package telemetry holds the OpenTelemetry metric instruments of the auth
// server. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every instrument below.
const MeterName = "github.com/dmitrijs2005/spa-auth"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all metric instruments for the auth server.
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	Registrations   metric.Int64Counter
	Logins          metric.Int64Counter
	Logouts         metric.Int64Counter
	Refreshes       metric.Int64Counter
	TokensIssued    metric.Int64Counter
	TokensRevoked   metric.Int64Counter
	RateLimitHits   metric.Int64Counter
	MailsSent       metric.Int64Counter
	SocialCallbacks metric.Int64Counter
}

// NewGlobal creates instruments on the globally registered MeterProvider.
func NewGlobal() (*Metrics, error) {
	return New(otel.Meter(MeterName))
}

// New creates and registers all metric instruments on meter.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"auth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"auth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.Registrations, "auth.registrations", "Number of registration attempts", "{registration}"},
		{&m.Logins, "auth.logins", "Number of login attempts", "{login}"},
		{&m.Logouts, "auth.logouts", "Number of logouts", "{logout}"},
		{&m.Refreshes, "auth.refreshes", "Number of refresh token exchanges", "{refresh}"},
		{&m.TokensIssued, "auth.refresh_tokens.issued", "Number of refresh tokens issued", "{token}"},
		{&m.TokensRevoked, "auth.refresh_tokens.revoked", "Number of refresh tokens revoked outside rotation", "{token}"},
		{&m.RateLimitHits, "auth.rate_limit.exceeded", "Number of throttled requests", "{request}"},
		{&m.MailsSent, "auth.mails.sent", "Number of outbound mails", "{mail}"},
		{&m.SocialCallbacks, "auth.social.callbacks", "Number of social login callbacks", "{callback}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", statusCode),
	))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("route", route)))
}

func (m *Metrics) RecordRegistration(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordLogin(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordLogout(ctx context.Context) {
	if m == nil {
		return
	}
	m.Logouts.Add(ctx, 1)
}

// RecordRefresh records a refresh exchange; reason is empty on success and
// names the lifecycle failure (not_found, expired, revoked) otherwise.
func (m *Metrics) RecordRefresh(ctx context.Context, result, reason string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("result", result)}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.Refreshes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTokenIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.TokensIssued.Add(ctx, 1)
}

func (m *Metrics) RecordTokensRevoked(ctx context.Context, n int64, cause string) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensRevoked.Add(ctx, n, metric.WithAttributes(attribute.String("cause", cause)))
}

func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiter string) {
	if m == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}

func (m *Metrics) RecordMailSent(ctx context.Context, kind string, ok bool) {
	if m == nil {
		return
	}
	m.MailsSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", ok),
	))
}

func (m *Metrics) RecordSocialCallback(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	m.SocialCallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("success", ok),
	))
}
