package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Login outcomes recorded on canary.login.total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Instruments holds the metrics and tracer for session traffic.
type Instruments struct {
	Tracer trace.Tracer

	loginTotal      metric.Int64Counter
	reauthTotal     metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewInstruments creates instruments on the global meter provider.
func NewInstruments() (*Instruments, error) {
	meter := Meter(InstrumentationName)

	loginTotal, err := meter.Int64Counter(
		"canary.login.total",
		metric.WithDescription("Login handshakes performed against the Canary service"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	reauthTotal, err := meter.Int64Counter(
		"canary.reauth.total",
		metric.WithDescription("Re-logins triggered by a 4xx on an authenticated request"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"canary.request.duration",
		metric.WithDescription("Duration of Canary API requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:          Tracer(InstrumentationName),
		loginTotal:      loginTotal,
		reauthTotal:     reauthTotal,
		requestDuration: requestDuration,
	}, nil
}

// RecordLogin counts one login attempt with its outcome.
func (i *Instruments) RecordLogin(ctx context.Context, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	i.loginTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordReauth counts one re-login triggered by an expired session.
func (i *Instruments) RecordReauth(ctx context.Context, status int) {
	i.reauthTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.response.status_code", status)))
}

// RecordRequest records the duration of one HTTP exchange.
// status is zero when the request failed before a response arrived.
func (i *Instruments) RecordRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	}
	if status != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	} else {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	i.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
