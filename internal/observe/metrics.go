// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/arbachegit/iconsai-core"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text decode latency. Use with attribute:
	//   attribute.String("kind", "partial"|"final"|"realign")
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency. Use with attribute:
	//   attribute.String("provider", ...)
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// TranscriptionEvents counts events emitted to streaming clients. Use
	// with attribute: attribute.String("status", ...)
	TranscriptionEvents metric.Int64Counter

	// KaraokeFallbacks counts which synthesis path produced the caption
	// schedule. Use with attribute:
	//   attribute.String("stage", "native"|"realigned"|"approximate")
	KaraokeFallbacks metric.Int64Counter

	// SessionsSwept counts idle entries removed by the background sweeper.
	SessionsSwept metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveStreams tracks the number of live streaming transcription
	// sessions.
	ActiveStreams metric.Int64UpDownCounter

	// ActiveSyncSessions tracks the number of live clock-sync sessions.
	ActiveSyncSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("iconsai.stt.duration",
		metric.WithDescription("Latency of speech-to-text decodes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("iconsai.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("iconsai.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionEvents, err = m.Int64Counter("iconsai.transcription.events",
		metric.WithDescription("Total streaming transcription events by status."),
	); err != nil {
		return nil, err
	}
	if met.KaraokeFallbacks, err = m.Int64Counter("iconsai.karaoke.fallbacks",
		metric.WithDescription("Caption schedules produced by synthesis stage."),
	); err != nil {
		return nil, err
	}
	if met.SessionsSwept, err = m.Int64Counter("iconsai.sessions.swept",
		metric.WithDescription("Idle sessions removed by the background sweeper."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("iconsai.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("iconsai.active_streams",
		metric.WithDescription("Number of live streaming transcription sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSyncSessions, err = m.Int64UpDownCounter("iconsai.active_sync_sessions",
		metric.WithDescription("Number of live clock-sync sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("iconsai.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTranscriptionEvent records one streaming transcription event.
func (m *Metrics) RecordTranscriptionEvent(ctx context.Context, status string) {
	m.TranscriptionEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordKaraokeStage records which synthesis stage produced a caption
// schedule.
func (m *Metrics) RecordKaraokeStage(ctx context.Context, stage string) {
	m.KaraokeFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
