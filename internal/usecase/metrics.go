package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"voicescribe/internal/domain"
)

const meterName = "voicescribe/usecase"

type sessionMetrics struct {
	started  metric.Int64Counter
	errors   metric.Int64Counter
	segments metric.Int64Counter
}

func newSessionMetrics(provider metric.MeterProvider) sessionMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	return sessionMetrics{
		started: int64Counter(meter, "voicescribe.recordings.started",
			"Recording runs requested from the capability"),
		errors: int64Counter(meter, "voicescribe.recognition.errors",
			"Recognition errors by code"),
		segments: int64Counter(meter, "voicescribe.segments.committed",
			"Final segments appended to the transcript"),
	}
}

func int64Counter(meter metric.Meter, name string, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return counter
}

func (m sessionMetrics) recordStart(ctx context.Context) {
	m.started.Add(ctx, 1)
}

func (m sessionMetrics) recordError(ctx context.Context, code domain.RecognitionErrorCode) {
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(code))))
}

func (m sessionMetrics) recordSegments(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.segments.Add(ctx, int64(n))
}
