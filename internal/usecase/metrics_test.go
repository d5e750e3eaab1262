package usecase

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"voicescribe/internal/domain"
)

func TestTranscriptionSessionRecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	recognizer := &fakeRecognizer{supported: true}
	session := NewTranscriptionSession(recognizer, nil, &fakeEventSink{}, Config{MeterProvider: provider})

	session.StartRecording(context.Background())
	session.OnRecognitionStarted()
	session.OnRecognitionResult([]domain.RecognitionResult{
		{Text: "one", Final: true},
		{Text: "two", Final: true},
	})
	session.OnRecognitionError(domain.RecognitionErrorNetwork)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	if got := counterValue(t, rm, "voicescribe.recordings.started", ""); got != 1 {
		t.Fatalf("expected one started recording, got %d", got)
	}
	if got := counterValue(t, rm, "voicescribe.segments.committed", ""); got != 2 {
		t.Fatalf("expected two committed segments, got %d", got)
	}
	if got := counterValue(t, rm, "voicescribe.recognition.errors", "network"); got != 1 {
		t.Fatalf("expected one network error, got %d", got)
	}
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, code string) int64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				if code != "" {
					value, found := dp.Attributes.Value(attribute.Key("code"))
					if !found || value.AsString() != code {
						continue
					}
				}
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
