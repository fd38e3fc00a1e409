package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordStage(context.Background(), StageGenerate, OutcomeOK, time.Second)
}

func TestNewWithNoopMeter(t *testing.T) {
	m, err := New(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	m.RecordStage(context.Background(), StageRefund, OutcomeFailed, 25*time.Millisecond)
}
