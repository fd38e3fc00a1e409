// Package telemetry records stage outcomes of the checkout lifecycle as
// OpenTelemetry metrics. The meter comes from the global provider unless one
// is passed in, so the counters cost nothing until an SDK is installed.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "portraitstudio/studio"

var (
	attrStage   = attribute.Key("studio.stage")
	attrOutcome = attribute.Key("studio.outcome")
)

// Stage names.
const (
	StageUpload   = "upload"
	StagePayment  = "payment"
	StageGenerate = "generate"
	StageRefund   = "refund"
)

// Outcome names.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeDismissed = "dismissed"
	OutcomeTimeout   = "timeout"
)

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	stages  metric.Int64Counter
	latency metric.Float64Histogram
}

// New builds the instruments on the given meter, or on the global meter
// provider when meter is nil.
func New(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	stages, err := meter.Int64Counter("studio.stage.total",
		metric.WithDescription("Stage transitions by outcome."))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("studio.stage.latency.ms",
		metric.WithDescription("Latency of external capability calls in milliseconds."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &Metrics{stages: stages, latency: latency}, nil
}

// RecordStage counts one stage outcome and, when d is positive, its latency.
func (m *Metrics) RecordStage(ctx context.Context, stage, outcome string, d time.Duration) {
	if m == nil || m.stages == nil {
		return
	}
	attrs := metric.WithAttributes(attrStage.String(stage), attrOutcome.String(outcome))
	m.stages.Add(ctx, 1, attrs)
	if d > 0 && m.latency != nil {
		m.latency.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
	}
}
