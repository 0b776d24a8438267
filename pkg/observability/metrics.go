package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Pipeline stages used as metric attributes
const (
	StageAnalysis  = "analysis"
	StageSynthesis = "synthesis"
)

// Metrics holds the instruments recorded by the assistant pipeline
type Metrics struct {
	stageTotal    metric.Int64Counter
	stageDuration metric.Float64Histogram
	extraction    metric.Int64Counter
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	stageTotal, err := meter.Int64Counter("assistant_stage_total",
		metric.WithDescription("Pipeline stage executions by outcome"))
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("assistant_stage_duration_seconds",
		metric.WithDescription("Pipeline stage latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	extraction, err := meter.Int64Counter("assistant_extraction_total",
		metric.WithDescription("Which extraction path produced the utterance"))
	if err != nil {
		return nil, err
	}
	return &Metrics{stageTotal: stageTotal, stageDuration: stageDuration, extraction: extraction}, nil
}

// NoopMetrics returns instruments that record nothing
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// RecordStage counts one stage execution and its latency
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	)
	m.stageTotal.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// RecordExtraction counts the extraction source of a successful analysis
func (m *Metrics) RecordExtraction(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.extraction.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
