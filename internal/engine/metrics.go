package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Projection outcome values of the result attribute.
const (
	resultSuccess = "success"
	resultBroken  = "broken"
	resultFailed  = "failed"
)

var attrResult = attribute.Key("result")

type buildMetrics struct {
	projections metric.Int64Counter
	duration    metric.Float64Histogram
}

func newBuildMetrics(meter metric.Meter) (*buildMetrics, error) {
	projections, err := meter.Int64Counter(
		"leapbuild.projections",
		metric.WithDescription("Number of projections built, by result"),
		metric.WithUnit("{projection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating leapbuild.projections: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"leapbuild.projection.duration",
		metric.WithDescription("Duration of projection builds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating leapbuild.projection.duration: %w", err)
	}

	return &buildMetrics{projections: projections, duration: duration}, nil
}

func (m *buildMetrics) record(ctx context.Context, result string, elapsed time.Duration) {
	set := metric.WithAttributes(attrResult.String(result))
	m.projections.Add(ctx, 1, set)
	m.duration.Record(ctx, elapsed.Seconds(), set)
}
