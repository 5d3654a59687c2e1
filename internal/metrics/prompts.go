package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// PendingCounter reports how many prompts are waiting for the user.
type PendingCounter func(ctx context.Context) int

// RegisterPendingPromptsGauge exposes the number of unresolved consent prompts
// as <namespace>_pending_prompts. The value is read on every collection.
func RegisterPendingPromptsGauge(meterProvider metric.MeterProvider, namespace string, pending PendingCounter) error {
	meter := meterProvider.Meter(namespace)

	_, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_pending_prompts", namespace),
		metric.WithDescription("Consent prompts waiting for a user decision"),
		metric.WithUnit("{prompt}"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			o.Observe(int64(pending(ctx)))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending prompts gauge: %w", err)
	}
	return nil
}
