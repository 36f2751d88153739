package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all review store metric collectors. When metrics are disabled, all fields are nil.
// Components that accept an interface (StoreMetrics, CacheMetrics) can receive the corresponding
// field; they already handle nil.
type Metrics struct {
	Store StoreMetrics
	Cache CacheMetrics
}

// NewMetrics creates StoreMetrics and CacheMetrics from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	store, err := NewStoreMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("store metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	return &Metrics{
		Store: store,
		Cache: cache,
	}, nil
}
