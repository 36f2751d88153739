package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics records review store operations with bounded attribute cardinality.
type StoreMetrics interface {
	RecordReviewCreated(ctx context.Context, documentType string)
	RecordReviewsDeleted(ctx context.Context, count int)
	RecordSearch(ctx context.Context, searchType, outcome string, duration time.Duration)
}

// storeMetrics implements StoreMetrics.
type storeMetrics struct {
	reviewsCreated metric.Int64Counter
	reviewsDeleted metric.Int64Counter
	searches       metric.Int64Counter
	searchDuration metric.Float64Histogram
}

// NewStoreMetrics creates StoreMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewStoreMetrics(meter metric.Meter) (StoreMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	created, err := meter.Int64Counter(
		MetricNameReviewsCreated,
		metric.WithDescription("Number of grant reviews stored. Label document_type: grant_review, none, other."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reviews created counter: %w", err)
	}

	deleted, err := meter.Int64Counter(
		MetricNameReviewsDeleted,
		metric.WithDescription("Number of grant reviews deleted, counting each row of a bulk per-user delete."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reviews deleted counter: %w", err)
	}

	searches, err := meter.Int64Counter(
		MetricNameSearches,
		metric.WithDescription("Number of search requests. Label search_type: vector, text. Label outcome: ok, error."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create searches counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameSearchDuration,
		metric.WithDescription("Search duration in seconds, labeled like reviewstore_searches_total."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	return &storeMetrics{
		reviewsCreated: created,
		reviewsDeleted: deleted,
		searches:       searches,
		searchDuration: duration,
	}, nil
}

func (s *storeMetrics) RecordReviewCreated(ctx context.Context, documentType string) {
	s.reviewsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDocumentType, NormalizeDocumentType(documentType)),
	))
}

func (s *storeMetrics) RecordReviewsDeleted(ctx context.Context, count int) {
	s.reviewsDeleted.Add(ctx, int64(count))
}

func (s *storeMetrics) RecordSearch(ctx context.Context, searchType, outcome string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String(AttrSearchType, NormalizeSearchType(searchType)),
		attribute.String(AttrOutcome, NormalizeOutcome(outcome)),
	)
	s.searches.Add(ctx, 1, metric.WithAttributeSet(attrs))
	s.searchDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attrs))
}
