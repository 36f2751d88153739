package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameReviewsCreated = "reviewstore_reviews_created_total"
	MetricNameReviewsDeleted = "reviewstore_reviews_deleted_total"
	MetricNameSearches       = "reviewstore_searches_total"
	MetricNameSearchDuration = "reviewstore_search_duration_seconds"
	MetricNameCacheHits      = "reviewstore_cache_hits_total"
	MetricNameCacheMisses    = "reviewstore_cache_misses_total"
)

// Attribute keys.
const (
	AttrDocumentType = "document_type"
	AttrSearchType   = "search_type"
	AttrOutcome      = "outcome"
	AttrCache        = "cache"
)

// AllowedDocumentTypes for reviewstore_reviews_created_total. The column is free
// text in the table, so anything outside this set is folded into "other".
var AllowedDocumentTypes = map[string]bool{
	"grant_review": true,
}

// AllowedSearchTypes for reviewstore_searches_total and reviewstore_search_duration_seconds.
var AllowedSearchTypes = map[string]bool{
	"vector": true,
	"text":   true,
}

// AllowedOutcomes for reviewstore_searches_total and reviewstore_search_duration_seconds.
var AllowedOutcomes = map[string]bool{
	"ok":    true,
	"error": true,
}

// AllowedCacheNames for reviewstore_cache_hits_total and reviewstore_cache_misses_total.
var AllowedCacheNames = map[string]bool{
	"review_get_by_id":      true,
	"reviews_by_user":       true,
	"latest_review_by_user": true,
}

// NormalizeDocumentType returns documentType if allowed, "none" when empty, otherwise "other".
func NormalizeDocumentType(documentType string) string {
	if documentType == "" {
		return "none"
	}

	if AllowedDocumentTypes[documentType] {
		return documentType
	}

	return "other"
}

// NormalizeSearchType returns searchType if allowed, otherwise "unknown".
func NormalizeSearchType(searchType string) string {
	if AllowedSearchTypes[searchType] {
		return searchType
	}

	return "unknown"
}

// NormalizeOutcome returns outcome if allowed, otherwise "unknown".
func NormalizeOutcome(outcome string) string {
	if AllowedOutcomes[outcome] {
		return outcome
	}

	return "unknown"
}

// NormalizeCacheName returns name if allowed, otherwise "other".
func NormalizeCacheName(name string) string {
	if AllowedCacheNames[name] {
		return name
	}

	return "other"
}
