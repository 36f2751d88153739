package service

import (
	"context"
	"fmt"
	"time"

	"github.com/grantwise/reviewstore/internal/models"
	"github.com/grantwise/reviewstore/internal/observability"
	"github.com/grantwise/reviewstore/internal/repository"
	"github.com/grantwise/reviewstore/pkg/cache"
)

const (
	cacheNameReviewGetByID = "review_get_by_id"
	cacheNameReviewsByUser = "reviews_by_user"
	cacheNameLatestByUser  = "latest_review_by_user"
)

// UserListKey identifies a cached per-user listing. The limit is part of the key
// because different limits return different slices.
type UserListKey struct {
	UserID string
	Limit  int
}

// UserListKeyToString serializes a per-user list cache key.
func UserListKeyToString(k UserListKey) string {
	return fmt.Sprintf("%s|%d", k.UserID, k.Limit)
}

// cachingReviewsRepo wraps a ReviewsRepository with caches for GetByID,
// ListByUser, and LatestByUser, the hot per-user read paths. Rows can also be
// written by other database clients, so the caches carry a TTL and the
// decorator only guarantees bounded staleness for those writes.
type cachingReviewsRepo struct {
	inner        ReviewsRepository
	getByIDCache *cache.LoaderCache[string, *models.GrantReview]
	userCache    *cache.LoaderCache[UserListKey, []models.GrantReview]
	latestCache  *cache.LoaderCache[string, *models.GrantReview]
	metrics      observability.CacheMetrics
}

// NewCachingReviewsRepository returns a ReviewsRepository that caches GetByID,
// ListByUser, and LatestByUser. All three caches are invalidated on writes
// through this repository; getByIDCache is invalidated per ID where the ID is
// known. metrics may be nil (no cache metrics recorded).
func NewCachingReviewsRepository(
	inner ReviewsRepository,
	getByIDCache *cache.LoaderCache[string, *models.GrantReview],
	userCache *cache.LoaderCache[UserListKey, []models.GrantReview],
	latestCache *cache.LoaderCache[string, *models.GrantReview],
	metrics observability.CacheMetrics,
) ReviewsRepository {
	return &cachingReviewsRepo{
		inner:        inner,
		getByIDCache: getByIDCache,
		userCache:    userCache,
		latestCache:  latestCache,
		metrics:      metrics,
	}
}

func (r *cachingReviewsRepo) invalidateLists() {
	r.userCache.InvalidateAll()
	r.latestCache.InvalidateAll()
}

func (r *cachingReviewsRepo) Create(ctx context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
	review, err := r.inner.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create grant review: %w", err)
	}

	r.invalidateLists()

	return review, nil
}

func (r *cachingReviewsRepo) GetByID(ctx context.Context, id string) (*models.GrantReview, error) {
	if r.metrics != nil {
		review, hit, err := r.getByIDCache.GetWithStats(ctx, id, r.inner.GetByID)
		if err != nil {
			return nil, fmt.Errorf("get grant review by id: %w", err)
		}

		if hit {
			r.metrics.RecordHit(ctx, cacheNameReviewGetByID)
		} else {
			r.metrics.RecordMiss(ctx, cacheNameReviewGetByID)
		}

		return review, nil
	}

	review, err := r.getByIDCache.Get(ctx, id, r.inner.GetByID)
	if err != nil {
		return nil, fmt.Errorf("get grant review by id: %w", err)
	}

	return review, nil
}

func (r *cachingReviewsRepo) List(ctx context.Context, filters *models.ListGrantReviewsFilters) ([]models.GrantReview, error) {
	reviews, err := r.inner.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list grant reviews: %w", err)
	}

	return reviews, nil
}

func (r *cachingReviewsRepo) Count(ctx context.Context, filters *models.ListGrantReviewsFilters) (int64, error) {
	n, err := r.inner.Count(ctx, filters)
	if err != nil {
		return 0, fmt.Errorf("count grant reviews: %w", err)
	}

	return n, nil
}

func (r *cachingReviewsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.GrantReview, error) {
	key := UserListKey{UserID: userID, Limit: limit}
	load := func(ctx context.Context, k UserListKey) ([]models.GrantReview, error) {
		return r.inner.ListByUser(ctx, k.UserID, k.Limit)
	}

	if r.metrics != nil {
		reviews, hit, err := r.userCache.GetWithStats(ctx, key, load)
		if err != nil {
			return nil, fmt.Errorf("list grant reviews for user: %w", err)
		}

		if hit {
			r.metrics.RecordHit(ctx, cacheNameReviewsByUser)
		} else {
			r.metrics.RecordMiss(ctx, cacheNameReviewsByUser)
		}

		return reviews, nil
	}

	reviews, err := r.userCache.Get(ctx, key, load)
	if err != nil {
		return nil, fmt.Errorf("list grant reviews for user: %w", err)
	}

	return reviews, nil
}

func (r *cachingReviewsRepo) LatestByUser(ctx context.Context, userID string) (*models.GrantReview, error) {
	if r.metrics != nil {
		review, hit, err := r.latestCache.GetWithStats(ctx, userID, r.inner.LatestByUser)
		if err != nil {
			return nil, fmt.Errorf("latest grant review for user: %w", err)
		}

		if hit {
			r.metrics.RecordHit(ctx, cacheNameLatestByUser)
		} else {
			r.metrics.RecordMiss(ctx, cacheNameLatestByUser)
		}

		return review, nil
	}

	review, err := r.latestCache.Get(ctx, userID, r.inner.LatestByUser)
	if err != nil {
		return nil, fmt.Errorf("latest grant review for user: %w", err)
	}

	return review, nil
}

func (r *cachingReviewsRepo) ListRecent(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error) {
	reviews, err := r.inner.ListRecent(ctx, limit, afterCreatedAt, afterID)
	if err != nil {
		return nil, fmt.Errorf("list recent grant reviews: %w", err)
	}

	return reviews, nil
}

func (r *cachingReviewsRepo) NearestByEmbedding(ctx context.Context, embedding []float32, opts *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
	results, err := r.inner.NearestByEmbedding(ctx, embedding, opts)
	if err != nil {
		return nil, fmt.Errorf("nearest grant reviews: %w", err)
	}

	return results, nil
}

func (r *cachingReviewsRepo) SearchByText(ctx context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error) {
	reviews, err := r.inner.SearchByText(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search grant reviews by text: %w", err)
	}

	return reviews, nil
}

func (r *cachingReviewsRepo) Update(ctx context.Context, id string, req *models.UpdateGrantReviewRequest) (*models.GrantReview, error) {
	review, err := r.inner.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update grant review: %w", err)
	}

	r.invalidateLists()
	r.getByIDCache.Invalidate(id)

	return review, nil
}

func (r *cachingReviewsRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	if err := r.inner.UpdateEmbedding(ctx, id, embedding); err != nil {
		return fmt.Errorf("update grant review embedding: %w", err)
	}

	r.invalidateLists()
	r.getByIDCache.Invalidate(id)

	return nil
}

func (r *cachingReviewsRepo) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete grant review: %w", err)
	}

	r.invalidateLists()
	r.getByIDCache.Invalidate(id)

	return nil
}

func (r *cachingReviewsRepo) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.inner.DeleteByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete grant reviews for user: %w", err)
	}

	r.invalidateLists()

	for _, id := range ids {
		r.getByIDCache.Invalidate(id)
	}

	return ids, nil
}
