package service

import (
	"context"
	"testing"
	"time"

	"github.com/grantwise/reviewstore/internal/models"
	"github.com/grantwise/reviewstore/pkg/cache"
)

func newReviewCaches(t *testing.T) (
	*cache.LoaderCache[string, *models.GrantReview],
	*cache.LoaderCache[UserListKey, []models.GrantReview],
	*cache.LoaderCache[string, *models.GrantReview],
) {
	t.Helper()

	getByIDCache, err := cache.NewLoaderCache[string, *models.GrantReview](8, 0, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	userCache, err := cache.NewLoaderCache[UserListKey, []models.GrantReview](8, 0, UserListKeyToString)
	if err != nil {
		t.Fatal(err)
	}

	latestCache, err := cache.NewLoaderCache[string, *models.GrantReview](8, 0, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	return getByIDCache, userCache, latestCache
}

type countingCacheMetrics struct {
	hits   map[string]int
	misses map[string]int
}

func newCountingCacheMetrics() *countingCacheMetrics {
	return &countingCacheMetrics{hits: map[string]int{}, misses: map[string]int{}}
}

func (c *countingCacheMetrics) RecordHit(_ context.Context, cacheName string) {
	c.hits[cacheName]++
}

func (c *countingCacheMetrics) RecordMiss(_ context.Context, cacheName string) {
	c.misses[cacheName]++
}

func TestCachingReviewsRepository_GetByID_cached(t *testing.T) {
	getByIDCalls := 0
	inner := &mockReviewsRepo{
		getByIDFunc: func(_ context.Context, id string) (*models.GrantReview, error) {
			getByIDCalls++

			return &models.GrantReview{ID: id}, nil
		},
	}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.GetByID(ctx, "rev-1")
	_, _ = repo.GetByID(ctx, "rev-1")

	if getByIDCalls != 1 {
		t.Errorf("GetByID calls = %d, want 1 (second call cached)", getByIDCalls)
	}
}

func TestCachingReviewsRepository_ListByUser_cached(t *testing.T) {
	listCalls := 0
	inner := &mockReviewsRepo{
		listByUserFunc: func(_ context.Context, _ string, _ int) ([]models.GrantReview, error) {
			listCalls++

			return []models.GrantReview{}, nil
		},
	}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.ListByUser(ctx, "user-1", 10)
	_, _ = repo.ListByUser(ctx, "user-1", 10)

	if listCalls != 1 {
		t.Errorf("ListByUser calls = %d, want 1 (second call cached)", listCalls)
	}

	// Different limit is a different key.
	_, _ = repo.ListByUser(ctx, "user-1", 20)

	if listCalls != 2 {
		t.Errorf("ListByUser calls = %d, want 2 (different limit loads again)", listCalls)
	}
}

func TestCachingReviewsRepository_LatestByUser_cached(t *testing.T) {
	latestCalls := 0
	inner := &mockReviewsRepo{
		latestByUserFunc: func(_ context.Context, userID string) (*models.GrantReview, error) {
			latestCalls++

			return &models.GrantReview{ID: "latest-" + userID}, nil
		},
	}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.LatestByUser(ctx, "user-1")
	_, _ = repo.LatestByUser(ctx, "user-1")

	if latestCalls != 1 {
		t.Errorf("LatestByUser calls = %d, want 1 (second call cached)", latestCalls)
	}
}

func TestCachingReviewsRepository_UpdateInvalidates(t *testing.T) {
	getByIDCalls := 0
	listCalls := 0
	latestCalls := 0
	inner := &mockReviewsRepo{
		getByIDFunc: func(_ context.Context, id string) (*models.GrantReview, error) {
			getByIDCalls++

			return &models.GrantReview{ID: id}, nil
		},
		listByUserFunc: func(_ context.Context, _ string, _ int) ([]models.GrantReview, error) {
			listCalls++

			return []models.GrantReview{}, nil
		},
		latestByUserFunc: func(_ context.Context, _ string) (*models.GrantReview, error) {
			latestCalls++

			return &models.GrantReview{}, nil
		},
	}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.GetByID(ctx, "rev-1")
	_, _ = repo.ListByUser(ctx, "user-1", 10)
	_, _ = repo.LatestByUser(ctx, "user-1")

	name := "renamed"
	if _, err := repo.Update(ctx, "rev-1", &models.UpdateGrantReviewRequest{Name: &name}); err != nil {
		t.Fatal(err)
	}

	_, _ = repo.GetByID(ctx, "rev-1")
	_, _ = repo.ListByUser(ctx, "user-1", 10)
	_, _ = repo.LatestByUser(ctx, "user-1")

	if getByIDCalls != 2 {
		t.Errorf("GetByID calls = %d, want 2 (update invalidates id)", getByIDCalls)
	}

	if listCalls != 2 {
		t.Errorf("ListByUser calls = %d, want 2 (update invalidates lists)", listCalls)
	}

	if latestCalls != 2 {
		t.Errorf("LatestByUser calls = %d, want 2 (update invalidates lists)", latestCalls)
	}
}

func TestCachingReviewsRepository_CreateInvalidatesLists(t *testing.T) {
	listCalls := 0
	inner := &mockReviewsRepo{
		listByUserFunc: func(_ context.Context, _ string, _ int) ([]models.GrantReview, error) {
			listCalls++

			return []models.GrantReview{}, nil
		},
	}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.ListByUser(ctx, "user-1", 10)

	if _, err := repo.Create(ctx, &models.CreateGrantReviewRequest{ID: "rev-2", Name: "n", Content: "c"}); err != nil {
		t.Fatal(err)
	}

	_, _ = repo.ListByUser(ctx, "user-1", 10)

	if listCalls != 2 {
		t.Errorf("ListByUser calls = %d, want 2 (create invalidates lists)", listCalls)
	}
}

func TestCachingReviewsRepository_DeleteByUserInvalidatesIDs(t *testing.T) {
	getByIDCalls := 0
	inner := &mockReviewsRepo{
		getByIDFunc: func(_ context.Context, id string) (*models.GrantReview, error) {
			getByIDCalls++

			return &models.GrantReview{ID: id}, nil
		},
		deleteByUserFunc: func(_ context.Context, _ string) ([]string, error) {
			return []string{"rev-1"}, nil
		},
	}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.GetByID(ctx, "rev-1")

	if _, err := repo.DeleteByUser(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}

	_, _ = repo.GetByID(ctx, "rev-1")

	if getByIDCalls != 2 {
		t.Errorf("GetByID calls = %d, want 2 (bulk delete invalidates returned ids)", getByIDCalls)
	}
}

func TestCachingReviewsRepository_RecordsHitAndMiss(t *testing.T) {
	inner := &mockReviewsRepo{}
	getByIDCache, userCache, latestCache := newReviewCaches(t)
	metrics := newCountingCacheMetrics()
	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, metrics)
	ctx := context.Background()

	_, _ = repo.GetByID(ctx, "rev-1")
	_, _ = repo.GetByID(ctx, "rev-1")

	if metrics.misses["review_get_by_id"] != 1 {
		t.Errorf("misses = %d, want 1", metrics.misses["review_get_by_id"])
	}

	if metrics.hits["review_get_by_id"] != 1 {
		t.Errorf("hits = %d, want 1", metrics.hits["review_get_by_id"])
	}
}

func TestCachingReviewsRepository_TTLBoundsStaleness(t *testing.T) {
	latestCalls := 0
	inner := &mockReviewsRepo{
		latestByUserFunc: func(_ context.Context, _ string) (*models.GrantReview, error) {
			latestCalls++

			return &models.GrantReview{}, nil
		},
	}

	getByIDCache, userCache, _ := newReviewCaches(t)

	// Rows written by other database clients never pass through this decorator,
	// so the TTL is what bounds how stale a cached answer can get.
	latestCache, err := cache.NewLoaderCache[string, *models.GrantReview](8, 50*time.Millisecond, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	repo := NewCachingReviewsRepository(inner, getByIDCache, userCache, latestCache, nil)
	ctx := context.Background()

	_, _ = repo.LatestByUser(ctx, "user-1")
	_, _ = repo.LatestByUser(ctx, "user-1")

	if latestCalls != 1 {
		t.Fatalf("LatestByUser calls = %d, want 1 before expiry", latestCalls)
	}

	time.Sleep(80 * time.Millisecond)

	_, _ = repo.LatestByUser(ctx, "user-1")

	if latestCalls != 2 {
		t.Errorf("LatestByUser calls = %d, want 2 after TTL expiry", latestCalls)
	}
}
