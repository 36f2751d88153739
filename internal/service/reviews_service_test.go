package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/grantwise/reviewstore/internal/errors"
	"github.com/grantwise/reviewstore/internal/models"
	"github.com/grantwise/reviewstore/internal/repository"
)

type mockReviewsRepo struct {
	createFunc          func(ctx context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error)
	getByIDFunc         func(ctx context.Context, id string) (*models.GrantReview, error)
	listFunc            func(ctx context.Context, filters *models.ListGrantReviewsFilters) ([]models.GrantReview, error)
	countFunc           func(ctx context.Context, filters *models.ListGrantReviewsFilters) (int64, error)
	listByUserFunc      func(ctx context.Context, userID string, limit int) ([]models.GrantReview, error)
	latestByUserFunc    func(ctx context.Context, userID string) (*models.GrantReview, error)
	listRecentFunc      func(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error)
	nearestFunc         func(ctx context.Context, embedding []float32, opts *repository.SearchOptions) ([]models.GrantReviewWithScore, error)
	searchByTextFunc    func(ctx context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error)
	updateFunc          func(ctx context.Context, id string, req *models.UpdateGrantReviewRequest) (*models.GrantReview, error)
	updateEmbeddingFunc func(ctx context.Context, id string, embedding []float32) error
	deleteFunc          func(ctx context.Context, id string) error
	deleteByUserFunc    func(ctx context.Context, userID string) ([]string, error)
}

func (m *mockReviewsRepo) Create(ctx context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}

	return &models.GrantReview{ID: req.ID, Name: req.Name, Content: req.Content}, nil
}

func (m *mockReviewsRepo) GetByID(ctx context.Context, id string) (*models.GrantReview, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}

	return &models.GrantReview{ID: id}, nil
}

func (m *mockReviewsRepo) List(ctx context.Context, filters *models.ListGrantReviewsFilters) ([]models.GrantReview, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filters)
	}

	return []models.GrantReview{}, nil
}

func (m *mockReviewsRepo) Count(ctx context.Context, filters *models.ListGrantReviewsFilters) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filters)
	}

	return 0, nil
}

func (m *mockReviewsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.GrantReview, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, limit)
	}

	return []models.GrantReview{}, nil
}

func (m *mockReviewsRepo) LatestByUser(ctx context.Context, userID string) (*models.GrantReview, error) {
	if m.latestByUserFunc != nil {
		return m.latestByUserFunc(ctx, userID)
	}

	return &models.GrantReview{}, nil
}

func (m *mockReviewsRepo) ListRecent(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, limit, afterCreatedAt, afterID)
	}

	return []models.GrantReview{}, nil
}

func (m *mockReviewsRepo) NearestByEmbedding(ctx context.Context, embedding []float32, opts *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
	if m.nearestFunc != nil {
		return m.nearestFunc(ctx, embedding, opts)
	}

	return []models.GrantReviewWithScore{}, nil
}

func (m *mockReviewsRepo) SearchByText(ctx context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error) {
	if m.searchByTextFunc != nil {
		return m.searchByTextFunc(ctx, req)
	}

	return []models.GrantReview{}, nil
}

func (m *mockReviewsRepo) Update(ctx context.Context, id string, req *models.UpdateGrantReviewRequest) (*models.GrantReview, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, req)
	}

	return &models.GrantReview{ID: id}, nil
}

func (m *mockReviewsRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	if m.updateEmbeddingFunc != nil {
		return m.updateEmbeddingFunc(ctx, id, embedding)
	}

	return nil
}

func (m *mockReviewsRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}

	return nil
}

func (m *mockReviewsRepo) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	if m.deleteByUserFunc != nil {
		return m.deleteByUserFunc(ctx, userID)
	}

	return nil, nil
}

type mockStoreMetrics struct {
	created  []string
	deleted  []int
	searches []string
}

func (m *mockStoreMetrics) RecordReviewCreated(_ context.Context, documentType string) {
	m.created = append(m.created, documentType)
}

func (m *mockStoreMetrics) RecordReviewsDeleted(_ context.Context, count int) {
	m.deleted = append(m.deleted, count)
}

func (m *mockStoreMetrics) RecordSearch(_ context.Context, searchType, outcome string, _ time.Duration) {
	m.searches = append(m.searches, searchType+"/"+outcome)
}

func TestReviewsService_AddReview(t *testing.T) {
	t.Run("stores review keyed by content hash", func(t *testing.T) {
		createCalled := false
		repo := &mockReviewsRepo{
			createFunc: func(_ context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				createCalled = true

				assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", req.ID)
				assert.Equal(t, "Grant Review - user-1", req.Name)
				assert.Equal(t, "hello world", req.Content)
				require.NotNil(t, req.DocumentType)
				assert.Equal(t, models.DocumentTypeGrantReview, *req.DocumentType)
				require.NotNil(t, req.ContentHash)
				assert.Equal(t, req.ID, *req.ContentHash)
				assert.JSONEq(t, `{}`, string(req.Usage))
				assert.JSONEq(t, `{}`, string(req.Filters))

				var meta map[string]string
				require.NoError(t, json.Unmarshal(req.MetaData, &meta))
				assert.Equal(t, "user-1", meta["user_id"])
				assert.Equal(t, "app-9", meta["application_id"])
				assert.Equal(t, "2024-03-01T10:00:00Z", meta["application_date"])
				assert.Equal(t, models.DocumentTypeGrantReview, meta["review_type"])

				return &models.GrantReview{ID: req.ID, Name: req.Name}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		review, err := svc.AddReview(context.Background(), &models.AddReviewRequest{
			UserID:        "user-1",
			ReviewContent: "hello world",
			Application: models.ApplicationContent{
				ID:        "app-9",
				CreatedAt: "2024-03-01T10:00:00Z",
			},
		})
		require.NoError(t, err)
		require.True(t, createCalled)
		assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", review.ID)
	})

	t.Run("same content always maps to the same id", func(t *testing.T) {
		var ids []string
		repo := &mockReviewsRepo{
			createFunc: func(_ context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				ids = append(ids, req.ID)

				return &models.GrantReview{ID: req.ID}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		for _, user := range []string{"user-1", "user-2"} {
			_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{
				UserID:        user,
				ReviewContent: "identical text",
			})
			require.NoError(t, err)
		}

		require.Len(t, ids, 2)
		assert.Equal(t, ids[0], ids[1])
	})

	t.Run("defaults application date when absent", func(t *testing.T) {
		repo := &mockReviewsRepo{
			createFunc: func(_ context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				var meta map[string]string
				require.NoError(t, json.Unmarshal(req.MetaData, &meta))
				require.NotEmpty(t, meta["application_date"])

				_, parseErr := time.Parse(time.RFC3339, meta["application_date"])
				assert.NoError(t, parseErr)

				return &models.GrantReview{ID: req.ID}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{
			UserID:        "user-1",
			ReviewContent: "no application attached",
		})
		require.NoError(t, err)
	})

	t.Run("missing user_id fails validation", func(t *testing.T) {
		createCalled := false
		repo := &mockReviewsRepo{
			createFunc: func(_ context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				createCalled = true

				return &models.GrantReview{ID: req.ID}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{ReviewContent: "x"})
		assert.ErrorContains(t, err, "validation failed")
		assert.False(t, createCalled)
	})

	t.Run("missing review content fails validation", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{UserID: "user-1"})
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("wrong dimension embedding rejected", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 3})

		_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{
			UserID:        "user-1",
			ReviewContent: "x",
			Embedding:     []float32{0.1},
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("duplicate content surfaces conflict", func(t *testing.T) {
		repo := &mockReviewsRepo{
			createFunc: func(_ context.Context, _ *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				return nil, apperrors.NewConflictError("grant review", "grant review with this id already exists")
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{
			UserID:        "user-1",
			ReviewContent: "already stored",
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("records created metric with document type", func(t *testing.T) {
		metrics := &mockStoreMetrics{}
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{
			createFunc: func(_ context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				return &models.GrantReview{ID: req.ID, DocumentType: req.DocumentType}, nil
			},
		}, Dimension: 2, Metrics: metrics})

		_, err := svc.AddReview(context.Background(), &models.AddReviewRequest{
			UserID:        "user-1",
			ReviewContent: "metered",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{models.DocumentTypeGrantReview}, metrics.created)
	})
}

func TestReviewsService_CreateReview(t *testing.T) {
	t.Run("missing name fails validation", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.CreateReview(context.Background(), &models.CreateGrantReviewRequest{Content: "x"})
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("missing content fails validation", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.CreateReview(context.Background(), &models.CreateGrantReviewRequest{Name: "x"})
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("wrong dimension embedding rejected", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 4})

		_, err := svc.CreateReview(context.Background(), &models.CreateGrantReviewRequest{
			Name:      "n",
			Content:   "c",
			Embedding: []float32{0.1, 0.2},
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("passes request through to repository", func(t *testing.T) {
		repo := &mockReviewsRepo{
			createFunc: func(_ context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
				assert.Equal(t, "rev-1", req.ID)
				assert.Equal(t, "Name", req.Name)

				return &models.GrantReview{ID: req.ID, Name: req.Name, Content: req.Content}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		review, err := svc.CreateReview(context.Background(), &models.CreateGrantReviewRequest{
			ID:      "rev-1",
			Name:    "Name",
			Content: "Content",
		})
		require.NoError(t, err)
		assert.Equal(t, "rev-1", review.ID)
	})
}

func TestReviewsService_GetReview(t *testing.T) {
	t.Run("missing id returns ErrMissingID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.GetReview(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("not found surfaces NotFoundError", func(t *testing.T) {
		repo := &mockReviewsRepo{
			getByIDFunc: func(_ context.Context, _ string) (*models.GrantReview, error) {
				return nil, apperrors.NewNotFoundError("grant review", "grant review not found")
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.GetReview(context.Background(), "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestReviewsService_ListReviews(t *testing.T) {
	t.Run("applies default limit and returns total", func(t *testing.T) {
		repo := &mockReviewsRepo{
			listFunc: func(_ context.Context, filters *models.ListGrantReviewsFilters) ([]models.GrantReview, error) {
				assert.Equal(t, DefaultListLimit, filters.Limit)

				return []models.GrantReview{{ID: "a"}, {ID: "b"}}, nil
			},
			countFunc: func(_ context.Context, _ *models.ListGrantReviewsFilters) (int64, error) {
				return 7, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		resp, err := svc.ListReviews(context.Background(), &models.ListGrantReviewsFilters{})
		require.NoError(t, err)
		assert.Len(t, resp.Data, 2)
		assert.Equal(t, int64(7), resp.Total)
		assert.Equal(t, DefaultListLimit, resp.Limit)
	})

	t.Run("does not mutate caller filters", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})
		filters := &models.ListGrantReviewsFilters{}

		_, err := svc.ListReviews(context.Background(), filters)
		require.NoError(t, err)
		assert.Equal(t, 0, filters.Limit)
	})

	t.Run("limit above maximum fails validation", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.ListReviews(context.Background(), &models.ListGrantReviewsFilters{Limit: MaxListLimit + 1})
		assert.ErrorContains(t, err, "validation failed")
	})
}

func TestReviewsService_ReviewsForUser(t *testing.T) {
	t.Run("missing user_id returns ErrMissingUserID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.ReviewsForUser(context.Background(), "", 10)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("passes user and limit through", func(t *testing.T) {
		repo := &mockReviewsRepo{
			listByUserFunc: func(_ context.Context, userID string, limit int) ([]models.GrantReview, error) {
				assert.Equal(t, "user-1", userID)
				assert.Equal(t, 3, limit)

				return []models.GrantReview{{ID: "a"}}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		reviews, err := svc.ReviewsForUser(context.Background(), "user-1", 3)
		require.NoError(t, err)
		assert.Len(t, reviews, 1)
	})
}

func TestReviewsService_LatestReviewForUser(t *testing.T) {
	t.Run("missing user_id returns ErrMissingUserID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.LatestReviewForUser(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("no reviews surfaces NotFoundError", func(t *testing.T) {
		repo := &mockReviewsRepo{
			latestByUserFunc: func(_ context.Context, _ string) (*models.GrantReview, error) {
				return nil, apperrors.NewNotFoundError("grant review", "no grant reviews for user")
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.LatestReviewForUser(context.Background(), "user-1")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestReviewsService_RecentReviews(t *testing.T) {
	t.Run("applies default limit", func(t *testing.T) {
		repo := &mockReviewsRepo{
			listRecentFunc: func(_ context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error) {
				assert.Equal(t, DefaultRecentLimit, limit)
				assert.True(t, afterCreatedAt.IsZero())
				assert.Empty(t, afterID)

				return []models.GrantReview{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.RecentReviews(context.Background(), 0, "")
		require.NoError(t, err)
	})

	t.Run("caps limit at maximum", func(t *testing.T) {
		repo := &mockReviewsRepo{
			listRecentFunc: func(_ context.Context, limit int, _ time.Time, _ string) ([]models.GrantReview, error) {
				assert.Equal(t, MaxListLimit, limit)

				return []models.GrantReview{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.RecentReviews(context.Background(), 5000, "")
		require.NoError(t, err)
	})

	t.Run("invalid cursor returns ErrInvalidCursor", func(t *testing.T) {
		listCalled := false
		repo := &mockReviewsRepo{
			listRecentFunc: func(_ context.Context, _ int, _ time.Time, _ string) ([]models.GrantReview, error) {
				listCalled = true

				return []models.GrantReview{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.RecentReviews(context.Background(), 10, "not-a-cursor")
		assert.ErrorIs(t, err, ErrInvalidCursor)
		assert.False(t, listCalled)
	})

	t.Run("cursor resumes after previous page", func(t *testing.T) {
		ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		repo := &mockReviewsRepo{
			listRecentFunc: func(_ context.Context, _ int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error) {
				assert.True(t, afterCreatedAt.Equal(ts))
				assert.Equal(t, "r-2", afterID)

				return []models.GrantReview{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.RecentReviews(context.Background(), 10, EncodeRecencyCursor(ts, "r-2"))
		require.NoError(t, err)
	})

	t.Run("full page sets next cursor from last row", func(t *testing.T) {
		ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		repo := &mockReviewsRepo{
			listRecentFunc: func(_ context.Context, _ int, _ time.Time, _ string) ([]models.GrantReview, error) {
				return []models.GrantReview{
					{ID: "r-1", CreatedAt: ts.Add(time.Minute)},
					{ID: "r-2", CreatedAt: ts},
				}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		result, err := svc.RecentReviews(context.Background(), 2, "")
		require.NoError(t, err)
		require.NotEmpty(t, result.NextCursor)

		createdAt, id, err := DecodeRecencyCursor(result.NextCursor)
		require.NoError(t, err)
		assert.True(t, createdAt.Equal(ts))
		assert.Equal(t, "r-2", id)
	})

	t.Run("short page leaves next cursor empty", func(t *testing.T) {
		repo := &mockReviewsRepo{
			listRecentFunc: func(_ context.Context, _ int, _ time.Time, _ string) ([]models.GrantReview, error) {
				return []models.GrantReview{{ID: "r-1", CreatedAt: time.Now()}}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		result, err := svc.RecentReviews(context.Background(), 2, "")
		require.NoError(t, err)
		assert.Empty(t, result.NextCursor)
	})
}

func TestReviewsService_SearchSimilar(t *testing.T) {
	t.Run("missing embedding fails validation", func(t *testing.T) {
		nearestCalled := false
		repo := &mockReviewsRepo{
			nearestFunc: func(_ context.Context, _ []float32, _ *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
				nearestCalled = true

				return nil, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{})
		assert.ErrorContains(t, err, "validation failed")
		assert.False(t, nearestCalled)
	})

	t.Run("wrong dimension embedding rejected", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 3})

		_, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{
			Embedding: []float32{0.1, 0.2},
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("applies default limit and passes filters", func(t *testing.T) {
		userID := "user-1"
		docType := "grant_review"
		repo := &mockReviewsRepo{
			nearestFunc: func(_ context.Context, embedding []float32, opts *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
				assert.Equal(t, []float32{0.1, 0.2}, embedding)
				assert.Equal(t, DefaultSearchLimit, opts.Limit)
				assert.InDelta(t, 0.4, opts.MinScore, 1e-9)
				require.NotNil(t, opts.UserID)
				assert.Equal(t, userID, *opts.UserID)
				require.NotNil(t, opts.DocumentType)
				assert.Equal(t, docType, *opts.DocumentType)
				assert.Nil(t, opts.AfterDistance)

				return []models.GrantReviewWithScore{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{
			Embedding:    []float32{0.1, 0.2},
			MinScore:     0.4,
			UserID:       &userID,
			DocumentType: &docType,
		})
		require.NoError(t, err)
	})

	t.Run("invalid cursor returns ErrInvalidCursor", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{
			Embedding: []float32{0.1, 0.2},
			Cursor:    "bogus",
		})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("cursor distance becomes AfterDistance", func(t *testing.T) {
		repo := &mockReviewsRepo{
			nearestFunc: func(_ context.Context, _ []float32, opts *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
				require.NotNil(t, opts.AfterDistance)
				assert.InDelta(t, 0.25, *opts.AfterDistance, 1e-9)

				return []models.GrantReviewWithScore{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{
			Embedding: []float32{0.1, 0.2},
			Cursor:    EncodeSearchCursor(0.25, "prev"),
		})
		require.NoError(t, err)
	})

	t.Run("full page sets next cursor from last row distance", func(t *testing.T) {
		repo := &mockReviewsRepo{
			nearestFunc: func(_ context.Context, _ []float32, _ *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
				return []models.GrantReviewWithScore{
					{GrantReview: models.GrantReview{ID: "r-1"}, Score: 0.9},
					{GrantReview: models.GrantReview{ID: "r-2"}, Score: 0.8},
				}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		result, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{
			Embedding: []float32{0.1, 0.2},
			Limit:     2,
		})
		require.NoError(t, err)
		require.Len(t, result.Data, 2)
		require.NotEmpty(t, result.NextCursor)

		distance, id, err := DecodeSearchCursor(result.NextCursor)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, distance, 1e-9)
		assert.Equal(t, "r-2", id)
	})

	t.Run("records search metrics on success and failure", func(t *testing.T) {
		metrics := &mockStoreMetrics{}
		repoErr := errors.New("connection reset")
		failing := true
		repo := &mockReviewsRepo{
			nearestFunc: func(_ context.Context, _ []float32, _ *repository.SearchOptions) ([]models.GrantReviewWithScore, error) {
				if failing {
					return nil, repoErr
				}

				return []models.GrantReviewWithScore{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2, Metrics: metrics})

		_, err := svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{Embedding: []float32{0.1, 0.2}})
		assert.ErrorIs(t, err, repoErr)

		failing = false

		_, err = svc.SearchSimilar(context.Background(), &models.SearchGrantReviewsParams{Embedding: []float32{0.1, 0.2}})
		require.NoError(t, err)

		assert.Equal(t, []string{"vector/error", "vector/ok"}, metrics.searches)
	})
}

func TestReviewsService_SearchText(t *testing.T) {
	t.Run("applies default limit without mutating request", func(t *testing.T) {
		query := "deadline"
		repo := &mockReviewsRepo{
			searchByTextFunc: func(_ context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error) {
				assert.Equal(t, DefaultListLimit, req.Limit)

				return []models.GrantReview{}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})
		req := &models.SearchGrantReviewsByTextRequest{Query: &query}

		_, err := svc.SearchText(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 0, req.Limit)
	})

	t.Run("missing query surfaces InvalidInputError", func(t *testing.T) {
		repo := &mockReviewsRepo{
			searchByTextFunc: func(_ context.Context, _ *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error) {
				return nil, apperrors.NewInvalidInputError("q", "query parameter is required")
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		_, err := svc.SearchText(context.Background(), &models.SearchGrantReviewsByTextRequest{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestReviewsService_UpdateReview(t *testing.T) {
	t.Run("missing id returns ErrMissingID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.UpdateReview(context.Background(), "", &models.UpdateGrantReviewRequest{})
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("wrong dimension embedding rejected", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 3})

		_, err := svc.UpdateReview(context.Background(), "rev-1", &models.UpdateGrantReviewRequest{
			Embedding: []float32{0.1},
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("passes update through", func(t *testing.T) {
		name := "New Name"
		repo := &mockReviewsRepo{
			updateFunc: func(_ context.Context, id string, req *models.UpdateGrantReviewRequest) (*models.GrantReview, error) {
				assert.Equal(t, "rev-1", id)
				require.NotNil(t, req.Name)
				assert.Equal(t, name, *req.Name)

				return &models.GrantReview{ID: id, Name: *req.Name}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		review, err := svc.UpdateReview(context.Background(), "rev-1", &models.UpdateGrantReviewRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, review.Name)
	})
}

func TestReviewsService_SetReviewEmbedding(t *testing.T) {
	t.Run("missing id returns ErrMissingID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		err := svc.SetReviewEmbedding(context.Background(), "", []float32{0.1, 0.2})
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("nil embedding clears the stored vector", func(t *testing.T) {
		repo := &mockReviewsRepo{
			updateEmbeddingFunc: func(_ context.Context, id string, embedding []float32) error {
				assert.Equal(t, "rev-1", id)
				assert.Nil(t, embedding)

				return nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		err := svc.SetReviewEmbedding(context.Background(), "rev-1", nil)
		require.NoError(t, err)
	})

	t.Run("wrong dimension embedding rejected", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 3})

		err := svc.SetReviewEmbedding(context.Background(), "rev-1", []float32{0.1})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestReviewsService_DeleteReview(t *testing.T) {
	t.Run("missing id returns ErrMissingID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		err := svc.DeleteReview(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("not found surfaces NotFoundError", func(t *testing.T) {
		repo := &mockReviewsRepo{
			deleteFunc: func(_ context.Context, _ string) error {
				return apperrors.NewNotFoundError("grant review", "grant review not found")
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2})

		err := svc.DeleteReview(context.Background(), "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestReviewsService_DeleteReviewsForUser(t *testing.T) {
	t.Run("missing user_id returns ErrMissingUserID", func(t *testing.T) {
		svc := NewReviewsService(ReviewsServiceParams{Repo: &mockReviewsRepo{}, Dimension: 2})

		_, err := svc.DeleteReviewsForUser(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("reports deleted count and records metric", func(t *testing.T) {
		metrics := &mockStoreMetrics{}
		repo := &mockReviewsRepo{
			deleteByUserFunc: func(_ context.Context, userID string) ([]string, error) {
				assert.Equal(t, "user-1", userID)

				return []string{"a", "b", "c"}, nil
			},
		}
		svc := NewReviewsService(ReviewsServiceParams{Repo: repo, Dimension: 2, Metrics: metrics})

		resp, err := svc.DeleteReviewsForUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.DeletedCount)
		assert.Equal(t, "deleted 3 grant reviews", resp.Message)
		assert.Equal(t, []int{3}, metrics.deleted)
	})
}
