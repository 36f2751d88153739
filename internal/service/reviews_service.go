package service

import (
	"context"
	"crypto/md5" //nolint:gosec // md5 is a content fingerprint here, not a credential hash
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/grantwise/reviewstore/internal/errors"
	"github.com/grantwise/reviewstore/internal/models"
	"github.com/grantwise/reviewstore/internal/observability"
	"github.com/grantwise/reviewstore/internal/repository"
	"github.com/grantwise/reviewstore/internal/validation"
	"github.com/grantwise/reviewstore/pkg/vectors"
)

// Page size defaults applied when the caller does not pick a limit. The
// repository uses limits exactly as provided, so capping lives here.
const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 5
	DefaultRecentLimit = 50
	MaxListLimit       = 1000
)

// Sentinel errors for review operations.
var (
	ErrMissingID     = errors.New("id is required")
	ErrMissingUserID = errors.New("user_id is required")
)

// ReviewsRepository provides the data operations ReviewsService needs.
type ReviewsRepository interface {
	Create(ctx context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error)
	GetByID(ctx context.Context, id string) (*models.GrantReview, error)
	List(ctx context.Context, filters *models.ListGrantReviewsFilters) ([]models.GrantReview, error)
	Count(ctx context.Context, filters *models.ListGrantReviewsFilters) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.GrantReview, error)
	LatestByUser(ctx context.Context, userID string) (*models.GrantReview, error)
	ListRecent(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error)
	NearestByEmbedding(ctx context.Context, embedding []float32, opts *repository.SearchOptions) ([]models.GrantReviewWithScore, error)
	SearchByText(ctx context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error)
	Update(ctx context.Context, id string, req *models.UpdateGrantReviewRequest) (*models.GrantReview, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) ([]string, error)
}

// ReviewsService coordinates validation, storage, and retrieval of grant reviews.
type ReviewsService struct {
	repo      ReviewsRepository
	dimension int
	metrics   observability.StoreMetrics
	logger    *slog.Logger
}

// ReviewsServiceParams configures ReviewsService. Metrics may be nil (no metrics recorded).
type ReviewsServiceParams struct {
	Repo      ReviewsRepository
	Dimension int
	Metrics   observability.StoreMetrics
	Logger    *slog.Logger
}

// NewReviewsService creates a ReviewsService.
func NewReviewsService(p ReviewsServiceParams) *ReviewsService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewsService{
		repo:      p.Repo,
		dimension: p.Dimension,
		metrics:   p.Metrics,
		logger:    logger,
	}
}

// CreateReview validates and stores a new grant review. Fields omitted from the
// request keep their table defaults, so a request without usage or filters
// stores empty JSON objects for both.
func (s *ReviewsService) CreateReview(ctx context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	if req.Embedding != nil {
		if err := vectors.CheckDimension(req.Embedding, s.dimension); err != nil {
			return nil, apperrors.NewValidationError("embedding", err.Error())
		}
	}

	review, err := s.repo.Create(ctx, req)
	if err != nil {
		s.logger.Error("create review failed", "error", err)

		return nil, fmt.Errorf("create grant review: %w", err)
	}

	s.recordCreated(ctx, review)
	s.logger.Info("created grant review", "reviewId", review.ID)

	return review, nil
}

// AddReview stores a review of a grant application. The review id and
// content_hash are both the MD5 hex digest of the review content, so storing the
// same review text twice fails with a conflict. meta_data carries the user id and
// the application's id and date, which is what user-scoped lookups filter on.
func (s *ReviewsService) AddReview(ctx context.Context, req *models.AddReviewRequest) (*models.GrantReview, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	if req.Embedding != nil {
		if err := vectors.CheckDimension(req.Embedding, s.dimension); err != nil {
			return nil, apperrors.NewValidationError("embedding", err.Error())
		}
	}

	//nolint:gosec // md5 is a content fingerprint here, not a credential hash
	contentHash := fmt.Sprintf("%x", md5.Sum([]byte(req.ReviewContent)))

	applicationDate := req.Application.CreatedAt
	if applicationDate == "" {
		applicationDate = time.Now().Format(time.RFC3339)
	}

	metaData, err := json.Marshal(map[string]any{
		"user_id":          req.UserID,
		"application_id":   req.Application.ID,
		"application_date": applicationDate,
		"review_type":      models.DocumentTypeGrantReview,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal review meta_data: %w", err)
	}

	docType := models.DocumentTypeGrantReview

	review, err := s.repo.Create(ctx, &models.CreateGrantReviewRequest{
		ID:           contentHash,
		Name:         "Grant Review - " + req.UserID,
		Content:      req.ReviewContent,
		MetaData:     metaData,
		Embedding:    req.Embedding,
		DocumentType: &docType,
		Usage:        json.RawMessage(`{}`),
		ContentHash:  &contentHash,
		Filters:      json.RawMessage(`{}`),
	})
	if err != nil {
		s.logger.Error("add review failed", "error", err, "userId", req.UserID)

		return nil, fmt.Errorf("add grant review: %w", err)
	}

	s.recordCreated(ctx, review)
	s.logger.Info("saved grant review", "userId", req.UserID, "reviewId", review.ID)

	return review, nil
}

// GetReview retrieves a single grant review by id.
func (s *ReviewsService) GetReview(ctx context.Context, id string) (*models.GrantReview, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get grant review: %w", err)
	}

	return review, nil
}

// ListReviews returns reviews matching the filters, newest first, along with the
// total match count for offset pagination.
func (s *ReviewsService) ListReviews(ctx context.Context, filters *models.ListGrantReviewsFilters) (*models.ListGrantReviewsResponse, error) {
	if err := validation.ValidateStruct(filters); err != nil {
		return nil, err
	}

	f := *filters
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}

	reviews, err := s.repo.List(ctx, &f)
	if err != nil {
		s.logger.Error("list reviews failed", "error", err)

		return nil, fmt.Errorf("list grant reviews: %w", err)
	}

	total, err := s.repo.Count(ctx, &f)
	if err != nil {
		s.logger.Error("count reviews failed", "error", err)

		return nil, fmt.Errorf("count grant reviews: %w", err)
	}

	return &models.ListGrantReviewsResponse{
		Data:   reviews,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	}, nil
}

// CountReviews returns the number of reviews matching the filters.
func (s *ReviewsService) CountReviews(ctx context.Context, filters *models.ListGrantReviewsFilters) (int64, error) {
	if err := validation.ValidateStruct(filters); err != nil {
		return 0, err
	}

	count, err := s.repo.Count(ctx, filters)
	if err != nil {
		return 0, fmt.Errorf("count grant reviews: %w", err)
	}

	return count, nil
}

// ReviewsForUser returns all reviews for the user, newest first. A limit of 0
// returns every review.
func (s *ReviewsService) ReviewsForUser(ctx context.Context, userID string, limit int) ([]models.GrantReview, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	reviews, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		s.logger.Error("list reviews for user failed", "error", err, "userId", userID)

		return nil, fmt.Errorf("list grant reviews for user: %w", err)
	}

	return reviews, nil
}

// LatestReviewForUser returns the most recent review for the user. Returns a
// NotFoundError when the user has no reviews.
func (s *ReviewsService) LatestReviewForUser(ctx context.Context, userID string) (*models.GrantReview, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	review, err := s.repo.LatestByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("latest grant review for user: %w", err)
	}

	return review, nil
}

// RecentReviews returns reviews ordered newest first. If cursor is non-empty it
// resumes after the last row of the previous page; NextCursor is set when a full
// page came back, meaning there may be a next page.
func (s *ReviewsService) RecentReviews(ctx context.Context, limit int, cursor string) (models.RecentGrantReviewsResult, error) {
	out := models.RecentGrantReviewsResult{}

	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		afterCreatedAt time.Time
		afterID        string
	)

	if cursor != "" {
		var decErr error

		afterCreatedAt, afterID, decErr = DecodeRecencyCursor(cursor)
		if decErr != nil {
			return out, ErrInvalidCursor
		}
	}

	reviews, err := s.repo.ListRecent(ctx, limit, afterCreatedAt, afterID)
	if err != nil {
		s.logger.Error("list recent reviews failed", "error", err)

		return out, fmt.Errorf("list recent grant reviews: %w", err)
	}

	out.Data = reviews
	if len(reviews) == limit {
		last := reviews[len(reviews)-1]
		out.NextCursor = EncodeRecencyCursor(last.CreatedAt, last.ID)
	}

	return out, nil
}

// SearchSimilar returns the reviews closest to the query embedding by cosine
// similarity. If params.Cursor is non-empty it is used for keyset paging.
// NextCursor is set when a full page came back, meaning there may be a next page.
func (s *ReviewsService) SearchSimilar(ctx context.Context, params *models.SearchGrantReviewsParams) (models.SearchGrantReviewsResult, error) {
	out := models.SearchGrantReviewsResult{}

	if err := validation.ValidateStruct(params); err != nil {
		return out, err
	}

	if err := vectors.CheckDimension(params.Embedding, s.dimension); err != nil {
		return out, apperrors.NewValidationError("embedding", err.Error())
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	opts := &repository.SearchOptions{
		Limit:        limit,
		MinScore:     params.MinScore,
		UserID:       params.UserID,
		DocumentType: params.DocumentType,
	}

	if params.Cursor != "" {
		lastDistance, _, decErr := DecodeSearchCursor(params.Cursor)
		if decErr != nil {
			return out, ErrInvalidCursor
		}

		opts.AfterDistance = &lastDistance
	}

	start := time.Now()

	results, err := s.repo.NearestByEmbedding(ctx, params.Embedding, opts)
	if err != nil {
		s.recordSearch(ctx, "vector", "error", time.Since(start))
		s.logger.Error("similarity search failed", "error", err)

		return out, fmt.Errorf("nearest grant reviews: %w", err)
	}

	s.recordSearch(ctx, "vector", "ok", time.Since(start))

	out.Data = results
	if len(results) == limit {
		last := results[len(results)-1]
		out.NextCursor = EncodeSearchCursor(1-last.Score, last.ID)
	}

	return out, nil
}

// SearchText returns reviews whose name or content matches the query
// case-insensitively, newest first.
func (s *ReviewsService) SearchText(ctx context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	r := *req
	if r.Limit <= 0 {
		r.Limit = DefaultListLimit
	}

	start := time.Now()

	reviews, err := s.repo.SearchByText(ctx, &r)
	if err != nil {
		s.recordSearch(ctx, "text", "error", time.Since(start))

		return nil, fmt.Errorf("search grant reviews by text: %w", err)
	}

	s.recordSearch(ctx, "text", "ok", time.Since(start))

	return reviews, nil
}

// UpdateReview validates and applies a partial update. updated_at is refreshed
// whenever at least one field changes.
func (s *ReviewsService) UpdateReview(ctx context.Context, id string, req *models.UpdateGrantReviewRequest) (*models.GrantReview, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	if req.Embedding != nil {
		if err := vectors.CheckDimension(req.Embedding, s.dimension); err != nil {
			return nil, apperrors.NewValidationError("embedding", err.Error())
		}
	}

	review, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update grant review: %w", err)
	}

	s.logger.Info("updated grant review", "reviewId", id)

	return review, nil
}

// SetReviewEmbedding sets or clears the embedding for a review. Pass nil to
// clear it.
func (s *ReviewsService) SetReviewEmbedding(ctx context.Context, id string, embedding []float32) error {
	if id == "" {
		return ErrMissingID
	}

	if embedding != nil {
		if err := vectors.CheckDimension(embedding, s.dimension); err != nil {
			return apperrors.NewValidationError("embedding", err.Error())
		}
	}

	if err := s.repo.UpdateEmbedding(ctx, id, embedding); err != nil {
		return fmt.Errorf("set grant review embedding: %w", err)
	}

	return nil
}

// DeleteReview removes a single grant review.
func (s *ReviewsService) DeleteReview(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete grant review: %w", err)
	}

	s.logger.Info("deleted grant review", "reviewId", id)

	return nil
}

// DeleteReviewsForUser removes every review belonging to the user and reports
// how many were deleted.
func (s *ReviewsService) DeleteReviewsForUser(ctx context.Context, userID string) (*models.BulkDeleteResponse, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	ids, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		s.logger.Error("delete reviews for user failed", "error", err, "userId", userID)

		return nil, fmt.Errorf("delete grant reviews for user: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordReviewsDeleted(ctx, len(ids))
	}

	s.logger.Info("deleted grant reviews for user", "userId", userID, "count", len(ids))

	return &models.BulkDeleteResponse{
		DeletedCount: int64(len(ids)),
		Message:      fmt.Sprintf("deleted %d grant reviews", len(ids)),
	}, nil
}

func (s *ReviewsService) recordCreated(ctx context.Context, review *models.GrantReview) {
	if s.metrics == nil {
		return
	}

	docType := ""
	if review.DocumentType != nil {
		docType = *review.DocumentType
	}

	s.metrics.RecordReviewCreated(ctx, docType)
}

func (s *ReviewsService) recordSearch(ctx context.Context, searchType, outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordSearch(ctx, searchType, outcome, elapsed)
}
