package models

import (
	"encoding/json"
	"time"
)

// DocumentTypeGrantReview is the document_type stamped on reviews written through the service layer.
const DocumentTypeGrantReview = "grant_review"

// GrantReview represents a single row of the grant reviews table.
// Usage and Filters are never nil after a read: the table defaults them to empty objects.
type GrantReview struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Content      string          `json:"content"`
	MetaData     json.RawMessage `json:"meta_data,omitempty"`
	Embedding    []float32       `json:"embedding,omitempty"`
	DocumentType *string         `json:"document_type,omitempty"`
	Usage        json.RawMessage `json:"usage"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ContentHash  *string         `json:"content_hash,omitempty"`
	Filters      json.RawMessage `json:"filters"`
}

// GrantReviewWithScore is a review paired with its cosine similarity to a query embedding.
type GrantReviewWithScore struct {
	GrantReview
	Score float64 `json:"score"`
}

// CreateGrantReviewRequest represents the request to create a grant review.
// ID is optional; a UUID is assigned when empty. Usage and Filters are optional
// and take the table defaults (empty objects) when omitted.
type CreateGrantReviewRequest struct {
	ID           string          `json:"id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Name         string          `json:"name" validate:"required,min=1,max=255,no_null_bytes"`
	Content      string          `json:"content" validate:"required,min=1,no_null_bytes"`
	MetaData     json.RawMessage `json:"meta_data,omitempty" validate:"omitempty,json_object"`
	Embedding    []float32       `json:"embedding,omitempty"`
	DocumentType *string         `json:"document_type,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Usage        json.RawMessage `json:"usage,omitempty" validate:"omitempty,json_object"`
	ContentHash  *string         `json:"content_hash,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Filters      json.RawMessage `json:"filters,omitempty" validate:"omitempty,json_object"`
}

// UpdateGrantReviewRequest represents the request to update a grant review.
// The id is immutable; every other column can be replaced.
type UpdateGrantReviewRequest struct {
	Name         *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255,no_null_bytes"`
	Content      *string         `json:"content,omitempty" validate:"omitempty,min=1,no_null_bytes"`
	MetaData     json.RawMessage `json:"meta_data,omitempty" validate:"omitempty,json_object"`
	Embedding    []float32       `json:"embedding,omitempty"`
	DocumentType *string         `json:"document_type,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Usage        json.RawMessage `json:"usage,omitempty" validate:"omitempty,json_object"`
	ContentHash  *string         `json:"content_hash,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Filters      json.RawMessage `json:"filters,omitempty" validate:"omitempty,json_object"`
}

// ListGrantReviewsFilters represents filters for listing grant reviews.
// UserID matches the user_id key inside meta_data (served by the expression index).
type ListGrantReviewsFilters struct {
	UserID       *string `form:"user_id" validate:"omitempty,no_null_bytes"`
	DocumentType *string `form:"document_type" validate:"omitempty,no_null_bytes"`
	ContentHash  *string `form:"content_hash" validate:"omitempty,no_null_bytes"`
	Limit        int     `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset       int     `form:"offset" validate:"omitempty,min=0,max=2147483647"`
}

// ListGrantReviewsResponse represents the response for listing grant reviews.
type ListGrantReviewsResponse struct {
	Data   []GrantReview `json:"data"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// SearchGrantReviewsParams represents an approximate nearest-neighbor search
// over review embeddings.
type SearchGrantReviewsParams struct {
	Embedding    []float32 `json:"embedding" validate:"required,min=1"`
	Limit        int       `json:"limit" validate:"omitempty,min=1,max=100"`
	MinScore     float64   `json:"min_score" validate:"omitempty,gte=0,lte=1"`
	UserID       *string   `json:"user_id,omitempty" validate:"omitempty,no_null_bytes"`
	DocumentType *string   `json:"document_type,omitempty" validate:"omitempty,no_null_bytes"`
	Cursor       string    `json:"cursor,omitempty"`
}

// SearchGrantReviewsResult is a page of similarity search results.
// NextCursor is empty on the last page.
type SearchGrantReviewsResult struct {
	Data       []GrantReviewWithScore `json:"data"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// SearchGrantReviewsByTextRequest are the parameters for a keyword search over
// review names and content.
type SearchGrantReviewsByTextRequest struct {
	Query        *string `form:"q" json:"q" validate:"omitempty,no_null_bytes"`
	UserID       *string `form:"user_id" json:"user_id,omitempty" validate:"omitempty,no_null_bytes"`
	DocumentType *string `form:"document_type" json:"document_type,omitempty" validate:"omitempty,no_null_bytes"`
	Limit        int     `form:"limit" json:"limit" validate:"omitempty,min=1,max=1000"`
}

// RecentGrantReviewsResult is a keyset-paged slice of reviews in descending
// created_at order. NextCursor is empty on the last page.
type RecentGrantReviewsResult struct {
	Data       []GrantReview `json:"data"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ApplicationContent carries the original grant application a review refers to.
type ApplicationContent struct {
	ID           string          `json:"id" validate:"omitempty,max=255,no_null_bytes"`
	Name         string          `json:"name" validate:"omitempty,max=255,no_null_bytes"`
	Content      string          `json:"content" validate:"omitempty,no_null_bytes"`
	MetaData     json.RawMessage `json:"meta_data,omitempty" validate:"omitempty,json_object"`
	DocumentType string          `json:"document_type,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	CreatedAt    string          `json:"created_at,omitempty" validate:"omitempty,max=64,no_null_bytes"`
}

// AddReviewRequest represents the request to record a grant review for a user.
// The review id is derived from the content hash, so re-adding identical
// content conflicts instead of duplicating.
type AddReviewRequest struct {
	UserID        string             `json:"user_id" validate:"required,min=1,max=255,no_null_bytes"`
	ReviewContent string             `json:"review_content" validate:"required,min=1,no_null_bytes"`
	Application   ApplicationContent `json:"application"`
	Embedding     []float32          `json:"embedding,omitempty"`
}

// BulkDeleteResponse represents the response for bulk delete operation.
type BulkDeleteResponse struct {
	DeletedCount int64  `json:"deleted_count"`
	Message      string `json:"message"`
}
