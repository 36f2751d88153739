package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	apperrors "github.com/grantwise/reviewstore/internal/errors"
	"github.com/grantwise/reviewstore/internal/models"
	"github.com/grantwise/reviewstore/internal/schema"
)

// Postgres error identifiers the reviews table can raise on writes.
const (
	pgCodeUniqueViolation  = "23505"
	pgCodeNotNullViolation = "23502"
	pgClassDataException   = "22"
)

// constraintError maps Postgres constraint and data errors to typed application
// errors: a unique violation on the primary key becomes ConflictError, NOT NULL
// violations and class 22 data exceptions (e.g. a vector whose dimension does not
// match the embedding column) become ValidationError.
func constraintError(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, false
	}

	switch {
	case pgErr.Code == pgCodeUniqueViolation:
		return apperrors.NewConflictError("grant review", "grant review with this id already exists"), true
	case pgErr.Code == pgCodeNotNullViolation:
		return apperrors.NewValidationError(pgErr.ColumnName, pgErr.ColumnName+" must not be null"), true
	case strings.HasPrefix(pgErr.Code, pgClassDataException):
		return apperrors.NewValidationError("", pgErr.Message), true
	}

	return nil, false
}

// SearchOptions control a nearest-neighbor search over review embeddings.
// AfterDistance resumes a search past the last row of the previous page; it holds
// that row's cosine distance. Nil means start from the closest row.
type SearchOptions struct {
	Limit         int
	MinScore      float64
	UserID        *string
	DocumentType  *string
	AfterDistance *float64
}

// GrantReviewsRepository handles data access for grant reviews. The table
// identifier comes from a validated schema definition, so interpolating it into
// query text is safe.
type GrantReviewsRepository struct {
	db    *pgxpool.Pool
	table string
}

// NewGrantReviewsRepository creates a grant reviews repository bound to the table
// described by def.
func NewGrantReviewsRepository(db *pgxpool.Pool, def *schema.Definition) *GrantReviewsRepository {
	return &GrantReviewsRepository{db: db, table: def.QualifiedTable()}
}

// buildInsertQuery builds the INSERT statement for a new review. Columns with a
// table default (usage, filters, created_at, updated_at) are listed only when the
// request provides a value, so omitted fields take their defaults.
func buildInsertQuery(table, id string, req *models.CreateGrantReviewRequest) (query string, args []any) {
	columns := []string{"id", "name", "content"}
	args = []any{id, req.Name, req.Content}

	if req.MetaData != nil {
		columns = append(columns, "meta_data")
		args = append(args, req.MetaData)
	}

	if req.Embedding != nil {
		columns = append(columns, "embedding")
		args = append(args, pgvector.NewVector(req.Embedding))
	}

	if req.DocumentType != nil {
		columns = append(columns, "document_type")
		args = append(args, *req.DocumentType)
	}

	if req.Usage != nil {
		columns = append(columns, "usage")
		args = append(args, req.Usage)
	}

	if req.ContentHash != nil {
		columns = append(columns, "content_hash")
		args = append(args, *req.ContentHash)
	}

	if req.Filters != nil {
		columns = append(columns, "filters")
		args = append(args, req.Filters)
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query = fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		RETURNING id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
	`, table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	return query, args
}

// Create inserts a new grant review. When req.ID is empty a random UUID is
// generated. Inserting an id that already exists returns ConflictError.
func (r *GrantReviewsRepository) Create(ctx context.Context, req *models.CreateGrantReviewRequest) (*models.GrantReview, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	query, args := buildInsertQuery(r.table, id, req)

	var review models.GrantReview

	var emb nullableEmbedding

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
		&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
		&review.ContentHash, &review.Filters,
	)
	if err != nil {
		if typed, ok := constraintError(err); ok {
			return nil, typed
		}

		return nil, fmt.Errorf("failed to create grant review: %w", err)
	}

	review.Embedding = emb

	return &review, nil
}

// GetByID retrieves a single grant review by ID.
func (r *GrantReviewsRepository) GetByID(ctx context.Context, id string) (*models.GrantReview, error) {
	query := fmt.Sprintf(`
		SELECT id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
		FROM %s
		WHERE id = $1
	`, r.table)

	var review models.GrantReview

	var emb nullableEmbedding

	err := r.db.QueryRow(ctx, query, id).Scan(
		&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
		&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
		&review.ContentHash, &review.Filters,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("grant review", "grant review not found")
		}

		return nil, fmt.Errorf("failed to get grant review: %w", err)
	}

	review.Embedding = emb

	return &review, nil
}

// buildReviewFilterConditions builds the WHERE clause and arguments for list and
// count queries. user_id matches the meta_data payload through the same
// expression the user_id index covers.
func buildReviewFilterConditions(filters *models.ListGrantReviewsFilters) (whereClause string, args []any) {
	var conditions []string

	argCount := 1

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("meta_data->>'user_id' = $%d", argCount))
		args = append(args, *filters.UserID)
		argCount++
	}

	if filters.DocumentType != nil {
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", argCount))
		args = append(args, *filters.DocumentType)
		argCount++
	}

	if filters.ContentHash != nil {
		conditions = append(conditions, fmt.Sprintf("content_hash = $%d", argCount))
		args = append(args, *filters.ContentHash)
	}

	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves grant reviews with optional filters, newest first.
func (r *GrantReviewsRepository) List(ctx context.Context, filters *models.ListGrantReviewsFilters) ([]models.GrantReview, error) {
	query := fmt.Sprintf(`
		SELECT id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
		FROM %s
	`, r.table)

	whereClause, args := buildReviewFilterConditions(filters)
	query += whereClause
	argCount := len(args) + 1

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)

		args = append(args, filters.Limit)
		argCount++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)

		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grant reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.GrantReview{} // Initialize as empty slice, not nil

	for rows.Next() {
		var review models.GrantReview

		var emb nullableEmbedding

		err := rows.Scan(
			&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
			&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
			&review.ContentHash, &review.Filters,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant review: %w", err)
		}

		review.Embedding = emb

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grant reviews: %w", err)
	}

	return reviews, nil
}

// Count returns the total count of grant reviews matching the filters.
func (r *GrantReviewsRepository) Count(ctx context.Context, filters *models.ListGrantReviewsFilters) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)

	whereClause, args := buildReviewFilterConditions(filters)
	query += whereClause

	var count int64

	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count grant reviews: %w", err)
	}

	return count, nil
}

// ListByUser returns the reviews whose meta_data user_id matches, newest first.
// A limit of 0 returns every matching review.
func (r *GrantReviewsRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.GrantReview, error) {
	query := fmt.Sprintf(`
		SELECT id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
		FROM %s
		WHERE meta_data->>'user_id' = $1
		ORDER BY created_at DESC
	`, r.table)

	args := []any{userID}

	if limit > 0 {
		query += " LIMIT $2"

		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grant reviews for user: %w", err)
	}
	defer rows.Close()

	reviews := []models.GrantReview{} // Initialize as empty slice, not nil

	for rows.Next() {
		var review models.GrantReview

		var emb nullableEmbedding

		err := rows.Scan(
			&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
			&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
			&review.ContentHash, &review.Filters,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant review: %w", err)
		}

		review.Embedding = emb

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grant reviews for user: %w", err)
	}

	return reviews, nil
}

// LatestByUser returns the most recent review for the user by created_at.
func (r *GrantReviewsRepository) LatestByUser(ctx context.Context, userID string) (*models.GrantReview, error) {
	query := fmt.Sprintf(`
		SELECT id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
		FROM %s
		WHERE meta_data->>'user_id' = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, r.table)

	var review models.GrantReview

	var emb nullableEmbedding

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
		&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
		&review.ContentHash, &review.Filters,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("grant review", "no grant reviews for user")
		}

		return nil, fmt.Errorf("failed to get latest grant review: %w", err)
	}

	review.Embedding = emb

	return &review, nil
}

// ListRecent returns reviews ordered newest first with keyset pagination over
// (created_at, id). The after pair is the last row of the previous page; an empty
// afterID starts from the newest row.
func (r *GrantReviewsRepository) ListRecent(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]models.GrantReview, error) {
	var (
		query string
		args  []any
	)

	if afterID == "" {
		query = fmt.Sprintf(`
			SELECT id, name, content, meta_data, embedding, document_type,
				usage, created_at, updated_at, content_hash, filters
			FROM %s
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`, r.table)
		args = []any{limit}
	} else {
		query = fmt.Sprintf(`
			SELECT id, name, content, meta_data, embedding, document_type,
				usage, created_at, updated_at, content_hash, filters
			FROM %s
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, r.table)
		args = []any{afterCreatedAt, afterID, limit}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent grant reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.GrantReview{} // Initialize as empty slice, not nil

	for rows.Next() {
		var review models.GrantReview

		var emb nullableEmbedding

		err := rows.Scan(
			&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
			&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
			&review.ContentHash, &review.Filters,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant review: %w", err)
		}

		review.Embedding = emb

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent grant reviews: %w", err)
	}

	return reviews, nil
}

// buildVectorSearchQuery builds the nearest-neighbor query. Score is cosine
// similarity (1 - distance) and rows come back in ascending distance order. The
// cursor condition is strictly greater than the previous page's last distance, so
// rows tied exactly on distance with that row are not revisited.
func buildVectorSearchQuery(table string, embedding pgvector.Vector, opts *SearchOptions) (query string, args []any) {
	args = []any{embedding}
	conditions := []string{"embedding IS NOT NULL"}

	argCount := 2

	if opts.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("meta_data->>'user_id' = $%d", argCount))
		args = append(args, *opts.UserID)
		argCount++
	}

	if opts.DocumentType != nil {
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", argCount))
		args = append(args, *opts.DocumentType)
		argCount++
	}

	if opts.MinScore > 0 {
		conditions = append(conditions, fmt.Sprintf("(1 - (embedding <=> $1)) >= $%d", argCount))
		args = append(args, opts.MinScore)
		argCount++
	}

	if opts.AfterDistance != nil {
		conditions = append(conditions, fmt.Sprintf("(embedding <=> $1) > $%d", argCount))
		args = append(args, *opts.AfterDistance)
		argCount++
	}

	query = fmt.Sprintf(`
		SELECT id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters,
			(1 - (embedding <=> $1)) AS score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, table, strings.Join(conditions, " AND "), argCount)

	args = append(args, opts.Limit)

	return query, args
}

// NearestByEmbedding returns the reviews closest to the query embedding by cosine
// distance, with cosine similarity exposed as Score. Rows without an embedding
// never match.
func (r *GrantReviewsRepository) NearestByEmbedding(ctx context.Context, embedding []float32, opts *SearchOptions) ([]models.GrantReviewWithScore, error) {
	query, args := buildVectorSearchQuery(r.table, pgvector.NewVector(embedding), opts)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if typed, ok := constraintError(err); ok {
			return nil, typed
		}

		return nil, fmt.Errorf("failed to search grant reviews: %w", err)
	}
	defer rows.Close()

	results := []models.GrantReviewWithScore{} // Initialize as empty slice, not nil

	for rows.Next() {
		var result models.GrantReviewWithScore

		var emb nullableEmbedding

		err := rows.Scan(
			&result.ID, &result.Name, &result.Content, &result.MetaData, &emb,
			&result.DocumentType, &result.Usage, &result.CreatedAt, &result.UpdatedAt,
			&result.ContentHash, &result.Filters,
			&result.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant review search result: %w", err)
		}

		result.Embedding = emb

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		if typed, ok := constraintError(err); ok {
			return nil, typed
		}

		return nil, fmt.Errorf("error iterating grant review search results: %w", err)
	}

	return results, nil
}

// errSearchQueryRequired is returned when a text search request has no query.
var errSearchQueryRequired = errors.New("query parameter is required")

// escapeILIKE escapes ILIKE wildcards in user input. Backslash is escaped first
// so the escapes it introduces are not re-escaped.
func escapeILIKE(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)

	return s
}

// buildTextSearchQuery builds a keyword search over review names and content.
// The limit is used exactly as provided; defaults and capping are the caller's
// concern.
func buildTextSearchQuery(table string, req *models.SearchGrantReviewsByTextRequest) (query string, args []any, err error) {
	if req.Query == nil || *req.Query == "" {
		return "", nil, errSearchQueryRequired
	}

	pattern := "%" + escapeILIKE(*req.Query) + "%"
	args = []any{pattern}
	conditions := []string{`(name ILIKE $1 ESCAPE '\' OR content ILIKE $1 ESCAPE '\')`}

	argCount := 2

	if req.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("meta_data->>'user_id' = $%d", argCount))
		args = append(args, *req.UserID)
		argCount++
	}

	if req.DocumentType != nil {
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", argCount))
		args = append(args, *req.DocumentType)
		argCount++
	}

	query = fmt.Sprintf(`
		SELECT id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
		FROM %s
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, table, strings.Join(conditions, " AND "), argCount)

	args = append(args, req.Limit)

	return query, args, nil
}

// SearchByText returns reviews whose name or content matches the query
// case-insensitively, newest first.
func (r *GrantReviewsRepository) SearchByText(ctx context.Context, req *models.SearchGrantReviewsByTextRequest) ([]models.GrantReview, error) {
	query, args, err := buildTextSearchQuery(r.table, req)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("q", err.Error())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search grant reviews by text: %w", err)
	}
	defer rows.Close()

	reviews := []models.GrantReview{} // Initialize as empty slice, not nil

	for rows.Next() {
		var review models.GrantReview

		var emb nullableEmbedding

		err := rows.Scan(
			&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
			&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
			&review.ContentHash, &review.Filters,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant review: %w", err)
		}

		review.Embedding = emb

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grant review text search results: %w", err)
	}

	return reviews, nil
}

// buildReviewUpdateQuery builds an UPDATE query with SET clause and arguments.
// updated_at is always set alongside the changed columns. Returns the query
// string, arguments, and a boolean indicating if any updates were provided.
func buildReviewUpdateQuery(
	table string, req *models.UpdateGrantReviewRequest, id string, updatedAt time.Time,
) (query string, args []any, hasUpdates bool) {
	var updates []string

	argCount := 1

	if req.Name != nil {
		updates = append(updates, fmt.Sprintf("name = $%d", argCount))
		args = append(args, *req.Name)
		argCount++
	}

	if req.Content != nil {
		updates = append(updates, fmt.Sprintf("content = $%d", argCount))
		args = append(args, *req.Content)
		argCount++
	}

	if req.MetaData != nil {
		updates = append(updates, fmt.Sprintf("meta_data = $%d", argCount))
		args = append(args, req.MetaData)
		argCount++
	}

	if req.Embedding != nil {
		updates = append(updates, fmt.Sprintf("embedding = $%d", argCount))
		args = append(args, pgvector.NewVector(req.Embedding))
		argCount++
	}

	if req.DocumentType != nil {
		updates = append(updates, fmt.Sprintf("document_type = $%d", argCount))
		args = append(args, *req.DocumentType)
		argCount++
	}

	if req.Usage != nil {
		updates = append(updates, fmt.Sprintf("usage = $%d", argCount))
		args = append(args, req.Usage)
		argCount++
	}

	if req.ContentHash != nil {
		updates = append(updates, fmt.Sprintf("content_hash = $%d", argCount))
		args = append(args, *req.ContentHash)
		argCount++
	}

	if req.Filters != nil {
		updates = append(updates, fmt.Sprintf("filters = $%d", argCount))
		args = append(args, req.Filters)
		argCount++
	}

	if len(updates) == 0 {
		return "", nil, false
	}

	updates = append(updates, fmt.Sprintf("updated_at = $%d", argCount))
	args = append(args, updatedAt)
	argCount++

	args = append(args, id)

	query = fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE id = $%d
		RETURNING id, name, content, meta_data, embedding, document_type,
			usage, created_at, updated_at, content_hash, filters
	`, table, strings.Join(updates, ", "), argCount)

	return query, args, true
}

// Update updates an existing grant review. Only the provided fields change;
// updated_at is always refreshed when at least one field is provided.
func (r *GrantReviewsRepository) Update(
	ctx context.Context, id string, req *models.UpdateGrantReviewRequest,
) (*models.GrantReview, error) {
	query, args, hasUpdates := buildReviewUpdateQuery(r.table, req, id, time.Now())
	if !hasUpdates {
		return r.GetByID(ctx, id)
	}

	var review models.GrantReview

	var emb nullableEmbedding

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&review.ID, &review.Name, &review.Content, &review.MetaData, &emb,
		&review.DocumentType, &review.Usage, &review.CreatedAt, &review.UpdatedAt,
		&review.ContentHash, &review.Filters,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("grant review", "grant review not found")
		}

		if typed, ok := constraintError(err); ok {
			return nil, typed
		}

		return nil, fmt.Errorf("failed to update grant review: %w", err)
	}

	review.Embedding = emb

	return &review, nil
}

// UpdateEmbedding sets the embedding vector for a grant review. Pass nil to clear
// the embedding (set to NULL).
func (r *GrantReviewsRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	var result pgconn.CommandTag

	var err error

	if embedding == nil {
		result, err = r.db.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET embedding = NULL, updated_at = $1 WHERE id = $2`, r.table),
			time.Now(), id,
		)
	} else {
		vec := pgvector.NewVector(embedding)

		result, err = r.db.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET embedding = $1, updated_at = $2 WHERE id = $3`, r.table),
			vec, time.Now(), id,
		)
	}

	if err != nil {
		if typed, ok := constraintError(err); ok {
			return typed
		}

		return fmt.Errorf("failed to update grant review embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("grant review", "grant review not found")
	}

	return nil
}

// Delete removes a grant review.
func (r *GrantReviewsRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete grant review: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("grant review", "grant review not found")
	}

	return nil
}

// DeleteByUser deletes all grant reviews whose meta_data user_id matches.
// It returns the deleted IDs (via RETURNING id) so callers can e.g. invalidate caches.
func (r *GrantReviewsRepository) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE meta_data->>'user_id' = $1
		RETURNING id
	`, r.table)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete grant reviews for user: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted grant review id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted grant review ids: %w", err)
	}

	return ids, nil
}
