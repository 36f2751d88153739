// reviewstore is the operational front end for the grant reviews store. It
// creates and verifies the reviews table and reads and writes reviews through
// the caching data-access layer. Results are printed as JSON on stdout; logs
// go to stderr so output stays pipeable.
//
// Configuration comes from the environment, optionally via a .env file.
// DATABASE_URL is required; see internal/config for the full list.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/grantwise/reviewstore/internal/config"
	"github.com/grantwise/reviewstore/internal/models"
	"github.com/grantwise/reviewstore/internal/observability"
	"github.com/grantwise/reviewstore/internal/repository"
	"github.com/grantwise/reviewstore/internal/schema"
	"github.com/grantwise/reviewstore/internal/service"
	"github.com/grantwise/reviewstore/internal/validation"
	"github.com/grantwise/reviewstore/pkg/cache"
	"github.com/grantwise/reviewstore/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1

	tracerScope     = "github.com/grantwise/reviewstore/cmd/reviewstore"
	shutdownTimeout = 10 * time.Second
)

var (
	errUnknownCommand   = errors.New("unknown command")
	errSchemaDrift      = errors.New("schema drift detected")
	errDropNotConfirmed = errors.New("drop-schema requires -confirm")
)

const usageText = `reviewstore manages the grant reviews store.

Usage:

  reviewstore <command> [flags]

Schema commands:
  ensure-schema   create the pgvector extension, schema, table, and indexes
  verify-schema   compare the live table against the expected definition
  drop-schema     drop the reviews table (requires -confirm)

Review commands:
  add             ingest a review document (JSON from -file or stdin)
  create          insert a review row as given (JSON from -file or stdin)
  get             fetch one review by -id
  list            list reviews by -user/-type/-content-hash or a -filters query string
  count           count reviews matching the list filters
  user-reviews    reviews for one user, newest first
  latest          the most recent review for one user
  recent          recent reviews across all users, keyset paged by -cursor
  search          similarity search with an embedding (JSON array from -file or stdin)
  search-text     keyword search over name and content
  update          update review fields (JSON from -file or stdin)
  set-embedding   replace (-file) or clear (-clear) a review's embedding
  delete          delete one review by -id
  delete-user     delete every review belonging to -user

Run 'reviewstore <command> -h' for the flags of a command.
Configuration comes from the environment; DATABASE_URL is required.
`

func main() {
	os.Exit(run())
}

func run() int {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()

		return exitFailure
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()

		return exitSuccess
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One request ID per invocation so every log line of a run can be correlated.
	ctx = context.WithValue(ctx, observability.RequestIDKey, uuid.NewString())

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)

		return exitFailure
	}
	defer a.Close()

	if err := a.dispatch(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}

		slog.Error("Command failed", "command", args[0], "error", err)

		return exitFailure
	}

	return exitSuccess
}

// setupLogging configures slog with the specified log level. The handler writes
// to stderr and injects trace and request IDs from the context.
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(handler)))
}

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

// app holds the wired dependencies shared by all subcommands.
type app struct {
	cfg            *config.Config
	def            *schema.Definition
	db             *pgxpool.Pool
	schema         *schema.Manager
	reviews        *service.ReviewsService
	tracer         trace.Tracer
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	def, err := schema.New(schema.Config{
		SchemaName: cfg.SchemaName,
		TableName:  cfg.TableName,
		Dimension:  cfg.EmbeddingDimension,
		IVFLists:   cfg.VectorIndexLists,
	})
	if err != nil {
		return nil, fmt.Errorf("build table definition: %w", err)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithVectorTypes(),
		database.WithPoolLimits(cfg.DatabaseMaxConns, cfg.DatabaseMinConns, cfg.DatabaseMaxConnLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	meterProvider, metricsHandler, metrics, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
		ServiceName: cfg.ServiceName,
		Exporter:    cfg.OtelMetricsExporter,
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("create meter provider: %w", err)
	}

	tracerProvider, err := observability.NewTracerProvider(cfg)
	if err != nil {
		_ = observability.ShutdownMeterProvider(ctx, meterProvider)
		db.Close()

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	cleanup := func() {
		_ = observability.ShutdownTracerProvider(ctx, tracerProvider)
		_ = observability.ShutdownMeterProvider(ctx, meterProvider)
		db.Close()
	}

	var (
		storeMetrics observability.StoreMetrics
		cacheMetrics observability.CacheMetrics
	)
	if metrics != nil {
		storeMetrics = metrics.Store
		cacheMetrics = metrics.Cache
	}

	identity := func(key string) string { return key }

	getByIDCache, err := cache.NewLoaderCache[string, *models.GrantReview](cfg.CacheSize, cfg.CacheTTL, identity)
	if err != nil {
		cleanup()

		return nil, fmt.Errorf("create review cache: %w", err)
	}

	userCache, err := cache.NewLoaderCache[service.UserListKey, []models.GrantReview](cfg.CacheSize, cfg.CacheTTL, service.UserListKeyToString)
	if err != nil {
		cleanup()

		return nil, fmt.Errorf("create user list cache: %w", err)
	}

	latestCache, err := cache.NewLoaderCache[string, *models.GrantReview](cfg.CacheSize, cfg.CacheTTL, identity)
	if err != nil {
		cleanup()

		return nil, fmt.Errorf("create latest review cache: %w", err)
	}

	repo := repository.NewGrantReviewsRepository(db, def)
	cachingRepo := service.NewCachingReviewsRepository(repo, getByIDCache, userCache, latestCache, cacheMetrics)

	reviews := service.NewReviewsService(service.ReviewsServiceParams{
		Repo:      cachingRepo,
		Dimension: cfg.EmbeddingDimension,
		Metrics:   storeMetrics,
		Logger:    slog.Default(),
	})

	a := &app{
		cfg:            cfg,
		def:            def,
		db:             db,
		schema:         schema.NewManager(db, def),
		reviews:        reviews,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}

	if tracerProvider != nil {
		a.tracer = tracerProvider.Tracer(tracerScope)
	}

	if metricsHandler != nil {
		a.metricsServer = startMetricsServer(cfg.MetricsAddr, metricsHandler)
	}

	return a, nil
}

// startMetricsServer serves the Prometheus scrape endpoint in the background.
// Only started when the prometheus exporter is configured; mostly useful for
// long-running commands like bulk ingests.
func startMetricsServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	return srv
}

// Close flushes telemetry and releases the connection pool. Uses a fresh
// timeout context so shutdown still completes after a canceled command.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server shutdown failed", "error", err)
		}
	}

	if err := observability.ShutdownTracerProvider(ctx, a.tracerProvider); err != nil {
		slog.Error("Tracer provider shutdown failed", "error", err)
	}

	if err := observability.ShutdownMeterProvider(ctx, a.meterProvider); err != nil {
		slog.Error("Meter provider shutdown failed", "error", err)
	}

	a.db.Close()
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	if a.tracer != nil {
		var span trace.Span
		ctx, span = a.tracer.Start(ctx, "reviewstore."+name)
		defer span.End()
	}

	switch name {
	case "ensure-schema":
		return a.cmdEnsureSchema(ctx, args)
	case "verify-schema":
		return a.cmdVerifySchema(ctx, args)
	case "drop-schema":
		return a.cmdDropSchema(ctx, args)
	case "add":
		return a.cmdAdd(ctx, args)
	case "create":
		return a.cmdCreate(ctx, args)
	case "get":
		return a.cmdGet(ctx, args)
	case "list":
		return a.cmdList(ctx, args)
	case "count":
		return a.cmdCount(ctx, args)
	case "user-reviews":
		return a.cmdUserReviews(ctx, args)
	case "latest":
		return a.cmdLatest(ctx, args)
	case "recent":
		return a.cmdRecent(ctx, args)
	case "search":
		return a.cmdSearch(ctx, args)
	case "search-text":
		return a.cmdSearchText(ctx, args)
	case "update":
		return a.cmdUpdate(ctx, args)
	case "set-embedding":
		return a.cmdSetEmbedding(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "delete-user":
		return a.cmdDeleteUser(ctx, args)
	default:
		printUsage()

		return fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
}

func (a *app) cmdEnsureSchema(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ensure-schema", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.schema.Ensure(ctx); err != nil {
		return err
	}

	fmt.Printf("Table %s is ready.\n", a.def.QualifiedTable())

	return nil
}

func (a *app) cmdVerifySchema(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-schema", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := a.schema.Verify(ctx)
	if err != nil {
		return err
	}

	if err := printJSON(report); err != nil {
		return err
	}

	if !report.Clean() {
		return errSchemaDrift
	}

	return nil
}

func (a *app) cmdDropSchema(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drop-schema", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "actually drop the table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*confirm {
		return errDropNotConfirmed
	}

	if err := a.schema.Drop(ctx); err != nil {
		return err
	}

	fmt.Printf("Dropped table %s.\n", a.def.QualifiedTable())

	return nil
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	file := fs.String("file", "-", "JSON review document, or - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req models.AddReviewRequest
	if err := readJSONInput(*file, &req); err != nil {
		return err
	}

	review, err := a.reviews.AddReview(ctx, &req)
	if err != nil {
		return err
	}

	return printJSON(review)
}

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	file := fs.String("file", "-", "JSON review row, or - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req models.CreateGrantReviewRequest
	if err := readJSONInput(*file, &req); err != nil {
		return err
	}

	review, err := a.reviews.CreateReview(ctx, &req)
	if err != nil {
		return err
	}

	return printJSON(review)
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	id := fs.String("id", "", "review id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	review, err := a.reviews.GetReview(ctx, *id)
	if err != nil {
		return err
	}

	return printJSON(review)
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	filtersQS := fs.String("filters", "", "query-string filters, e.g. 'user_id=u1&document_type=grant_review&limit=20'")
	user := fs.String("user", "", "filter by meta_data user_id")
	docType := fs.String("type", "", "filter by document_type")
	contentHash := fs.String("content-hash", "", "filter by content_hash")
	limit := fs.Int("limit", 0, "page size (default 50)")
	offset := fs.Int("offset", 0, "rows to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filters, err := parseListFilters(*filtersQS, *user, *docType, *contentHash, *limit, *offset)
	if err != nil {
		return err
	}

	resp, err := a.reviews.ListReviews(ctx, filters)
	if err != nil {
		return err
	}

	return printJSON(resp)
}

func (a *app) cmdCount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	filtersQS := fs.String("filters", "", "query-string filters, e.g. 'user_id=u1&document_type=grant_review'")
	user := fs.String("user", "", "filter by meta_data user_id")
	docType := fs.String("type", "", "filter by document_type")
	contentHash := fs.String("content-hash", "", "filter by content_hash")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filters, err := parseListFilters(*filtersQS, *user, *docType, *contentHash, 0, 0)
	if err != nil {
		return err
	}

	count, err := a.reviews.CountReviews(ctx, filters)
	if err != nil {
		return err
	}

	fmt.Println(count)

	return nil
}

// parseListFilters builds list filters from a query string when -filters is
// given, otherwise from the individual flags.
func parseListFilters(filtersQS, user, docType, contentHash string, limit, offset int) (*models.ListGrantReviewsFilters, error) {
	if filtersQS == "" {
		return &models.ListGrantReviewsFilters{
			UserID:       optString(user),
			DocumentType: optString(docType),
			ContentHash:  optString(contentHash),
			Limit:        limit,
			Offset:       offset,
		}, nil
	}

	values, err := url.ParseQuery(filtersQS)
	if err != nil {
		return nil, fmt.Errorf("parse -filters: %w", err)
	}

	var filters models.ListGrantReviewsFilters
	if err := validation.DecodeValues(values, &filters); err != nil {
		return nil, err
	}

	return &filters, nil
}

func (a *app) cmdUserReviews(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user-reviews", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	limit := fs.Int("limit", 0, "maximum rows (default 50)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reviews, err := a.reviews.ReviewsForUser(ctx, *user, *limit)
	if err != nil {
		return err
	}

	return printJSON(reviews)
}

func (a *app) cmdLatest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("latest", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	review, err := a.reviews.LatestReviewForUser(ctx, *user)
	if err != nil {
		return err
	}

	return printJSON(review)
}

func (a *app) cmdRecent(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recent", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "page size (default 50)")
	cursor := fs.String("cursor", "", "resume after the previous page's next_cursor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.reviews.RecentReviews(ctx, *limit, *cursor)
	if err != nil {
		return err
	}

	return printJSON(result)
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	file := fs.String("file", "-", "JSON embedding array, or - for stdin")
	user := fs.String("user", "", "filter by meta_data user_id")
	docType := fs.String("type", "", "filter by document_type")
	minScore := fs.Float64("min-score", 0, "minimum cosine similarity score (0 to 1)")
	limit := fs.Int("limit", 0, "page size (default 5)")
	cursor := fs.String("cursor", "", "resume after the previous page's next_cursor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var embedding []float32
	if err := readJSONInput(*file, &embedding); err != nil {
		return err
	}

	result, err := a.reviews.SearchSimilar(ctx, &models.SearchGrantReviewsParams{
		Embedding:    embedding,
		Limit:        *limit,
		MinScore:     *minScore,
		UserID:       optString(*user),
		DocumentType: optString(*docType),
		Cursor:       *cursor,
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

func (a *app) cmdSearchText(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search-text", flag.ContinueOnError)
	query := fs.String("q", "", "substring to match in name or content")
	user := fs.String("user", "", "filter by meta_data user_id")
	docType := fs.String("type", "", "filter by document_type")
	limit := fs.Int("limit", 0, "maximum rows (default 50)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reviews, err := a.reviews.SearchText(ctx, &models.SearchGrantReviewsByTextRequest{
		Query:        optString(*query),
		UserID:       optString(*user),
		DocumentType: optString(*docType),
		Limit:        *limit,
	})
	if err != nil {
		return err
	}

	return printJSON(reviews)
}

func (a *app) cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.String("id", "", "review id")
	file := fs.String("file", "-", "JSON fields to update, or - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req models.UpdateGrantReviewRequest
	if err := readJSONInput(*file, &req); err != nil {
		return err
	}

	review, err := a.reviews.UpdateReview(ctx, *id, &req)
	if err != nil {
		return err
	}

	return printJSON(review)
}

func (a *app) cmdSetEmbedding(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-embedding", flag.ContinueOnError)
	id := fs.String("id", "", "review id")
	file := fs.String("file", "-", "JSON embedding array, or - for stdin")
	clear := fs.Bool("clear", false, "set the embedding to null")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var embedding []float32
	if !*clear {
		if err := readJSONInput(*file, &embedding); err != nil {
			return err
		}
	}

	if err := a.reviews.SetReviewEmbedding(ctx, *id, embedding); err != nil {
		return err
	}

	if *clear {
		fmt.Printf("Cleared embedding for review %s.\n", *id)
	} else {
		fmt.Printf("Updated embedding for review %s.\n", *id)
	}

	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "review id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.reviews.DeleteReview(ctx, *id); err != nil {
		return err
	}

	fmt.Printf("Deleted review %s.\n", *id)

	return nil
}

func (a *app) cmdDeleteUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-user", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.reviews.DeleteReviewsForUser(ctx, *user)
	if err != nil {
		return err
	}

	return printJSON(resp)
}

// readJSONInput decodes one JSON document from path, or from stdin when path
// is empty or "-".
func readJSONInput(path string, v any) error {
	var (
		data []byte
		err  error
	)

	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON input: %w", err)
	}

	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	fmt.Println(string(out))

	return nil
}

// optString returns nil for the empty string so unset flags stay out of queries.
func optString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
