// Package testdb provides throwaway Postgres databases for integration tests.
// Set TEST_DATABASE_URL to reuse an existing server (it must have the pgvector
// extension available); otherwise a pgvector container is started per test.
package testdb

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/grantwise/reviewstore/pkg/database"
)

// Image pins the same Postgres major the production cluster runs.
const Image = "pgvector/pgvector:pg16"

const startupTimeout = 60 * time.Second

var tableSeq atomic.Int64

// Connect returns a connection pool with pgvector types registered. The pool is
// closed automatically when the test finishes.
func Connect(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	ctx := context.Background()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		url = startContainer(ctx, tb)
	}

	pool, err := database.NewPostgresPool(ctx, url, database.WithVectorTypes())
	require.NoError(tb, err)
	tb.Cleanup(pool.Close)

	return pool
}

// TableName returns a unique table name so tests sharing TEST_DATABASE_URL do
// not interfere with each other.
func TableName() string {
	return fmt.Sprintf("grant_reviews_%d_%d", os.Getpid(), tableSeq.Add(1))
}

func startContainer(ctx context.Context, tb testing.TB) string {
	tb.Helper()

	ctr, err := tcpostgres.Run(ctx, Image,
		tcpostgres.WithDatabase("reviewstore_test"),
		tcpostgres.WithUsername("reviewstore"),
		tcpostgres.WithPassword("reviewstore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	testcontainers.CleanupContainer(tb, ctr)
	require.NoError(tb, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(tb, err)

	return url
}
