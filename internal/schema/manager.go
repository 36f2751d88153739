package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Manager applies and inspects the reviews schema on a live database.
type Manager struct {
	db  *pgxpool.Pool
	def *Definition
}

// NewManager creates a schema manager for the given definition.
func NewManager(db *pgxpool.Pool, def *Definition) *Manager {
	return &Manager{db: db, def: def}
}

// EnsureExtension installs the pgvector extension when it is not already present.
func (m *Manager) EnsureExtension(ctx context.Context) error {
	var exists bool

	err := m.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')",
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check vector extension: %w", err)
	}

	if exists {
		return nil
	}

	if _, err := m.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	slog.Info("Installed pgvector extension")

	return nil
}

// EnsureSchema creates the Postgres schema when missing.
func (m *Manager) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, m.def.CreateSchemaSQL()); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", m.def.SchemaName(), err)
	}

	return nil
}

// EnsureTable creates the reviews table when missing.
func (m *Manager) EnsureTable(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, m.def.CreateTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", m.def.QualifiedTable(), err)
	}

	return nil
}

// EnsureIndexes creates the three secondary indexes when missing.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	for _, stmt := range m.def.CreateIndexSQL() {
		if _, err := m.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Ensure brings up extension, schema, table, and indexes. It is idempotent and
// safe to run on every startup.
func (m *Manager) Ensure(ctx context.Context) error {
	if err := m.EnsureExtension(ctx); err != nil {
		return err
	}

	if err := m.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := m.EnsureTable(ctx); err != nil {
		return err
	}

	if err := m.EnsureIndexes(ctx); err != nil {
		return err
	}

	slog.Info("Ensured grant reviews schema", "table", m.def.QualifiedTable())

	return nil
}

// TableExists reports whether the reviews table is present.
func (m *Manager) TableExists(ctx context.Context) (bool, error) {
	var exists bool

	err := m.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`, m.def.SchemaName(), m.def.TableName()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}

	return exists, nil
}

// Drop removes the reviews table and its indexes.
func (m *Manager) Drop(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, m.def.DropTableSQL()); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", m.def.QualifiedTable(), err)
	}

	slog.Info("Dropped grant reviews table", "table", m.def.QualifiedTable())

	return nil
}

// columnInfo is one row of information_schema.columns.
type columnInfo struct {
	Name       string
	UDTName    string
	IsNullable string
}

// VerifyReport lists the differences between the declared schema and the live one.
type VerifyReport struct {
	TableExists    bool
	ColumnDrift    []string
	MissingIndexes []string
}

// Clean reports whether the live schema matches the definition.
func (r *VerifyReport) Clean() bool {
	return r.TableExists && len(r.ColumnDrift) == 0 && len(r.MissingIndexes) == 0
}

// Verify introspects the live table and compares it against the definition.
func (m *Manager) Verify(ctx context.Context) (*VerifyReport, error) {
	report := &VerifyReport{}

	exists, err := m.TableExists(ctx)
	if err != nil {
		return nil, err
	}

	report.TableExists = exists
	if !exists {
		return report, nil
	}

	columns, err := m.fetchColumns(ctx)
	if err != nil {
		return nil, err
	}

	report.ColumnDrift = diffColumns(m.def.Columns(), columns)

	indexNames, err := m.fetchIndexNames(ctx)
	if err != nil {
		return nil, err
	}

	report.MissingIndexes = diffIndexes(m.def.Indexes(), indexNames)

	return report, nil
}

func (m *Manager) fetchColumns(ctx context.Context) ([]columnInfo, error) {
	rows, err := m.db.Query(ctx, `
		SELECT column_name, udt_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, m.def.SchemaName(), m.def.TableName())
	if err != nil {
		return nil, fmt.Errorf("failed to introspect columns: %w", err)
	}
	defer rows.Close()

	var columns []columnInfo
	for rows.Next() {
		var col columnInfo
		if err := rows.Scan(&col.Name, &col.UDTName, &col.IsNullable); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column info: %w", err)
	}

	return columns, nil
}

func (m *Manager) fetchIndexNames(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.Query(ctx, `
		SELECT indexname FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2
	`, m.def.SchemaName(), m.def.TableName())
	if err != nil {
		return nil, fmt.Errorf("failed to introspect indexes: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index name: %w", err)
		}
		names[name] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index names: %w", err)
	}

	return names, nil
}

// expectedUDT maps a declared column type to the udt_name reported by
// information_schema (e.g. VECTOR(1536) shows up as the user-defined type "vector").
func expectedUDT(declared string) string {
	t := strings.ToLower(declared)

	switch {
	case strings.HasPrefix(t, "vector"):
		return "vector"
	case t == "timestamptz":
		return "timestamptz"
	default:
		return t
	}
}

// diffColumns compares declared columns against introspected ones and returns
// one human-readable drift entry per difference.
func diffColumns(want []Column, got []columnInfo) []string {
	byName := make(map[string]columnInfo, len(got))
	for _, col := range got {
		byName[col.Name] = col
	}

	var drift []string

	for _, col := range want {
		actual, ok := byName[col.Name]
		if !ok {
			drift = append(drift, fmt.Sprintf("missing column %s", col.Name))
			continue
		}

		if udt := expectedUDT(col.Type); actual.UDTName != udt {
			drift = append(drift, fmt.Sprintf("column %s: type %s, want %s", col.Name, actual.UDTName, udt))
		}

		wantNullable := col.Nullable && !col.PrimaryKey
		actualNullable := actual.IsNullable == "YES"
		if actualNullable != wantNullable {
			drift = append(drift, fmt.Sprintf("column %s: nullable %t, want %t", col.Name, actualNullable, wantNullable))
		}
	}

	return drift
}

// diffIndexes returns the names of declared indexes absent from the live table.
func diffIndexes(want []Index, got map[string]bool) []string {
	var missing []string

	for _, idx := range want {
		if !got[idx.Name] {
			missing = append(missing, idx.Name)
		}
	}

	return missing
}
