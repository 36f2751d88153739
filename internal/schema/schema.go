// Package schema defines the grant reviews table and its indexes, generates the
// DDL for them, and manages their lifecycle against a live database.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultSchemaName is the Postgres schema the reviews table lives in.
	DefaultSchemaName = "ai"
	// DefaultTableName is the reviews table name.
	DefaultTableName = "grant_reviews"
	// DefaultDimension is the embedding vector width.
	DefaultDimension = 1536
	// DefaultIVFLists is the cluster count for the ivfflat similarity index.
	DefaultIVFLists = 100
)

// identifierPattern matches unquoted Postgres identifiers. 63 bytes is the
// server-side identifier limit.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ErrInvalidIdentifier is returned for schema or table names that cannot be
// used as unquoted identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Config controls table placement and vector settings.
// Zero values take the package defaults.
type Config struct {
	SchemaName string
	TableName  string
	Dimension  int
	IVFLists   int
}

// Column describes one column of the reviews table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    string
	PrimaryKey bool
}

// Index describes one secondary index. Expression is the parenthesized index
// expression, Using the access method (empty means btree), With the storage
// parameters.
type Index struct {
	Name       string
	Expression string
	Using      string
	With       string
}

// Definition is a validated table definition ready to produce DDL.
type Definition struct {
	schemaName string
	tableName  string
	dimension  int
	ivfLists   int
}

// New validates cfg and returns a Definition. Identifiers must be lowercase
// unquoted Postgres identifiers; dimension and list count must be positive.
func New(cfg Config) (*Definition, error) {
	if cfg.SchemaName == "" {
		cfg.SchemaName = DefaultSchemaName
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.IVFLists == 0 {
		cfg.IVFLists = DefaultIVFLists
	}

	if !identifierPattern.MatchString(cfg.SchemaName) {
		return nil, fmt.Errorf("%w: schema name %q", ErrInvalidIdentifier, cfg.SchemaName)
	}
	if !identifierPattern.MatchString(cfg.TableName) {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidIdentifier, cfg.TableName)
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.IVFLists < 0 {
		return nil, fmt.Errorf("ivfflat list count must be positive, got %d", cfg.IVFLists)
	}

	return &Definition{
		schemaName: cfg.SchemaName,
		tableName:  cfg.TableName,
		dimension:  cfg.Dimension,
		ivfLists:   cfg.IVFLists,
	}, nil
}

// SchemaName returns the Postgres schema name.
func (d *Definition) SchemaName() string { return d.schemaName }

// TableName returns the bare table name.
func (d *Definition) TableName() string { return d.tableName }

// Dimension returns the embedding vector width.
func (d *Definition) Dimension() int { return d.dimension }

// QualifiedTable returns the schema-qualified table name for use in SQL.
func (d *Definition) QualifiedTable() string {
	return d.schemaName + "." + d.tableName
}

// Columns returns the column set of the reviews table, in DDL order.
// usage and filters default to empty JSON objects so they are never absent,
// and created_at/updated_at default to the insertion time.
func (d *Definition) Columns() []Column {
	return []Column{
		{Name: "id", Type: "TEXT", PrimaryKey: true},
		{Name: "name", Type: "TEXT"},
		{Name: "content", Type: "TEXT"},
		{Name: "meta_data", Type: "JSONB", Nullable: true},
		{Name: "embedding", Type: fmt.Sprintf("VECTOR(%d)", d.dimension), Nullable: true},
		{Name: "document_type", Type: "TEXT", Nullable: true},
		{Name: "usage", Type: "JSONB", Default: "'{}'::jsonb"},
		{Name: "created_at", Type: "TIMESTAMPTZ", Default: "now()"},
		{Name: "updated_at", Type: "TIMESTAMPTZ", Default: "now()"},
		{Name: "content_hash", Type: "TEXT", Nullable: true},
		{Name: "filters", Type: "JSONB", Nullable: true, Default: "'{}'::jsonb"},
	}
}

// Indexes returns the secondary indexes: approximate nearest-neighbor cosine
// search over embedding, owner lookups through the user_id key of meta_data,
// and most-recent-first ordering on created_at.
func (d *Definition) Indexes() []Index {
	return []Index{
		{
			Name:       "idx_" + d.tableName + "_embedding",
			Expression: "(embedding vector_cosine_ops)",
			Using:      "ivfflat",
			With:       fmt.Sprintf("lists = %d", d.ivfLists),
		},
		{
			Name:       "idx_" + d.tableName + "_user_id",
			Expression: "((meta_data->>'user_id'))",
		},
		{
			Name:       "idx_" + d.tableName + "_created_at",
			Expression: "(created_at DESC)",
		},
	}
}

// CreateSchemaSQL returns the statement creating the Postgres schema.
func (d *Definition) CreateSchemaSQL() string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.schemaName
}

// CreateTableSQL returns the CREATE TABLE statement for the reviews table.
func (d *Definition) CreateTableSQL() string {
	var b strings.Builder

	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(d.QualifiedTable())
	b.WriteString(" (\n")

	cols := d.Columns()
	for i, col := range cols {
		b.WriteString("    ")
		b.WriteString(col.Name)
		b.WriteString(" ")
		b.WriteString(col.Type)

		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		} else if !col.Nullable {
			b.WriteString(" NOT NULL")
		}

		if col.Default != "" {
			b.WriteString(" DEFAULT ")
			b.WriteString(col.Default)
		}

		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString(")")

	return b.String()
}

// CreateIndexSQL returns one CREATE INDEX statement per index.
func (d *Definition) CreateIndexSQL() []string {
	indexes := d.Indexes()
	statements := make([]string, 0, len(indexes))

	for _, idx := range indexes {
		var b strings.Builder

		b.WriteString("CREATE INDEX IF NOT EXISTS ")
		b.WriteString(idx.Name)
		b.WriteString(" ON ")
		b.WriteString(d.QualifiedTable())

		if idx.Using != "" {
			b.WriteString(" USING ")
			b.WriteString(idx.Using)
		}

		b.WriteString(" ")
		b.WriteString(idx.Expression)

		if idx.With != "" {
			b.WriteString(" WITH (")
			b.WriteString(idx.With)
			b.WriteString(")")
		}

		statements = append(statements, b.String())
	}

	return statements
}

// DropTableSQL returns the statement dropping the reviews table and, with it,
// all three indexes.
func (d *Definition) DropTableSQL() string {
	return "DROP TABLE IF EXISTS " + d.QualifiedTable()
}
