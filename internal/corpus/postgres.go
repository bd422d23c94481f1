package corpus

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// DefaultTable is the table PostgresSource reads when none is configured.
const DefaultTable = "documents"

// Querier is the subset of *sql.DB that PostgresSource needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresSource reads documents from a table with filename and content
// columns.
type PostgresSource struct {
	db    Querier
	table string
}

// NewPostgresSource creates a PostgresSource over table.
func NewPostgresSource(db Querier, table string) *PostgresSource {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) Name() string { return "postgres:" + s.table }

func (s *PostgresSource) query() string {
	return fmt.Sprintf(
		"SELECT filename, content FROM %s ORDER BY filename",
		pq.QuoteIdentifier(s.table),
	)
}

func (s *PostgresSource) Load(ctx context.Context) ([]RawDocument, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var docs []RawDocument
	for rows.Next() {
		var doc RawDocument
		if err := rows.Scan(&doc.Filename, &doc.Content); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// Execer is the subset of *sql.DB and *sql.Tx that Import needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TableSchema returns the DDL for a documents table PostgresSource can read.
func TableSchema(table string) string {
	if table == "" {
		table = DefaultTable
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    filename   TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, pq.QuoteIdentifier(table))
}

// Import upserts docs into table keyed by filename.
func Import(ctx context.Context, db Execer, table string, docs []RawDocument) error {
	if table == "" {
		table = DefaultTable
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s (filename, content, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (filename) DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`,
		pq.QuoteIdentifier(table),
	)
	for _, doc := range docs {
		if _, err := db.ExecContext(ctx, stmt, doc.Filename, doc.Content); err != nil {
			return fmt.Errorf("importing %s: %w", doc.Filename, err)
		}
	}
	return nil
}
