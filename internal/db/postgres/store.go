// Package postgres serves KNN queries from a pgvector database laid out by the
// LangChain PGVector schema (langchain_pg_collection / langchain_pg_embedding).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/kailas-cloud/ragd/internal/db"
)

var _ db.Store = (*Store)(nil)

const searchSQL = `
SELECT e.id::text, e.document, COALESCE(e.cmetadata::text, '{}'), e.embedding <=> $1::vector AS distance
FROM langchain_pg_embedding e
JOIN langchain_pg_collection c ON e.collection_id = c.uuid
WHERE c.name = $2
ORDER BY distance
LIMIT $3`

const listSQL = `SELECT name FROM langchain_pg_collection ORDER BY name`

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements db.Store over database/sql with the pgx driver.
type Store struct {
	db *sql.DB
}

// NewStore opens a pooled connection. Connectivity is checked by WaitForReady.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Store{db: conn}, nil
}

// NewStoreForTest wraps an existing handle (test-only).
func NewStoreForTest(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady blocks until the database answers pings or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

// SearchKNN orders by pgvector cosine distance (<=>), nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, searchSQL, formatVector(q.Vector), q.Collection, q.K)
	if err != nil {
		return nil, &db.Error{Op: db.OpPgSearch, Err: err}
	}
	defer rows.Close()

	var entries []db.SearchEntry
	for rows.Next() {
		var (
			id, content, metadata string
			distance              float64
		)
		if err := rows.Scan(&id, &content, &metadata, &distance); err != nil {
			return nil, &db.Error{Op: db.OpPgSearch, Err: fmt.Errorf("scan row: %w", err)}
		}
		entries = append(entries, db.SearchEntry{
			Key:      id,
			Distance: distance,
			Fields: map[string]string{
				db.FieldContent:  content,
				db.FieldMetadata: metadata,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpPgSearch, Err: err}
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// ListCollections returns all LangChain collection names.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, &db.Error{Op: db.OpPgList, Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &db.Error{Op: db.OpPgList, Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpPgList, Err: err}
	}
	return names, nil
}

// formatVector renders a pgvector literal: "[0.1,0.2,0.3]".
func formatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
