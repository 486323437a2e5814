package repository

import (
	"context"
	"fmt"
	"strings"

	"estatechat/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// VectorRepository is the listing vector index backed by a pgvector table
// of (id, embedding, metadata jsonb).
type VectorRepository struct {
	db         *sqlx.DB
	table      string
	dimensions int
}

// NewVectorRepository creates a vector index over the given table
func NewVectorRepository(db *sqlx.DB, table string, dimensions int) (*VectorRepository, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid vector table name %q", table)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dimensions)
	}
	return &VectorRepository{db: db, table: table, dimensions: dimensions}, nil
}

// EnsureSchema creates the vector extension and table when missing.
func (r *VectorRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, r.table, r.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure vector schema: %w", err)
		}
	}
	return nil
}

type vectorHitRow struct {
	ID       string               `db:"id"`
	Metadata model.VectorMetadata `db:"metadata"`
	Score    float64              `db:"score"`
}

// Similar returns the k nearest entries to vector by cosine distance, most similar first.
func (r *VectorRepository) Similar(ctx context.Context, vector []float32, k int, filter model.MetadataFilter) ([]model.VectorHit, error) {
	if len(vector) != r.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), r.dimensions)
	}

	args := []interface{}{pgvector.NewVector(vector)}
	whereClauses := []string{"1=1"}

	filterClauses, filterArgs, argIndex, err := buildMetadataFilter(filter, 2)
	if err != nil {
		return nil, err
	}
	whereClauses = append(whereClauses, filterClauses...)
	args = append(args, filterArgs...)

	query := fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, r.table, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, k)

	var rows []vectorHitRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	hits := make([]model.VectorHit, len(rows))
	for i, row := range rows {
		hits[i] = model.VectorHit{
			ID:       row.ID,
			Text:     row.Metadata.Text,
			Score:    row.Score,
			Metadata: row.Metadata,
		}
	}
	return hits, nil
}

// Upsert writes a batch of entries in one transaction. Entries that fail validation
// are reported and skipped; a database error aborts the whole batch.
func (r *VectorRepository) Upsert(ctx context.Context, entries []model.VectorEntry) (int, []string) {
	var errs []string
	valid := make([]model.VectorEntry, 0, len(entries))

	for _, entry := range entries {
		if entry.Metadata.ID == "" {
			entry.Metadata.ID = entry.ID
		}
		if err := entry.Metadata.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("id %s: %v", entry.ID, err))
			continue
		}
		if entry.Metadata.ID != strings.TrimSpace(entry.ID) {
			errs = append(errs, fmt.Sprintf("id %s: metadata id %q does not match", entry.ID, entry.Metadata.ID))
			continue
		}
		if len(entry.Embedding) != r.dimensions {
			errs = append(errs, fmt.Sprintf("id %s: embedding has %d dimensions, expected %d", entry.ID, len(entry.Embedding), r.dimensions))
			continue
		}
		valid = append(valid, entry)
	}
	if len(valid) == 0 {
		return 0, errs
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, append(errs, fmt.Sprintf("failed to start transaction: %v", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = NOW()`, r.table))
	if err != nil {
		return 0, append(errs, fmt.Sprintf("failed to prepare statement: %v", err))
	}
	defer stmt.Close()

	for _, entry := range valid {
		if _, err := stmt.ExecContext(ctx, entry.Metadata.ID, pgvector.NewVector(entry.Embedding), entry.Metadata); err != nil {
			return 0, append(errs, fmt.Sprintf("id %s: %v (batch rolled back)", entry.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
	}
	return len(valid), errs
}

// Count returns the number of indexed entries
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// Dimensions returns the embedding size the index was created for
func (r *VectorRepository) Dimensions() int {
	return r.dimensions
}
