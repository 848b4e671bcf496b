package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/clairehq/claire/internal/rag"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore implements Store using pgx + pgvector with cosine distance.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a store over the given table (the configured
// index name). The table name is interpolated into queries, so it must be a
// plain lowercase identifier.
func NewPostgresStore(pool *pgxpool.Pool, table string) (*PostgresStore, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid segments table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Search returns up to maxResults segments whose cosine similarity to vec is
// at least minScore, most similar first.
func (s *PostgresStore) Search(ctx context.Context, vec []float32, maxResults int, minScore float64) ([]rag.Match, error) {
	query := fmt.Sprintf(
		`SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		 FROM %s
		 WHERE embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vec), minScore, maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching segments: %w", err)
	}
	defer rows.Close()

	var matches []rag.Match
	for rows.Next() {
		var (
			content string
			metaRaw []byte
			score   float64
		)
		if err := rows.Scan(&content, &metaRaw, &score); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}

		metadata := map[string]string{}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &metadata); err != nil {
				metadata = map[string]string{}
			}
		}

		matches = append(matches, rag.Match{
			Segment: rag.Segment{Text: content, Metadata: metadata},
			Score:   score,
		})
	}
	return matches, rows.Err()
}

// Upsert inserts segments with their embeddings. Used by tests and seed
// tooling only; the service itself never writes.
func (s *PostgresStore) Upsert(ctx context.Context, segs []IndexedSegment) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (content, metadata, embedding) VALUES ($1, $2, $3)`, s.table)

	for _, seg := range segs {
		metadata := seg.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		metaRaw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		if _, err := s.pool.Exec(ctx, query, seg.Text, metaRaw, pgvector.NewVector(seg.Embedding)); err != nil {
			return fmt.Errorf("inserting segment: %w", err)
		}
	}
	return nil
}
