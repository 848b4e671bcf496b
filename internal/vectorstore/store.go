// Package vectorstore provides similarity search over the indexed text
// segments. Ingestion itself is out of scope; Upsert exists so tests and
// seed scripts can populate a store.
package vectorstore

import (
	"context"

	"github.com/clairehq/claire/internal/rag"
)

// Store answers top-k similarity queries. Result order is the store's own;
// callers re-sort.
type Store interface {
	Search(ctx context.Context, vec []float32, maxResults int, minScore float64) ([]rag.Match, error)
}

// IndexedSegment is a segment together with its embedding, as written at
// ingestion time.
type IndexedSegment struct {
	Text      string
	Metadata  map[string]string
	Embedding []float32
}
