package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchStore answers top-k similarity queries over the indexed segments.
// The store's own ordering is advisory; the retriever re-sorts.
type SearchStore interface {
	Search(ctx context.Context, vec []float32, maxResults int, minScore float64) ([]Match, error)
}

// Retriever performs embedding-based similarity retrieval.
type Retriever struct {
	embedder Embedder
	store    SearchStore
}

// NewRetriever creates a Retriever over the given embedder and store.
func NewRetriever(embedder Embedder, store SearchStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds query, asks the store for the top k candidates and returns
// them sorted by descending score. The sort is stable: ties keep the store's
// original order. Backend failures surface as ErrRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrievalUnavailable, err)
	}

	matches, err := r.store.Search(ctx, vec, k, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: searching store: %v", ErrRetrievalUnavailable, err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	slog.Debug("retrieved segments", "query_len", len(query), "k", k, "matches", len(matches))
	return matches, nil
}
