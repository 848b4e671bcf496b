package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/clairehq/claire/internal/rag"
)

// MemoryStore is a brute-force cosine-similarity store held in process.
// Useful for unit tests and local runs without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	segments []IndexedSegment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert appends segments to the store.
func (s *MemoryStore) Upsert(_ context.Context, segs []IndexedSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, segs...)
	return nil
}

// Search scores every stored segment against vec and returns up to
// maxResults with similarity >= minScore, most similar first.
func (s *MemoryStore) Search(_ context.Context, vec []float32, maxResults int, minScore float64) ([]rag.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []rag.Match
	for _, seg := range s.segments {
		score := cosine(vec, seg.Embedding)
		if score < minScore {
			continue
		}
		meta := make(map[string]string, len(seg.Metadata))
		for k, v := range seg.Metadata {
			meta[k] = v
		}
		matches = append(matches, rag.Match{
			Segment: rag.Segment{Text: seg.Text, Metadata: meta},
			Score:   score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// Len returns the number of stored segments.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
