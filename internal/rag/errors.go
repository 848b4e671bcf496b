package rag

import "errors"

// ErrRetrievalUnavailable is returned when the embedding service or the
// vector store cannot be reached. The request fails as a whole; retry policy
// belongs to the transport layer, not here.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")
