package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clairehq/claire/internal/memory"
)

// Generator is the single-shot text generation capability the transformer
// needs for query compression.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// compressionPromptText asks the model to fold conversation referents into
// the question so follow-ups ("what about its engine?") become retrievable
// on their own.
const compressionPromptText = `Read and understand the conversation between the User and the AI. Then analyze the new query from the User. Identify all relevant details, terms and context from both the conversation and the new query. Reformulate this query into a clear, concise and self-contained format suitable for information retrieval.

Conversation:
%s

User query: %s

It is very important that you provide only the reformulated query, without any additional text.`

// Transformer rewrites a question into a self-contained retrieval query
// using the session's conversation history.
type Transformer struct {
	gen Generator
}

// NewTransformer creates a Transformer backed by the given generator.
func NewTransformer(gen Generator) *Transformer {
	return &Transformer{gen: gen}
}

// Transform returns the effective retrieval query for question. With empty
// history the question passes through untouched. With history, the generator
// compresses question plus history into one query; if that sub-call fails or
// produces nothing, the raw question is used instead (recoverable, logged).
func (t *Transformer) Transform(ctx context.Context, question string, history []memory.Turn) string {
	if len(history) == 0 {
		return question
	}

	compressed, err := t.gen.Generate(ctx, compressionPrompt(question, history))
	if err != nil {
		slog.Warn("query compression failed, using raw question", "error", err)
		return question
	}

	compressed = strings.TrimSpace(compressed)
	if compressed == "" {
		slog.Warn("query compression returned empty output, using raw question")
		return question
	}
	return compressed
}

func compressionPrompt(question string, history []memory.Turn) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return fmt.Sprintf(compressionPromptText, b.String(), question)
}
