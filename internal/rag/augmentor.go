// Package rag implements the retrieval-augmentation core: embedding-based
// retrieval with explicit re-ranking, conversation-aware query compression,
// score-floor filtering, metadata selection and prompt assembly.
package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/clairehq/claire/internal/memory"
)

// Defaults for the context-injection retrieval path.
const (
	DefaultContextResults = 3
	DefaultMinScore       = 0.55
)

// DefaultMetadataKeys is the whitelist of metadata keys kept on evidence
// returned from the augmented path.
var DefaultMetadataKeys = []string{"title", "index", "url"}

// AugmentorConfig tunes the augmentation pipeline.
type AugmentorConfig struct {
	MaxResults   int      // retrieval breadth for context injection
	MinScore     float64  // matches below this are discarded entirely
	MetadataKeys []string // metadata whitelist for evidence display
}

// DefaultAugmentorConfig returns the production defaults.
func DefaultAugmentorConfig() AugmentorConfig {
	return AugmentorConfig{
		MaxResults:   DefaultContextResults,
		MinScore:     DefaultMinScore,
		MetadataKeys: DefaultMetadataKeys,
	}
}

// Augmentation is the result of running the full augmentation pipeline for
// one question: the effective retrieval query, the rendered prompt and the
// surviving evidence in descending-score order.
type Augmentation struct {
	Query   string
	Prompt  string
	Answers []Answer
}

// Augmentor orchestrates query transformation, retrieval, ranking and
// prompt assembly.
type Augmentor struct {
	transformer *Transformer
	retriever   *Retriever
	template    *PromptTemplate
	cfg         AugmentorConfig
}

// NewAugmentor wires the pipeline stages together.
func NewAugmentor(transformer *Transformer, retriever *Retriever, template *PromptTemplate, cfg AugmentorConfig) *Augmentor {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultContextResults
	}
	if len(cfg.MetadataKeys) == 0 {
		cfg.MetadataKeys = DefaultMetadataKeys
	}
	return &Augmentor{
		transformer: transformer,
		retriever:   retriever,
		template:    template,
		cfg:         cfg,
	}
}

// Augment rewrites the question using history, retrieves the top matches,
// drops everything below the score floor (even if fewer than MaxResults
// remain), and renders the prompt. Zero surviving matches is not an error:
// the prompt is rendered with an empty information block and the model is
// asked to answer ungrounded.
func (a *Augmentor) Augment(ctx context.Context, question string, history []memory.Turn) (Augmentation, error) {
	query := a.transformer.Transform(ctx, question, history)

	matches, err := a.retriever.Retrieve(ctx, query, a.cfg.MaxResults)
	if err != nil {
		return Augmentation{}, err
	}

	answers := make([]Answer, 0, len(matches))
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Score < a.cfg.MinScore {
			continue
		}
		answers = append(answers, Answer{
			Text:     m.Segment.Text,
			Score:    m.Score,
			Metadata: selectKeys(m.Segment.Metadata, a.cfg.MetadataKeys),
		})
		texts = append(texts, m.Segment.Text)
	}

	information := strings.Join(texts, "\n\n")
	prompt, err := a.template.Render(question, information)
	if err != nil {
		return Augmentation{}, err
	}

	slog.Debug("augmented question",
		"rewritten", query != question,
		"candidates", len(matches),
		"surviving", len(answers),
	)

	return Augmentation{Query: query, Prompt: prompt, Answers: answers}, nil
}

// selectKeys copies only the whitelisted keys out of metadata. The source
// map is never modified.
func selectKeys(metadata map[string]string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := metadata[k]; ok {
			out[k] = v
		}
	}
	return out
}
