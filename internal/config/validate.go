package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for values that would misbehave at runtime.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Enabled() && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Retrieval tuning
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_MIN_SCORE must be in [0,1], got %g", c.Retrieval.MinScore))
	}
	if c.Retrieval.ContextResults < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_CONTEXT_RESULTS must be positive, got %d", c.Retrieval.ContextResults))
	}
	if c.Retrieval.EvidenceResults < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_EVIDENCE_RESULTS must be positive, got %d", c.Retrieval.EvidenceResults))
	}

	// Memory window
	if c.Memory.MaxMessages < 1 {
		errs = append(errs, fmt.Sprintf("MEMORY_MAX_MESSAGES must be positive, got %d", c.Memory.MaxMessages))
	}

	// Generation deadlines
	if c.Ollama.Timeout <= 0 {
		errs = append(errs, "OLLAMA_TIMEOUT must be positive")
	}
	if c.Ollama.EmbedTimeout <= 0 {
		errs = append(errs, "OLLAMA_EMBED_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
