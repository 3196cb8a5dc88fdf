// Package embedding turns text into vectors for the vector memory backend.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/researchpilot/config"
)

// ErrEmbedding wraps every failure produced by an embedder.
var ErrEmbedding = errors.New("embedding failed")

// ErrUnsupportedProvider is returned by New for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported embedding provider")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions reports the vector width, or 0 when it is only known after the first call.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}

// New builds the embedder named by cfg.Provider.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "hash":
		return NewHashEmbedder(cfg.Dimensions)
	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
