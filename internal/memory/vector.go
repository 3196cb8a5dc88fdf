package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohammad-safakhou/researchpilot/internal/embedding"
)

// EmbeddingBackend retrieves facts by L2 nearest neighbours of their embeddings.
// Fact i always corresponds to index position i.
type EmbeddingBackend struct {
	embedder embedding.Embedder
	index    Index

	mu    sync.RWMutex
	facts []string
}

func NewEmbeddingBackend(embedder embedding.Embedder, index Index) *EmbeddingBackend {
	return &EmbeddingBackend{embedder: embedder, index: index}
}

func (b *EmbeddingBackend) Add(ctx context.Context, text string) error {
	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed fact: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// an index written by someone else can never be realigned
	if n := b.index.Len(); n != len(b.facts) {
		return fmt.Errorf("%w: index holds %d vectors for %d facts", ErrMisaligned, n, len(b.facts))
	}
	pos, err := b.index.Add(ctx, vec)
	if err != nil {
		return fmt.Errorf("index fact: %w", err)
	}
	if pos != len(b.facts) {
		return fmt.Errorf("%w: index returned position %d for fact %d", ErrMisaligned, pos, len(b.facts))
	}
	b.facts = append(b.facts, text)
	return nil
}

func (b *EmbeddingBackend) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 || b.Len() == 0 {
		return []string{}, nil
	}
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if k > len(b.facts) {
		k = len(b.facts)
	}
	neighbors, err := b.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position == NoMatch || n.Position >= len(b.facts) {
			continue
		}
		out = append(out, b.facts[n.Position])
	}
	return out, nil
}

func (b *EmbeddingBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.facts)
}

func (b *EmbeddingBackend) Name() string { return "vector" }

func (b *EmbeddingBackend) Close() error {
	idxErr := b.index.Close()
	embErr := b.embedder.Close()
	if idxErr != nil {
		return idxErr
	}
	return embErr
}

var _ Backend = (*EmbeddingBackend)(nil)
