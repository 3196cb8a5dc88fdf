package memory

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/embedding"
)

// Memory is the fact store a mission reads and writes. It owns its backend.
type Memory struct {
	backend Backend
	logger  *zap.Logger
	closed  atomic.Bool
}

// NewWithBackend wraps an already constructed backend.
func NewWithBackend(backend Backend, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{backend: backend, logger: logger}
}

// NewKeyword returns a memory on the keyword backend.
func NewKeyword(logger *zap.Logger) *Memory {
	return NewWithBackend(NewKeywordBackend(), logger)
}

// New builds the backend selected by cfg.Backend. Any failure while setting up
// the vector backend is returned; there is no fallback to keyword.
func New(ctx context.Context, cfg config.MemoryConfig, logger *zap.Logger) (*Memory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "keyword":
		logger.Info("retrieval memory ready", zap.String("backend", "keyword"))
		return NewKeyword(logger), nil
	case "vector":
		backend, err := newVectorBackend(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("vector memory: %w", err)
		}
		logger.Info("retrieval memory ready",
			zap.String("backend", "vector"),
			zap.String("index", cfg.Index),
			zap.String("embedder", cfg.Embedding.Provider),
		)
		return NewWithBackend(backend, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func newVectorBackend(ctx context.Context, cfg config.MemoryConfig, logger *zap.Logger) (*EmbeddingBackend, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	dims := embedder.Dimensions()
	if dims <= 0 {
		probe, err := embedder.Embed(ctx, "dimension probe")
		if err != nil {
			embedder.Close()
			return nil, fmt.Errorf("probe embedding dimensions: %w", err)
		}
		dims = len(probe)
	}
	if dims <= 0 {
		embedder.Close()
		return nil, fmt.Errorf("embedder returned an empty vector")
	}

	var index Index
	switch strings.ToLower(strings.TrimSpace(cfg.Index)) {
	case "", "flat":
		index, err = NewFlatIndex(dims)
	case "sqlitevec":
		index, err = NewSQLiteVecIndex(cfg.SQLite.Path, dims, logger.Named("sqlitevec"))
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownIndex, cfg.Index)
	}
	if err != nil {
		embedder.Close()
		return nil, err
	}
	return NewEmbeddingBackend(embedder, index), nil
}

// AddFact appends text as a fact. Blank text is ignored.
func (m *Memory) AddFact(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if m.closed.Load() {
		return ErrClosed
	}
	if err := m.backend.Add(ctx, text); err != nil {
		return err
	}
	m.logger.Debug("fact added", zap.Int("chars", len(text)), zap.Int("facts", m.backend.Len()))
	return nil
}

// RetrieveRelevant returns at most k facts for query. An empty store or k <= 0
// yields an empty slice.
func (m *Memory) RetrieveRelevant(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return []string{}, nil
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if m.backend.Len() == 0 {
		return []string{}, nil
	}
	out, err := m.backend.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *Memory) Len() int { return m.backend.Len() }

// Backend names the active retrieval strategy.
func (m *Memory) Backend() string { return m.backend.Name() }

// Close releases the backend. It is safe to call more than once.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.backend.Close()
}
