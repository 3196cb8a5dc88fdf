// Package memory is the retrieval memory shared by research missions: an
// append-only store of text facts with top-k relevance lookup.
package memory

import (
	"context"
	"errors"
)

var (
	// ErrUnknownBackend is returned by New for an unrecognised memory.backend value.
	ErrUnknownBackend = errors.New("unknown memory backend")
	// ErrUnknownIndex is returned by New for an unrecognised memory.index value.
	ErrUnknownIndex = errors.New("unknown vector index")
	// ErrDimensionMismatch is returned when a vector does not match the index width.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrMisaligned is returned when the index no longer maps one-to-one onto
	// the stored facts. Nothing is added in that case.
	ErrMisaligned = errors.New("vector index out of step with facts")
	// ErrClosed is returned by operations on a closed memory.
	ErrClosed = errors.New("memory closed")
)

// Backend is a retrieval strategy over an append-only list of facts.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Add appends text as a new fact. Callers have already rejected blank text.
	Add(ctx context.Context, text string) error
	// Retrieve returns at most k facts relevant to query, most relevant first.
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
	Len() int
	Name() string
	Close() error
}
