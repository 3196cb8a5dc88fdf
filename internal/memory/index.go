package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// NoMatch is the position an index reports for an empty result slot.
const NoMatch = -1

// Neighbor is one KNN hit: the insertion position and its L2 distance to the query.
type Neighbor struct {
	Position int
	Distance float64
}

// Index is an append-only vector index addressed by insertion position.
type Index interface {
	// Add stores vec and returns its position (0-based, equal to Len before the call).
	Add(ctx context.Context, vec []float32) (int, error)
	// Search returns up to k neighbors in ascending L2 distance.
	Search(ctx context.Context, vec []float32, k int) ([]Neighbor, error)
	Len() int
	Close() error
}

// FlatIndex is an exact brute-force L2 index held in memory.
type FlatIndex struct {
	mu      sync.RWMutex
	dims    int
	vectors [][]float32
}

func NewFlatIndex(dims int) (*FlatIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("flat index: dimensions must be positive, got %d", dims)
	}
	return &FlatIndex{dims: dims}, nil
}

func (f *FlatIndex) Add(_ context.Context, vec []float32) (int, error) {
	if len(vec) != f.dims {
		return NoMatch, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), f.dims)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, cp)
	return len(f.vectors) - 1, nil
}

func (f *FlatIndex) Search(_ context.Context, vec []float32, k int) ([]Neighbor, error) {
	if len(vec) != f.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), f.dims)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	out := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		out[i] = Neighbor{Position: i, Distance: l2Distance(vec, v)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

func (f *FlatIndex) Close() error { return nil }

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

var _ Index = (*FlatIndex)(nil)
