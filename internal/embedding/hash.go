package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is an offline embedder based on feature hashing. Each lower-cased
// token is hashed into a bucket with a signed weight and the result is L2
// normalized, so texts sharing words end up close in Euclidean distance.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) (*HashEmbedder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: hash embedder needs positive dimensions, got %d", ErrEmbedding, dims)
	}
	return &HashEmbedder{dims: dims}, nil
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dims)
	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		bucket := binary.LittleEndian.Uint64(sum[:8]) % uint64(h.dims)
		sign := float32(1)
		if sum[8]&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Close() error { return nil }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ Embedder = (*HashEmbedder)(nil)
