package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// KeywordBackend ranks facts by how many distinct query words they contain,
// breaking ties by recency, then backfills with the newest unselected facts.
// It is deterministic and needs no model.
type KeywordBackend struct {
	mu    sync.RWMutex
	facts []string
	lower []string
}

func NewKeywordBackend() *KeywordBackend {
	return &KeywordBackend{}
}

func (b *KeywordBackend) Add(_ context.Context, text string) error {
	b.mu.Lock()
	b.facts = append(b.facts, text)
	b.lower = append(b.lower, strings.ToLower(text))
	b.mu.Unlock()
	return nil
}

func (b *KeywordBackend) Retrieve(_ context.Context, query string, k int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.facts)
	if n == 0 || k <= 0 {
		return []string{}, nil
	}
	if k > n {
		k = n
	}

	words := queryWords(query)
	type scored struct {
		pos   int
		score int
	}
	matches := make([]scored, 0, n)
	for i, fact := range b.lower {
		score := 0
		for _, w := range words {
			if strings.Contains(fact, w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{pos: i, score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].pos > matches[j].pos
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	out := make([]string, 0, k)
	selected := make(map[int]struct{}, k)
	for _, m := range matches {
		out = append(out, b.facts[m.pos])
		selected[m.pos] = struct{}{}
	}
	for i := n - 1; i >= 0 && len(out) < k; i-- {
		if _, ok := selected[i]; ok {
			continue
		}
		out = append(out, b.facts[i])
	}
	return out, nil
}

func (b *KeywordBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.facts)
}

func (b *KeywordBackend) Name() string { return "keyword" }

func (b *KeywordBackend) Close() error { return nil }

// queryWords lower-cases, splits on whitespace and drops duplicate words.
func queryWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

var _ Backend = (*KeywordBackend)(nil)
