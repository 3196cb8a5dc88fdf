package memory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammad-safakhou/researchpilot/config"
)

func TestEmptyStoreReturnsEmpty(t *testing.T) {
	for _, m := range []*Memory{NewKeyword(nil), newHashMemory(t, 16)} {
		got, err := m.RetrieveRelevant(context.Background(), "anything", 5)
		if err != nil {
			t.Fatalf("%s: retrieve: %v", m.Backend(), err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: expected empty non-nil slice, got %#v", m.Backend(), got)
		}
	}
}

func TestAddFactIgnoresBlankText(t *testing.T) {
	for _, m := range []*Memory{NewKeyword(nil), newHashMemory(t, 16)} {
		for _, blank := range []string{"", "   ", "\n\t"} {
			if err := m.AddFact(context.Background(), blank); err != nil {
				t.Fatalf("%s: expected no error for blank text, got %v", m.Backend(), err)
			}
		}
		if m.Len() != 0 {
			t.Fatalf("%s: expected size 0, got %d", m.Backend(), m.Len())
		}
	}
}

func TestRetrieveNeverExceedsK(t *testing.T) {
	m := NewKeyword(nil)
	addAll(t, m, "a", "b", "c", "d")

	for _, k := range []int{0, 1, 3, 10} {
		got, err := m.RetrieveRelevant(context.Background(), "a", k)
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		want := k
		if want > 4 {
			want = 4
		}
		if len(got) != want {
			t.Fatalf("k=%d: expected %d results, got %d", k, want, len(got))
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.MemoryConfig{Backend: "faiss"}, nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNewVectorFailsFastWhenEmbedderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.MemoryConfig{
		Backend: "vector",
		Index:   "flat",
		Embedding: config.EmbeddingConfig{
			Provider: "ollama",
			BaseURL:  srv.URL,
		},
	}
	m, err := New(context.Background(), cfg, nil)
	if err == nil {
		t.Fatalf("expected construction error, got memory with backend %s", m.Backend())
	}
}

func TestNewVectorFlatHash(t *testing.T) {
	cfg := config.MemoryConfig{
		Backend:   "vector",
		Index:     "flat",
		Embedding: config.EmbeddingConfig{Provider: "hash", Dimensions: 32},
	}
	m, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()
	if m.Backend() != "vector" {
		t.Fatalf("expected vector backend, got %s", m.Backend())
	}
}

func TestClosedMemoryRejectsWrites(t *testing.T) {
	m := NewKeyword(nil)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := m.AddFact(context.Background(), "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
