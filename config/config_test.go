package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"llm":{"api_key":"k"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "groq" || cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Fatalf("expected groq llama default, got %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("unexpected base url %q", cfg.LLM.BaseURL)
	}
	if cfg.Search.Provider != "tavily" || cfg.Search.MaxResults != 5 || cfg.Search.Depth != "advanced" {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Memory.Backend != "keyword" {
		t.Fatalf("expected keyword memory backend, got %s", cfg.Memory.Backend)
	}
	if cfg.Mission.MemoryFileBound != 5000 || cfg.Mission.PromptFileBound != 3000 || cfg.Mission.HypothesisK != 3 {
		t.Fatalf("unexpected mission bounds: %+v", cfg.Mission)
	}
	if cfg.Mission.MemoryScope != "shared" {
		t.Fatalf("expected shared memory scope, got %s", cfg.Mission.MemoryScope)
	}
	if cfg.Server.Address != ":8000" {
		t.Fatalf("expected :8000, got %s", cfg.Server.Address)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "memory:\n  backend: vector\n  embedding:\n    provider: hash\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RESEARCHPILOT_MISSION_STAGE_DELAY", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Memory.Backend != "vector" {
		t.Fatalf("expected vector backend, got %s", cfg.Memory.Backend)
	}
	if cfg.Memory.Embedding.Dimensions != 384 {
		t.Fatalf("expected hash embedder default dims 384, got %d", cfg.Memory.Embedding.Dimensions)
	}
	if cfg.Mission.StageDelay != 250*time.Millisecond {
		t.Fatalf("expected env stage delay 250ms, got %s", cfg.Mission.StageDelay)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestMemoryConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     MemoryConfig
		wantErr bool
	}{
		{name: "keyword", cfg: MemoryConfig{Backend: "keyword"}},
		{name: "vector flat hash", cfg: MemoryConfig{Backend: "vector", Index: "flat", Embedding: EmbeddingConfig{Provider: "hash"}}},
		{name: "vector sqlitevec ollama", cfg: MemoryConfig{Backend: "vector", Index: "sqlitevec", Embedding: EmbeddingConfig{Provider: "ollama"}}},
		{name: "unknown backend", cfg: MemoryConfig{Backend: "faiss"}, wantErr: true},
		{name: "unknown index", cfg: MemoryConfig{Backend: "vector", Index: "hnsw", Embedding: EmbeddingConfig{Provider: "hash"}}, wantErr: true},
		{name: "unknown embedder", cfg: MemoryConfig{Backend: "vector", Index: "flat", Embedding: EmbeddingConfig{Provider: "bert"}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHistoryConfigRedisRequiresHost(t *testing.T) {
	cfg := HistoryConfig{Backend: "redis"}.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected redis host validation error")
	}
	cfg.Redis.Host = "localhost"
	cfg.Redis.Port = "6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected addr %s", cfg.Redis.Addr())
	}
}

func TestMissionScopeValidation(t *testing.T) {
	cfg := MissionConfig{MemoryScope: "global"}.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected scope validation error")
	}
}
