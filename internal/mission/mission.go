// Package mission drives a research mission through its stages and streams
// progress events to the caller.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/memory"
)

// Memory scopes.
const (
	ScopeShared  = "shared"
	ScopeMission = "mission"
)

// FileFactLabel prefixes the attachment excerpt stored in memory.
const FileFactLabel = "FILE CONTENT UPLOADED BY USER:\n"

// FilePromptLabel prefixes the attachment excerpt given to the hypothesizer.
const FilePromptLabel = "Uploaded File Data:\n"

// Request starts a mission. ID is generated when empty.
type Request struct {
	ID       string
	Topic    string
	FilePath string
}

// Mission is the transient record of one run.
type Mission struct {
	ID          string
	Topic       string
	FilePath    string
	FileContext string
	Plan        []string
	Results     []string
	Hypotheses  string
	Report      string
	State       State
}

func (m *Mission) advance(next State) error {
	if !m.State.CanAdvance(next) {
		return fmt.Errorf("illegal transition %s -> %s", m.State, next)
	}
	m.State = next
	return nil
}

// MemoryFactory builds a fresh memory for a mission-scoped run.
type MemoryFactory func(ctx context.Context) (*memory.Memory, error)

// Options tunes the orchestrator. Zero values take the defaults below.
type Options struct {
	// StageDelay pauses between search/analyze iterations to respect upstream rate limits.
	StageDelay time.Duration
	// MemoryFileBound caps the attachment excerpt stored as a fact (default 5000).
	MemoryFileBound int
	// PromptFileBound caps the attachment excerpt prefixed to the hypothesis context (default 3000).
	PromptFileBound int
	// HypothesisK is how many facts are retrieved for the hypothesis context (default 3).
	HypothesisK int
	// MaxConcurrentMissions bounds concurrent Stream calls; 0 means unbounded.
	MaxConcurrentMissions int
	// MemoryScope is ScopeShared (default) or ScopeMission.
	MemoryScope string
	// NewMemory builds per-mission memory under ScopeMission. Defaults to keyword memory.
	NewMemory MemoryFactory
}

func (o Options) withDefaults() Options {
	if o.MemoryFileBound <= 0 {
		o.MemoryFileBound = 5000
	}
	if o.PromptFileBound <= 0 {
		o.PromptFileBound = 3000
	}
	if o.HypothesisK <= 0 {
		o.HypothesisK = 3
	}
	if o.StageDelay < 0 {
		o.StageDelay = 0
	}
	if o.MemoryScope == "" {
		o.MemoryScope = ScopeShared
	}
	return o
}

// OptionsFromConfig maps the mission section of the config.
func OptionsFromConfig(cfg config.MissionConfig) Options {
	return Options{
		StageDelay:            cfg.StageDelay,
		MemoryFileBound:       cfg.MemoryFileBound,
		PromptFileBound:       cfg.PromptFileBound,
		HypothesisK:           cfg.HypothesisK,
		MaxConcurrentMissions: cfg.MaxConcurrentMissions,
		MemoryScope:           cfg.MemoryScope,
	}
}
