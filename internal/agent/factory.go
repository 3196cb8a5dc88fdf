package agent

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/llm"
)

// NewSearcher builds the searcher named by cfg.Provider.
func NewSearcher(cfg config.SearchConfig, logger *zap.Logger) (Searcher, error) {
	httpc := NewHTTPClient(cfg.Timeout, cfg.Retries, 300*time.Millisecond)
	switch cfg.Provider {
	case "tavily", "":
		return NewTavilySearcher(cfg, httpc, logger.Named("tavily")), nil
	case "serper":
		return NewSerperSearcher(cfg, httpc, logger.Named("serper")), nil
	default:
		return nil, fmt.Errorf("%w: search provider %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewStages wires the LLM-backed collaborators and the configured searcher.
func NewStages(cfg *config.Config, provider llm.Provider, logger *zap.Logger) (Stages, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	searcher, err := NewSearcher(cfg.Search, logger.Named("agent.search"))
	if err != nil {
		return Stages{}, err
	}
	stages := Stages{
		Planner:      NewLLMPlanner(provider, logger.Named("agent.planner")),
		Searcher:     searcher,
		Analyzer:     NewLLMAnalyzer(provider, logger.Named("agent.analysis")),
		Hypothesizer: NewLLMHypothesizer(provider, logger.Named("agent.hypothesis")),
		Synthesizer:  NewLLMSynthesizer(provider, logger.Named("agent.synthesis")),
	}
	return stages, stages.Validate()
}
