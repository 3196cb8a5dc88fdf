package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/llm"
)

// LLMAnalyzer extracts insights from the raw text of one search.
type LLMAnalyzer struct {
	llm    llm.Provider
	logger *zap.Logger
}

func NewLLMAnalyzer(provider llm.Provider, logger *zap.Logger) *LLMAnalyzer {
	return &LLMAnalyzer{llm: provider, logger: logger}
}

func (a *LLMAnalyzer) AnalyzeResults(ctx context.Context, query, raw string) (string, error) {
	a.logger.Info("analyzing", zap.String("query", query), zap.Int("chars", len(raw)))
	prompt := fmt.Sprintf("Research query: %s\n\nRaw search data:\n%s\n\n"+
		"Analyse the data above in depth. Name the main breakthroughs, the key players and any technical limits it mentions.",
		query, raw)
	return settle(ctx, generate(ctx, a.llm, analystSystemPrompt, prompt), "analysis")
}

// LLMHypothesizer proposes testable hypotheses from retrieved context.
type LLMHypothesizer struct {
	llm    llm.Provider
	logger *zap.Logger
}

func NewLLMHypothesizer(provider llm.Provider, logger *zap.Logger) *LLMHypothesizer {
	return &LLMHypothesizer{llm: provider, logger: logger}
}

func (h *LLMHypothesizer) GenerateHypotheses(ctx context.Context, topic, knowledge string) (string, error) {
	h.logger.Info("generating hypotheses", zap.String("topic", topic))
	prompt := fmt.Sprintf("Topic: %s\n\nWhat is known so far:\n%s\n\n"+
		"Propose 2 or 3 original hypotheses that follow from this. What would the next discovery be, and what is research still missing?",
		topic, knowledge)
	return settle(ctx, generate(ctx, h.llm, hypothesisSystemPrompt, prompt), "hypothesis generation")
}

// LLMSynthesizer merges the per-query analyses and the hypotheses into the report.
type LLMSynthesizer struct {
	llm    llm.Provider
	logger *zap.Logger
}

func NewLLMSynthesizer(provider llm.Provider, logger *zap.Logger) *LLMSynthesizer {
	return &LLMSynthesizer{llm: provider, logger: logger}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, topic string, texts []string) (string, error) {
	s.logger.Info("compiling report", zap.String("topic", topic), zap.Int("parts", len(texts)))
	prompt := fmt.Sprintf("Main topic: %s\n\nPartial analyses:\n%s\n\n"+
		"Combine these into one research report. It must contain the headers '## Summary', '## Hypothesis' and '## Search Results'.",
		topic, strings.Join(texts, "\n\n"))
	return settle(ctx, generate(ctx, s.llm, synthesisSystemPrompt, prompt), "synthesis")
}

// ChatAgent answers free-form questions outside of a mission.
type ChatAgent struct {
	llm llm.Provider
}

func NewChatAgent(provider llm.Provider) *ChatAgent {
	return &ChatAgent{llm: provider}
}

// Reply returns the model answer or the rendered failure.
func (c *ChatAgent) Reply(ctx context.Context, message string) (string, error) {
	return settle(ctx, generate(ctx, c.llm, chatSystemPrompt, message), "chat")
}

func generate(ctx context.Context, provider llm.Provider, system, prompt string) Outcome {
	out, err := provider.Generate(ctx, system, prompt)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(out)
}

var (
	_ Analyzer     = (*LLMAnalyzer)(nil)
	_ Hypothesizer = (*LLMHypothesizer)(nil)
	_ Synthesizer  = (*LLMSynthesizer)(nil)
)
