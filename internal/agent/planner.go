package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/helpers"
	"github.com/mohammad-safakhou/researchpilot/internal/llm"
)

// PlannerFileBound caps how much attached-file text reaches the planning prompt.
const PlannerFileBound = 2000

// LLMPlanner asks the model for three search queries and parses its answer.
type LLMPlanner struct {
	llm    llm.Provider
	logger *zap.Logger
}

func NewLLMPlanner(provider llm.Provider, logger *zap.Logger) *LLMPlanner {
	return &LLMPlanner{llm: provider, logger: logger}
}

// GeneratePlan returns the parsed query list. A model error is returned as is;
// an unparseable answer yields the canned fallback queries.
func (p *LLMPlanner) GeneratePlan(ctx context.Context, topic, fileContext string) ([]string, error) {
	start := time.Now()
	response, err := p.llm.Generate(ctx, plannerSystemPrompt, plannerPrompt(topic, fileContext))
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	queries, parseErr := parsePlan(response)
	if parseErr != nil {
		p.logger.Warn("planner output unusable, using fallback queries",
			zap.String("topic", topic),
			zap.Error(parseErr),
		)
		return FallbackPlan(topic), nil
	}
	p.logger.Debug("plan generated",
		zap.Int("queries", len(queries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return queries, nil
}

func plannerPrompt(topic, fileContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	if fileContext != "" {
		fmt.Fprintf(&b, "Attached file excerpt (let it shape the queries):\n%s\n\n", helpers.Truncate(fileContext, PlannerFileBound))
		b.WriteString("Write 3 precise search queries that examine the topic in light of the attached material. ")
	} else {
		b.WriteString("Write 3 search queries, each covering a different angle of the topic. ")
	}
	b.WriteString("For the topic 'Home batteries' good queries would be 'home battery prices 2026', " +
		"'grid incentives for residential storage' and 'lithium iron phosphate safety record'.")
	return b.String()
}

// FallbackPlan is the plan used when the model output cannot be parsed.
func FallbackPlan(topic string) []string {
	return []string{
		topic + " overview",
		topic + " latest developments",
		topic + " future outlook",
	}
}

// ParsePlan extracts the query list from a raw model answer, falling back to
// FallbackPlan when nothing usable is found.
func ParsePlan(topic, raw string) []string {
	queries, err := parsePlan(raw)
	if err != nil {
		return FallbackPlan(topic)
	}
	return queries
}

func parsePlan(raw string) ([]string, error) {
	span, ok := helpers.BracketSpan(helpers.StripCodeFence(raw))
	if !ok {
		return nil, errors.New("no bracketed list in planner output")
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		items, litErr := parseListLiteral(span)
		if litErr != nil {
			return nil, fmt.Errorf("planner list is neither JSON (%v) nor a quoted list literal (%w)", err, litErr)
		}
		doc = items
	}
	if err := validatePlanDocument(doc); err != nil {
		return nil, err
	}

	arr := doc.([]interface{})
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, item.(string))
	}
	out = helpers.DedupeNonEmpty(out)
	if len(out) == 0 {
		return nil, errors.New("planner list has no non-blank queries")
	}
	return out, nil
}

// parseListLiteral reads a bracketed list of single- or double-quoted strings,
// e.g. ['a', "b's",]. Anything else is rejected.
func parseListLiteral(s string) ([]interface{}, error) {
	r := []rune(strings.TrimSpace(s))
	i := 0
	skipSpace := func() {
		for i < len(r) && unicode.IsSpace(r[i]) {
			i++
		}
	}

	if i >= len(r) || r[i] != '[' {
		return nil, errors.New("expected '['")
	}
	i++
	out := []interface{}{}
	for {
		skipSpace()
		if i >= len(r) {
			return nil, errors.New("unterminated list")
		}
		if r[i] == ']' {
			i++
			break
		}
		quote := r[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("unexpected %q at offset %d", r[i], i)
		}
		i++
		var b strings.Builder
		closed := false
		for i < len(r) {
			c := r[i]
			if c == '\\' && i+1 < len(r) {
				i++
				switch r[i] {
				case 'n':
					b.WriteRune('\n')
				case 't':
					b.WriteRune('\t')
				default:
					b.WriteRune(r[i])
				}
				i++
				continue
			}
			if c == quote {
				closed = true
				i++
				break
			}
			b.WriteRune(c)
			i++
		}
		if !closed {
			return nil, errors.New("unterminated string")
		}
		out = append(out, b.String())

		skipSpace()
		if i >= len(r) {
			return nil, errors.New("unterminated list")
		}
		switch r[i] {
		case ',':
			i++
		case ']':
		default:
			return nil, fmt.Errorf("expected ',' or ']' at offset %d", i)
		}
	}
	skipSpace()
	if i != len(r) {
		return nil, errors.New("trailing data after list")
	}
	return out, nil
}

var _ Planner = (*LLMPlanner)(nil)
