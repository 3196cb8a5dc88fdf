// Package agent holds the stage collaborators a research mission calls:
// planner, searcher, analyzer, hypothesizer and synthesizer.
package agent

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupportedProvider is returned by NewStages for an unknown search provider.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Planner breaks a topic into ordered search queries.
type Planner interface {
	// GeneratePlan never returns an empty list together with a nil error.
	GeneratePlan(ctx context.Context, topic, fileContext string) ([]string, error)
}

// Searcher gathers raw external data for one query. Upstream failures are
// returned as rendered text; only context errors come back as errors.
type Searcher interface {
	ExecuteSearch(ctx context.Context, query string) (string, error)
}

type Analyzer interface {
	AnalyzeResults(ctx context.Context, query, raw string) (string, error)
}

type Hypothesizer interface {
	GenerateHypotheses(ctx context.Context, topic, knowledge string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, topic string, texts []string) (string, error)
}

// Stages bundles the five collaborators of a mission.
type Stages struct {
	Planner      Planner
	Searcher     Searcher
	Analyzer     Analyzer
	Hypothesizer Hypothesizer
	Synthesizer  Synthesizer
}

// Validate reports the first missing collaborator.
func (s Stages) Validate() error {
	switch {
	case s.Planner == nil:
		return errors.New("stages: planner missing")
	case s.Searcher == nil:
		return errors.New("stages: searcher missing")
	case s.Analyzer == nil:
		return errors.New("stages: analyzer missing")
	case s.Hypothesizer == nil:
		return errors.New("stages: hypothesizer missing")
	case s.Synthesizer == nil:
		return errors.New("stages: synthesizer missing")
	}
	return nil
}

// Outcome is the result of one collaborator call: a payload on success or the
// failure detail.
type Outcome struct {
	Text string
	Err  error
}

// Succeeded wraps a successful payload.
func Succeeded(text string) Outcome { return Outcome{Text: text} }

// Failed wraps a failure.
func Failed(err error) Outcome { return Outcome{Err: err} }

// Render returns the payload, or "Error during <label>: <detail>" on failure.
func (o Outcome) Render(label string) string {
	if o.Err == nil {
		return o.Text
	}
	return fmt.Sprintf("Error during %s: %v", label, o.Err)
}

// settle converts an outcome into the (text, error) pair agents return:
// context errors propagate, every other failure is rendered into the text.
func settle(ctx context.Context, o Outcome, label string) (string, error) {
	if o.Err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded) {
			return "", o.Err
		}
	}
	return o.Render(label), nil
}
