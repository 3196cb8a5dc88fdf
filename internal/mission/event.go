package mission

import (
	"encoding/json"
	"fmt"
)

// Stage names carried in lifecycle events.
const (
	StageIngest     = "Ingest"
	StagePlanner    = "Planner"
	StageSearch     = "Search"
	StageAnalysis   = "Analysis"
	StageHypothesis = "Hypothesis"
	StageSynthesis  = "Synthesis"
)

// EventKind distinguishes the three event shapes.
type EventKind int

const (
	KindActive EventKind = iota
	KindComplete
	KindError
)

// Event is one progress record streamed to the caller.
//
//	lifecycle: {"agent": <stage>, "status": "active", "msg": <text>}
//	complete:  {"type": "complete", "content": <report>}
//	error:     {"type": "error", "msg": <text>}
type Event struct {
	Kind    EventKind
	Agent   string
	Msg     string
	Content string
}

// Active builds a lifecycle event announcing stage.
func Active(stage, msg string) Event {
	return Event{Kind: KindActive, Agent: stage, Msg: msg}
}

// Complete builds the terminal success event.
func Complete(report string) Event {
	return Event{Kind: KindComplete, Content: report}
}

// Failure builds the terminal error event.
func Failure(msg string) Event {
	return Event{Kind: KindError, Msg: msg}
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

type activeWire struct {
	Agent  string `json:"agent" yaml:"agent"`
	Status string `json:"status" yaml:"status"`
	Msg    string `json:"msg" yaml:"msg"`
}

type completeWire struct {
	Type    string `json:"type" yaml:"type"`
	Content string `json:"content" yaml:"content"`
}

type errorWire struct {
	Type string `json:"type" yaml:"type"`
	Msg  string `json:"msg" yaml:"msg"`
}

// Wire returns the tagged record for encoders (JSON, YAML).
func (e Event) Wire() any {
	switch e.Kind {
	case KindComplete:
		return completeWire{Type: "complete", Content: e.Content}
	case KindError:
		return errorWire{Type: "error", Msg: e.Msg}
	default:
		return activeWire{Agent: e.Agent, Status: "active", Msg: e.Msg}
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Wire())
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Agent   string `json:"agent"`
		Status  string `json:"status"`
		Msg     string `json:"msg"`
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Type == "complete":
		*e = Complete(raw.Content)
	case raw.Type == "error":
		*e = Failure(raw.Msg)
	case raw.Status == "active":
		*e = Active(raw.Agent, raw.Msg)
	default:
		return fmt.Errorf("unrecognised event %s", string(data))
	}
	return nil
}

// String renders the event as a single console line.
func (e Event) String() string {
	switch e.Kind {
	case KindComplete:
		return "[complete] report ready"
	case KindError:
		return "[error] " + e.Msg
	default:
		return fmt.Sprintf("[%s] %s", e.Agent, e.Msg)
	}
}
