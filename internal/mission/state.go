package mission

// State is the position of a mission in its pipeline.
type State int

const (
	StatePending State = iota
	StateIngest
	StatePlan
	StateSearch
	StateAnalyze
	StateHypothesize
	StateSynthesize
	StateComplete
	StateFailed
)

var stateNames = map[State]string{
	StatePending:     "pending",
	StateIngest:      "ingest",
	StatePlan:        "plan",
	StateSearch:      "search",
	StateAnalyze:     "analyze",
	StateHypothesize: "hypothesize",
	StateSynthesize:  "synthesize",
	StateComplete:    "complete",
	StateFailed:      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Done reports whether s is absorbing.
func (s State) Done() bool {
	return s == StateComplete || s == StateFailed
}

// CanAdvance reports whether the pipeline allows moving from s to next.
// Failed is reachable from every live state; nothing leaves Complete or Failed.
func (s State) CanAdvance(next State) bool {
	if s.Done() {
		return false
	}
	if next == StateFailed {
		return true
	}
	switch s {
	case StatePending:
		return next == StateIngest || next == StatePlan
	case StateIngest:
		return next == StatePlan
	case StatePlan:
		return next == StateSearch || next == StateHypothesize
	case StateSearch:
		return next == StateAnalyze
	case StateAnalyze:
		return next == StateSearch || next == StateHypothesize
	case StateHypothesize:
		return next == StateSynthesize
	case StateSynthesize:
		return next == StateComplete
	}
	return false
}
