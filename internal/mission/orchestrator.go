package mission

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/agent"
	"github.com/mohammad-safakhou/researchpilot/internal/helpers"
	"github.com/mohammad-safakhou/researchpilot/internal/ingest"
	"github.com/mohammad-safakhou/researchpilot/internal/memory"
	"github.com/mohammad-safakhou/researchpilot/internal/telemetry"
)

var missionTracer = otel.Tracer("github.com/mohammad-safakhou/researchpilot/internal/mission")

// ErrBlankTopic is reported when a mission is started without a topic.
var ErrBlankTopic = errors.New("research topic must not be empty")

// Sink receives events in order. A non-nil error stops the mission.
type Sink func(Event) error

// Orchestrator runs missions against one set of stage collaborators.
type Orchestrator struct {
	memory    *memory.Memory
	stages    agent.Stages
	extractor ingest.Extractor
	opts      Options
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	semaphore chan struct{}
}

// New wires an orchestrator. mem may be nil only under ScopeMission, and
// metrics may be nil.
func New(mem *memory.Memory, stages agent.Stages, extractor ingest.Extractor, opts Options, logger *zap.Logger, metrics *telemetry.Metrics) (*Orchestrator, error) {
	if err := stages.Validate(); err != nil {
		return nil, err
	}
	if extractor == nil {
		return nil, errors.New("orchestrator: extractor missing")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	switch opts.MemoryScope {
	case ScopeShared:
		if mem == nil {
			return nil, errors.New("orchestrator: shared memory scope needs a memory")
		}
	case ScopeMission:
		if opts.NewMemory == nil {
			opts.NewMemory = func(context.Context) (*memory.Memory, error) {
				return memory.NewKeyword(logger.Named("memory")), nil
			}
		}
	default:
		return nil, fmt.Errorf("orchestrator: unknown memory scope %q", opts.MemoryScope)
	}

	o := &Orchestrator{
		memory:    mem,
		stages:    stages,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
	if opts.MaxConcurrentMissions > 0 {
		o.semaphore = make(chan struct{}, opts.MaxConcurrentMissions)
	}
	return o, nil
}

// Memory returns the shared memory, or nil under ScopeMission.
func (o *Orchestrator) Memory() *memory.Memory {
	if o.opts.MemoryScope == ScopeMission {
		return nil
	}
	return o.memory
}

// Run starts the mission in a goroutine and returns its events. The channel is
// closed after the terminal event, or early once ctx is done.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		_ = o.Stream(ctx, req, func(ev Event) error {
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return out
}

// Stream runs the mission synchronously, handing each event to sink. Exactly
// one terminal event is delivered unless ctx ends or sink fails first, in
// which case that error is returned and nothing more is sent.
func (o *Orchestrator) Stream(ctx context.Context, req Request, sink Sink) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx, span := missionTracer.Start(ctx, "mission.run", trace.WithAttributes(
		attribute.String("mission.id", req.ID),
		attribute.Bool("mission.has_file", req.FilePath != ""),
	))
	defer span.End()

	log := o.logger.With(zap.String("mission_id", req.ID))
	em := &emitter{sink: sink}

	if strings.TrimSpace(req.Topic) == "" {
		log.Warn("mission rejected", zap.Error(ErrBlankTopic))
		span.SetStatus(codes.Error, ErrBlankTopic.Error())
		return em.emit(Failure(ErrBlankTopic.Error()))
	}

	if o.semaphore != nil {
		select {
		case o.semaphore <- struct{}{}:
			defer func() { <-o.semaphore }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.metrics.MissionStarted()
	started := time.Now()
	m := &Mission{ID: req.ID, Topic: strings.TrimSpace(req.Topic), FilePath: req.FilePath, State: StatePending}
	log.Info("mission started", zap.String("topic", m.Topic), zap.Bool("file", m.FilePath != ""))

	runErr := o.execute(ctx, m, em, log)

	switch {
	case em.err != nil:
		o.metrics.MissionFinished(telemetry.OutcomeCanceled)
		log.Warn("event consumer stopped", zap.Error(em.err))
		span.SetStatus(codes.Error, em.err.Error())
		return em.err
	case ctx.Err() != nil:
		o.metrics.MissionFinished(telemetry.OutcomeCanceled)
		log.Info("mission canceled", zap.Error(ctx.Err()), zap.String("state", m.State.String()))
		span.SetStatus(codes.Error, ctx.Err().Error())
		return ctx.Err()
	case runErr != nil:
		m.State = StateFailed
		o.metrics.MissionFinished(telemetry.OutcomeFailed)
		log.Error("mission failed", zap.Error(runErr), zap.Duration("elapsed", time.Since(started)))
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return em.emit(Failure(runErr.Error()))
	}

	if err := m.advance(StateComplete); err != nil {
		o.metrics.MissionFinished(telemetry.OutcomeFailed)
		return em.emit(Failure(err.Error()))
	}
	o.metrics.MissionFinished(telemetry.OutcomeCompleted)
	log.Info("mission completed", zap.Duration("elapsed", time.Since(started)), zap.Int("queries", len(m.Plan)))
	return em.emit(Complete(m.Report))
}

type emitter struct {
	sink Sink
	err  error
}

func (e *emitter) emit(ev Event) error {
	if e.err != nil {
		return e.err
	}
	if err := e.sink(ev); err != nil {
		e.err = err
	}
	return e.err
}

// execute walks the pipeline. Panics are converted into errors.
func (o *Orchestrator) execute(ctx context.Context, m *Mission, em *emitter, log *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("mission panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	mem := o.memory
	if o.opts.MemoryScope == ScopeMission {
		mem, err = o.opts.NewMemory(ctx)
		if err != nil {
			return fmt.Errorf("mission memory: %w", err)
		}
		defer mem.Close()
	}

	if m.FilePath != "" {
		if err := o.enter(ctx, m, em, StateIngest, Active(StageIngest, "Reading attached file...")); err != nil {
			return err
		}
		o.ingest(ctx, m, mem, log)
	}

	if err := o.enter(ctx, m, em, StatePlan, Active(StagePlanner, "Planning...")); err != nil {
		return err
	}
	err = o.timed(ctx, StagePlanner, func(ctx context.Context) error {
		plan, err := o.stages.Planner.GeneratePlan(ctx, m.Topic, m.FileContext)
		if err != nil {
			return fmt.Errorf("planning: %w", err)
		}
		if len(plan) == 0 {
			return errors.New("planning: planner returned an empty plan")
		}
		m.Plan = plan
		return nil
	})
	if err != nil {
		return err
	}
	log.Debug("plan ready", zap.Strings("queries", m.Plan))

	for i, query := range m.Plan {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return err
			}
		}
		if err := o.iterate(ctx, m, mem, em, query); err != nil {
			return err
		}
	}

	if err := o.enter(ctx, m, em, StateHypothesize, Active(StageHypothesis, "Generating Hypothesis...")); err != nil {
		return err
	}
	err = o.timed(ctx, StageHypothesis, func(ctx context.Context) error {
		k := o.opts.HypothesisK
		if m.FileContext != "" {
			// One slot may be taken by the stored attachment fact, which is dropped below.
			k++
		}
		facts, err := mem.RetrieveRelevant(ctx, m.Topic, k)
		if err != nil {
			return fmt.Errorf("retrieving facts: %w", err)
		}
		knowledge := strings.Join(hypothesisFacts(facts, m.FileContext != "", o.opts.HypothesisK), "\n")
		if m.FileContext != "" {
			knowledge = FilePromptLabel + helpers.Truncate(m.FileContext, o.opts.PromptFileBound) + "\n\n" + knowledge
		}
		m.Hypotheses, err = o.stages.Hypothesizer.GenerateHypotheses(ctx, m.Topic, knowledge)
		return err
	})
	if err != nil {
		return err
	}

	if err := o.enter(ctx, m, em, StateSynthesize, Active(StageSynthesis, "Synthesizing...")); err != nil {
		return err
	}
	return o.timed(ctx, StageSynthesis, func(ctx context.Context) error {
		texts := make([]string, 0, len(m.Results)+1)
		texts = append(texts, m.Results...)
		texts = append(texts, m.Hypotheses)
		report, err := o.stages.Synthesizer.Synthesize(ctx, m.Topic, texts)
		if err != nil {
			return err
		}
		m.Report = report
		return ctx.Err()
	})
}

// hypothesisFacts keeps at most k facts. When the attachment excerpt is already
// in the prompt, the stored attachment fact is skipped so the file stays within
// PromptFileBound.
func hypothesisFacts(facts []string, withFile bool, k int) []string {
	out := make([]string, 0, len(facts))
	for _, fact := range facts {
		if withFile && strings.HasPrefix(fact, FileFactLabel) {
			continue
		}
		out = append(out, fact)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ingest extracts the attachment. Failures degrade to an empty context.
func (o *Orchestrator) ingest(ctx context.Context, m *Mission, mem *memory.Memory, log *zap.Logger) {
	_ = o.timed(ctx, StageIngest, func(ctx context.Context) error {
		text, err := o.extractor.Extract(ctx, m.FilePath)
		if err != nil {
			log.Warn("attachment unreadable, continuing without it", zap.String("path", m.FilePath), zap.Error(err))
			return nil
		}
		m.FileContext = text
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if err := mem.AddFact(ctx, FileFactLabel+helpers.Truncate(text, o.opts.MemoryFileBound)); err != nil {
			log.Warn("attachment not stored in memory", zap.Error(err))
			return nil
		}
		o.metrics.FactAdded(mem.Backend())
		return nil
	})
}

// iterate runs one search then analysis for query.
func (o *Orchestrator) iterate(ctx context.Context, m *Mission, mem *memory.Memory, em *emitter, query string) error {
	if err := o.enter(ctx, m, em, StateSearch, Active(StageSearch, "Searching: "+query)); err != nil {
		return err
	}
	var raw string
	err := o.timed(ctx, StageSearch, func(ctx context.Context) error {
		var err error
		raw, err = o.stages.Searcher.ExecuteSearch(ctx, query)
		if err != nil {
			return err
		}
		if err := mem.AddFact(ctx, raw); err != nil {
			return fmt.Errorf("storing search result: %w", err)
		}
		o.metrics.FactAdded(mem.Backend())
		return nil
	})
	if err != nil {
		return err
	}

	if err := o.enter(ctx, m, em, StateAnalyze, Active(StageAnalysis, "Analyzing...")); err != nil {
		return err
	}
	return o.timed(ctx, StageAnalysis, func(ctx context.Context) error {
		analysis, err := o.stages.Analyzer.AnalyzeResults(ctx, query, raw)
		if err != nil {
			return err
		}
		m.Results = append(m.Results, analysis)
		return nil
	})
}

// enter moves m to next and announces it. Nothing is sent once ctx is done.
func (o *Orchestrator) enter(ctx context.Context, m *Mission, em *emitter, next State, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.advance(next); err != nil {
		return err
	}
	return em.emit(ev)
}

// timed runs fn inside a stage span and records its duration.
func (o *Orchestrator) timed(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx, span := missionTracer.Start(ctx, "mission."+strings.ToLower(stage))
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.opts.StageDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(o.opts.StageDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
