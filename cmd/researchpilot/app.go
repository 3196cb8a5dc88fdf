package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/agent"
	"github.com/mohammad-safakhou/researchpilot/internal/ingest"
	"github.com/mohammad-safakhou/researchpilot/internal/llm"
	"github.com/mohammad-safakhou/researchpilot/internal/logger"
	"github.com/mohammad-safakhou/researchpilot/internal/memory"
	"github.com/mohammad-safakhou/researchpilot/internal/mission"
	"github.com/mohammad-safakhou/researchpilot/internal/telemetry"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	metrics   *telemetry.Metrics
	memory    *memory.Memory
	provider  llm.Provider
	orch      *mission.Orchestrator
}

func bootstrap(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.General.LogLevel)

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a := &app{cfg: cfg, logger: log, telemetry: tel, metrics: telemetry.NewMetrics()}

	a.provider, err = llm.New(cfg.LLM)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("llm: %w", err)
	}
	stages, err := agent.NewStages(cfg, a.provider, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	extractorOpts := []ingest.Option{ingest.WithMaxBytes(cfg.Ingest.MaxBytes)}
	if cfg.Ingest.OCREnabled {
		extractorOpts = append(extractorOpts, ingest.WithOCR(ingest.NewTesseractOCR(cfg.Ingest.OCRLanguage)))
	}
	extractor := ingest.NewFileExtractor(log.Named("ingest"), extractorOpts...)

	opts := mission.OptionsFromConfig(cfg.Mission)
	if opts.MemoryScope == mission.ScopeMission {
		opts.NewMemory = func(ctx context.Context) (*memory.Memory, error) {
			return memory.New(ctx, cfg.Memory, log.Named("memory"))
		}
	} else {
		a.memory, err = memory.New(ctx, cfg.Memory, log.Named("memory"))
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("memory: %w", err)
		}
	}

	a.orch, err = mission.New(a.memory, stages, extractor, opts, log.Named("orchestrator"), a.metrics)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	log.Info("researchpilot ready",
		zap.String("llm", cfg.LLM.Provider),
		zap.String("model", a.provider.Model()),
		zap.String("search", cfg.Search.Provider),
		zap.String("memory", cfg.Memory.Backend),
		zap.String("scope", opts.MemoryScope),
	)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	var errs []error
	if a.memory != nil {
		errs = append(errs, a.memory.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
