// Package history keeps a record of past research missions.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("mission record not found")

// Mission statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Record summarises one mission.
type Record struct {
	ID         string        `json:"id"`
	Topic      string        `json:"topic"`
	FilePath   string        `json:"file_path,omitempty"`
	Status     string        `json:"status"`
	Report     string        `json:"report,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Begin returns a processing record stamped with now.
func Begin(id, topic, filePath string, now time.Time) Record {
	return Record{ID: id, Topic: topic, FilePath: filePath, Status: StatusProcessing, CreatedAt: now.UTC()}
}

// Complete marks r completed with report.
func (r Record) Complete(report string, now time.Time) Record {
	r.Status = StatusCompleted
	r.Report = report
	return r.finish(now)
}

// Fail marks r failed with msg.
func (r Record) Fail(msg string, now time.Time) Record {
	r.Status = StatusFailed
	r.Error = msg
	return r.finish(now)
}

func (r Record) finish(now time.Time) Record {
	at := now.UTC()
	r.FinishedAt = &at
	r.Duration = at.Sub(r.CreatedAt)
	return r
}

// Store persists mission records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Searcher is implemented by stores that support full-text queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Record, error)
}

// Search queries s with its own index when it has one, otherwise it filters
// List by a case-insensitive match on topic and report.
func Search(ctx context.Context, s Store, query string, limit int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}
	if searcher, ok := s.(Searcher); ok {
		return searcher.Search(ctx, query, limit)
	}
	all, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	out := make([]Record, 0)
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Topic), needle) || strings.Contains(strings.ToLower(rec.Report), needle) {
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// New builds the store selected by cfg, wrapped in a search index when
// cfg.Search is set.
func New(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (Store, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "memory":
		store = NewMemoryStore()
	case "redis":
		store, err = NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("history redis: %w", err)
		}
	default:
		return nil, fmt.Errorf("history backend %q unsupported", cfg.Backend)
	}
	logger.Info("history store ready", zap.String("backend", cfg.Backend), zap.Bool("search", cfg.Search))

	if !cfg.Search {
		return store, nil
	}
	indexed, err := NewIndexed(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return indexed, nil
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

func clip(recs []Record, limit int) []Record {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
