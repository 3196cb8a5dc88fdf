package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/history"
	"github.com/mohammad-safakhou/researchpilot/internal/mission"
)

var serverTracer = otel.Tracer("github.com/mohammad-safakhou/researchpilot/internal/server")

// research streams a mission as Server-Sent Events.
//
//	@Summary	Run a research mission
//	@Tags		research
//	@Param		topic	query	string	true	"Research topic"
//	@Param		file	query	string	false	"Path returned by the upload endpoint"
//	@Produce	text/event-stream
//	@Success	200	{string}	string
//	@Failure	400	{object}	map[string]string
//	@Router		/research [get]
func (s *Server) research(c echo.Context) error {
	req := c.Request()
	ctx, span := serverTracer.Start(req.Context(), "Server.research")
	defer span.End()

	topic := strings.TrimSpace(c.QueryParam("topic"))
	filePath := ""
	if raw := strings.TrimSpace(c.QueryParam("file")); raw != "" {
		resolved, err := s.resolveUpload(raw)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filePath = resolved
	}
	id := uuid.NewString()
	span.SetAttributes(attribute.String("mission.id", id), attribute.String("mission.topic", topic))

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	// detached so the final status is stored after the client leaves
	saveCtx := context.WithoutCancel(ctx)
	record := history.Begin(id, topic, filePath, time.Now())
	recorded := topic != ""
	if recorded {
		if err := s.history.Save(saveCtx, record); err != nil {
			s.logger.Warn("history save failed", zap.String("mission_id", id), zap.Error(err))
		}
	}

	var terminal *mission.Event
	err := s.runner.Stream(ctx, mission.Request{ID: id, Topic: topic, FilePath: filePath}, func(ev mission.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		if ev.Terminal() {
			terminal = &ev
		}
		return nil
	})

	if !recorded {
		return nil
	}
	now := time.Now()
	switch {
	case terminal != nil && terminal.Kind == mission.KindComplete:
		record = record.Complete(terminal.Content, now)
	case terminal != nil:
		record = record.Fail(terminal.Msg, now)
	case err != nil:
		record = record.Fail("stream interrupted: "+err.Error(), now)
	}
	if err != nil {
		span.RecordError(err)
	}
	if saveErr := s.history.Save(saveCtx, record); saveErr != nil {
		s.logger.Warn("history save failed", zap.String("mission_id", id), zap.Error(saveErr))
	}
	return nil
}

// resolveUpload accepts only files inside the upload directory. Relative
// paths may be given with or without the upload directory prefix.
func (s *Server) resolveUpload(raw string) (string, error) {
	dir, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return "", err
	}
	candidate := filepath.Clean(raw)
	if !filepath.IsAbs(candidate) {
		if rel, err := filepath.Rel(filepath.Clean(s.cfg.UploadDir), candidate); err == nil && !escapes(rel) {
			candidate = rel
		}
		candidate = filepath.Join(dir, candidate)
	}
	rel, err := filepath.Rel(dir, candidate)
	if err != nil || rel == "." || escapes(rel) {
		return "", errOutsideUploads
	}
	return candidate, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
