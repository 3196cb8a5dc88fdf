package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/history"
)

// SessionsHandler serves mission history.
type SessionsHandler struct {
	store  history.Store
	logger *zap.Logger
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

// list returns past missions, newest first, optionally filtered by q.
//
//	@Summary	List missions
//	@Tags		sessions
//	@Param		q		query	string	false	"Full-text query"
//	@Param		limit	query	int		false	"Maximum results"
//	@Produce	json
//	@Success	200	{array}	history.Record
//	@Router		/api/v1/sessions [get]
func (h *SessionsHandler) list(c echo.Context) error {
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	recs, err := history.Search(c.Request().Context(), h.store, c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *SessionsHandler) get(c echo.Context) error {
	rec, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *SessionsHandler) delete(c echo.Context) error {
	id := c.Param("id")
	err := h.store.Delete(c.Request().Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return err
	}
	h.logger.Info("session deleted", zap.String("mission_id", id))
	return c.JSON(http.StatusOK, map[string]string{"status": "success", "message": "Session deleted successfully"})
}
