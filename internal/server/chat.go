package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) chatReply(c echo.Context) error {
	if s.chat == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat assistant not configured")
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	reply, err := s.chat.Reply(c.Request().Context(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{Response: reply})
}
