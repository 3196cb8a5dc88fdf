package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var errOutsideUploads = errors.New("file must be a path returned by the upload endpoint")

type uploadResponse struct {
	Info string `json:"info"`
	Path string `json:"path"`
}

// upload stores a multipart attachment for a later mission.
//
//	@Summary	Upload an attachment
//	@Tags		research
//	@Accept		multipart/form-data
//	@Param		file	formData	file	true	"Attachment"
//	@Produce	json
//	@Success	200	{object}	uploadResponse
//	@Failure	400	{object}	map[string]string
//	@Router		/api/v1/upload [post]
func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" required")
	}
	name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file name required")
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dest := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"_"+name)
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	s.logger.Info("attachment uploaded", zap.String("path", dest), zap.Int64("bytes", fh.Size))
	return c.JSON(http.StatusOK, uploadResponse{
		Info: fmt.Sprintf("file '%s' saved successfully.", name),
		Path: dest,
	})
}
