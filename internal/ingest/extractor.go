// Package ingest extracts plain text from files attached to a research mission.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/helpers"
)

var (
	// ErrNotFound is returned when the attachment path does not exist.
	ErrNotFound = errors.New("attachment not found")
	// ErrTooLarge is returned when a binary attachment exceeds the size cap.
	ErrTooLarge = errors.New("attachment too large")
)

// Extractor turns an attachment into text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// OCR reads text out of an image file.
type OCR interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// FileExtractor dispatches on the file extension.
type FileExtractor struct {
	ocr      OCR
	maxBytes int64
	logger   *zap.Logger
}

type Option func(*FileExtractor)

// WithOCR sets the engine used for image attachments.
func WithOCR(ocr OCR) Option {
	return func(f *FileExtractor) { f.ocr = ocr }
}

// WithMaxBytes caps how much of a file is read; 0 disables the cap.
func WithMaxBytes(n int64) Option {
	return func(f *FileExtractor) { f.maxBytes = n }
}

func NewFileExtractor(logger *zap.Logger, opts ...Option) *FileExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &FileExtractor{logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FileExtractor) Extract(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		if f.tooLarge(info.Size()) {
			return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
		}
		return extractPDF(path)
	case ".png", ".jpg", ".jpeg", ".webp":
		if f.tooLarge(info.Size()) {
			return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
		}
		return f.extractImage(ctx, path), nil
	case ".html", ".htm":
		raw, err := f.read(path)
		if err != nil {
			return "", err
		}
		return extractHTML(path, raw), nil
	default:
		raw, err := f.read(path)
		if err != nil {
			return "", err
		}
		return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
	}
}

func (f *FileExtractor) tooLarge(size int64) bool {
	return f.maxBytes > 0 && size > f.maxBytes
}

func (f *FileExtractor) read(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer file.Close()
	var r io.Reader = file
	if f.maxBytes > 0 {
		r = io.LimitReader(file, f.maxBytes)
	}
	return io.ReadAll(r)
}

// extractImage never fails: an OCR error degrades to empty text.
func (f *FileExtractor) extractImage(ctx context.Context, path string) string {
	if f.ocr == nil {
		f.logger.Warn("image attachment skipped, OCR disabled", zap.String("path", path))
		return ""
	}
	text, err := f.ocr.Recognize(ctx, path)
	if err != nil {
		f.logger.Warn("OCR failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

func extractPDF(path string) (text string, err error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

func extractHTML(path string, raw []byte) string {
	pageURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
				return title + "\n\n" + text
			}
			return text
		}
	}
	return helpers.PlainText(strings.ToValidUTF8(string(raw), "\uFFFD"))
}

var _ Extractor = (*FileExtractor)(nil)
