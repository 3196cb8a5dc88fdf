package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/helpers"
)

const (
	defaultTavilyEndpoint = "https://api.tavily.com/search"
	defaultSerperEndpoint = "https://google.serper.dev/search"
)

// SearchResult is one hit returned by a search provider.
type SearchResult struct {
	URL     string
	Title   string
	Content string
}

// FormatResults renders hits as SOURCE/TITLE/CONTENT blocks separated by "\n---\n".
func FormatResults(results []SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("SOURCE: %s\nTITLE: %s\nCONTENT: %s\n", r.URL, r.Title, helpers.PlainText(r.Content)))
	}
	return strings.Join(blocks, "\n---\n")
}

// TavilySearcher queries the Tavily search API.
type TavilySearcher struct {
	cfg      config.SearchConfig
	endpoint string
	http     *HTTPClient
	logger   *zap.Logger
}

func NewTavilySearcher(cfg config.SearchConfig, httpc *HTTPClient, logger *zap.Logger) *TavilySearcher {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultTavilyEndpoint
	}
	return &TavilySearcher{cfg: cfg, endpoint: endpoint, http: httpc, logger: logger}
}

func (s *TavilySearcher) ExecuteSearch(ctx context.Context, query string) (string, error) {
	s.logger.Info("searching", zap.String("provider", "tavily"), zap.String("query", query))
	return settle(ctx, s.search(ctx, query), "search")
}

func (s *TavilySearcher) search(ctx context.Context, query string) Outcome {
	if s.cfg.APIKey == "" {
		return Failed(fmt.Errorf("tavily api key not configured"))
	}
	var resp struct {
		Results []struct {
			URL     string  `json:"url"`
			Title   string  `json:"title"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	headers := map[string]string{"Authorization": "Bearer " + s.cfg.APIKey}
	body := map[string]any{
		"query":        query,
		"search_depth": s.cfg.Depth,
		"max_results":  s.cfg.MaxResults,
	}
	if err := s.http.DoJSON(ctx, "POST", s.endpoint, headers, body, &resp); err != nil {
		s.logger.Warn("tavily search failed", zap.String("query", query), zap.Error(err))
		return Failed(err)
	}
	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{URL: r.URL, Title: r.Title, Content: r.Content})
	}
	return Succeeded(FormatResults(results))
}

// SerperSearcher queries serper.dev (Google results).
type SerperSearcher struct {
	cfg      config.SearchConfig
	endpoint string
	http     *HTTPClient
	logger   *zap.Logger
}

func NewSerperSearcher(cfg config.SearchConfig, httpc *HTTPClient, logger *zap.Logger) *SerperSearcher {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultSerperEndpoint
	}
	return &SerperSearcher{cfg: cfg, endpoint: endpoint, http: httpc, logger: logger}
}

func (s *SerperSearcher) ExecuteSearch(ctx context.Context, query string) (string, error) {
	s.logger.Info("searching", zap.String("provider", "serper"), zap.String("query", query))
	return settle(ctx, s.search(ctx, query), "search")
}

func (s *SerperSearcher) search(ctx context.Context, query string) Outcome {
	if s.cfg.APIKey == "" {
		return Failed(fmt.Errorf("serper api key not configured"))
	}
	var resp struct {
		Organic []struct{ Title, Link, Snippet string } `json:"organic"`
	}
	headers := map[string]string{"X-API-KEY": s.cfg.APIKey}
	body := map[string]any{"q": query, "num": s.cfg.MaxResults}
	if err := s.http.DoJSON(ctx, "POST", s.endpoint, headers, body, &resp); err != nil {
		s.logger.Warn("serper search failed", zap.String("query", query), zap.Error(err))
		return Failed(err)
	}
	results := make([]SearchResult, 0, len(resp.Organic))
	for i, r := range resp.Organic {
		if s.cfg.MaxResults > 0 && i >= s.cfg.MaxResults {
			break
		}
		results = append(results, SearchResult{URL: r.Link, Title: r.Title, Content: r.Snippet})
	}
	return Succeeded(FormatResults(results))
}

var (
	_ Searcher = (*TavilySearcher)(nil)
	_ Searcher = (*SerperSearcher)(nil)
)
