package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	ProviderTavily = "tavily"
	ProviderExa    = "exa"

	tavilySearchURL = "https://api.tavily.com/search"
	exaSearchURL    = "https://api.exa.ai/search"
)

var ErrNoSearchProvider = errors.New("no web search provider configured")

// WebSearchConfig holds provider keys. With both keys set Tavily is tried first and
// Exa answers when Tavily fails.
type WebSearchConfig struct {
	TavilyKey string
	ExaKey    string
	Timeout   time.Duration
	// RequestsPerSecond paces outbound search calls; zero means 1/s
	RequestsPerSecond float64

	// Endpoint overrides for tests
	TavilyURL string
	ExaURL    string
}

// HTTPWebSearcher queries Tavily or Exa over their JSON APIs
type HTTPWebSearcher struct {
	cfg        WebSearchConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewWebSearcher(cfg WebSearchConfig) *HTTPWebSearcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.TavilyURL == "" {
		cfg.TavilyURL = tavilySearchURL
	}
	if cfg.ExaURL == "" {
		cfg.ExaURL = exaSearchURL
	}
	return &HTTPWebSearcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Enabled reports whether any provider key is configured
func (s *HTTPWebSearcher) Enabled() bool {
	return s.cfg.TavilyKey != "" || s.cfg.ExaKey != ""
}

func (s *HTTPWebSearcher) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}

	if !s.Enabled() {
		return nil, &ServiceError{Provider: "websearch", Cause: ErrNoSearchProvider}
	}
	if s.cfg.TavilyKey == "" {
		return s.searchExa(ctx, query, max)
	}

	results, err := s.searchTavily(ctx, query, max)
	if err == nil || s.cfg.ExaKey == "" || ctx.Err() != nil {
		return results, err
	}
	// Tavily failed; Exa answers the same query
	exaResults, exaErr := s.searchExa(ctx, query, max)
	if exaErr != nil {
		return nil, errors.Join(err, exaErr)
	}
	return exaResults, nil
}

func (s *HTTPWebSearcher) searchTavily(ctx context.Context, query string, max int) ([]SearchResult, error) {
	reqBody := map[string]interface{}{
		"api_key":     s.cfg.TavilyKey,
		"query":       query,
		"max_results": max,
	}

	var tavilyResp struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := s.post(ctx, ProviderTavily, s.cfg.TavilyURL, "", reqBody, &tavilyResp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return results, nil
}

func (s *HTTPWebSearcher) searchExa(ctx context.Context, query string, max int) ([]SearchResult, error) {
	reqBody := map[string]interface{}{
		"query":      query,
		"numResults": max,
		"contents": map[string]interface{}{
			"text": true,
		},
	}

	var exaResp struct {
		Results []struct {
			Title string  `json:"title"`
			URL   string  `json:"url"`
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := s.post(ctx, ProviderExa, s.cfg.ExaURL, s.cfg.ExaKey, reqBody, &exaResp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(exaResp.Results))
	for _, r := range exaResp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Text, Score: r.Score})
	}
	return results, nil
}

func (s *HTTPWebSearcher) post(ctx context.Context, provider, url, bearer string, body interface{}, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return newServiceError(provider, 0, err)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return newServiceError(provider, 0, fmt.Errorf("failed to prepare search request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return newServiceError(provider, 0, fmt.Errorf("failed to create search request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return newServiceError(provider, 0, fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return newServiceError(provider, resp.StatusCode, fmt.Errorf("failed to read search response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return newServiceError(provider, resp.StatusCode, fmt.Errorf("search API returned %q", truncateBody(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return newServiceError(provider, resp.StatusCode, fmt.Errorf("failed to parse search response: %w", err))
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
