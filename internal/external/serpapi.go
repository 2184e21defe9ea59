package external

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stockbrief/internal/types"
)

const serpAPIProvider = "serpapi"

// SerpAPIConfig configures the SerpAPI Google search client.
type SerpAPIConfig struct {
	APIKey   string
	BaseURL  string
	Language string // hl
	Country  string // gl
}

// SerpAPIClient implements SearchProvider over GET /search.json.
type SerpAPIClient struct {
	base   HTTPDoer
	cfg    SerpAPIConfig
	logger *slog.Logger
}

// NewSerpAPIClient creates a search client.
func NewSerpAPIClient(httpClient *http.Client, cfg SerpAPIConfig, logger *slog.Logger) *SerpAPIClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SerpAPIClient{
		base:   NewBaseClient(httpClient, serpAPIProvider),
		cfg:    cfg,
		logger: logger,
	}
}

type serpAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Source  string `json:"source"`
		Date    string `json:"date"`
	} `json:"organic_results"`
}

// Search implements SearchProvider. An empty result set is not an error.
func (c *SerpAPIClient) Search(ctx context.Context, sr SearchRequest) ([]types.SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", sr.Query)
	params.Set("api_key", c.cfg.APIKey)
	if sr.Num > 0 {
		params.Set("num", strconv.Itoa(sr.Num))
	}
	if c.cfg.Language != "" {
		params.Set("hl", c.cfg.Language)
	}
	if c.cfg.Country != "" {
		params.Set("gl", c.cfg.Country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build search request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, retag(types.ErrCodeUpstreamSearch, serpAPIProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(types.ErrCodeUpstreamSearch, serpAPIProvider, resp)
	}

	var body serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSearch, "failed to decode search response", err)
	}
	if body.Error != "" && len(body.OrganicResults) == 0 {
		// SerpAPI reports "no results" through the error field with a 200.
		c.logger.WarnContext(ctx, "search returned no results", "reason", body.Error)
		return []types.SearchResult{}, nil
	}

	results := make([]types.SearchResult, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		results = append(results, types.SearchResult{
			Title:   r.Title,
			Snippet: r.Snippet,
			Link:    r.Link,
			Source:  r.Source,
			Date:    r.Date,
		})
	}
	return results, nil
}

var _ SearchProvider = (*SerpAPIClient)(nil)
