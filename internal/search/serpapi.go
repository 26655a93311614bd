package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const serpAPIBaseURL = "https://serpapi.com/search.json"

// SerpAPI searches Google web and news results through serpapi.com.
type SerpAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpAPI creates a new SerpAPI client.
func NewSerpAPI(apiKey string) *SerpAPI {
	return &SerpAPI{
		apiKey:  apiKey,
		baseURL: serpAPIBaseURL,
		client:  &http.Client{},
	}
}

var _ Searcher = (*SerpAPI)(nil)

type serpResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serpResponse struct {
	Error          string       `json:"error"`
	OrganicResults []serpResult `json:"organic_results"`
	NewsResults    []serpResult `json:"news_results"`
}

// Search implements Searcher.
func (s *SerpAPI) Search(ctx context.Context, req *Request) (*Response, error) {
	params := url.Values{
		"api_key":       {s.apiKey},
		"engine":        {"google"},
		"q":             {req.Query},
		"google_domain": {"google.com"},
		"gl":            {req.Country},
		"hl":            {req.Language},
	}
	if req.Count > 0 {
		params.Set("num", strconv.Itoa(req.Count))
	}
	if req.News {
		params.Set("tbm", "nws")
	}
	if req.Recency == RecencyMonth {
		params.Set("tbs", "qdr:m")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("serpapi returned %d: %s", resp.StatusCode, string(body))
	}

	var result serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", result.Error)
	}

	items := result.OrganicResults
	if req.News {
		items = result.NewsResults
	}

	out := &Response{}
	for _, r := range items {
		out.Results = append(out.Results, Result{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
