package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPI searches articles through newsapi.org.
type NewsAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewNewsAPI creates a new NewsAPI client.
func NewNewsAPI(apiKey string) *NewsAPI {
	return &NewsAPI{
		apiKey:  apiKey,
		baseURL: newsAPIBaseURL,
		client:  &http.Client{},
		now:     time.Now,
	}
}

var _ Searcher = (*NewsAPI)(nil)

// Search implements Searcher. NewsAPI only indexes news, so general and news
// requests differ only by the recency window.
func (n *NewsAPI) Search(ctx context.Context, req *Request) (*Response, error) {
	pageSize := req.Count
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{
		"q":        {req.Query},
		"language": {req.Language},
		"pageSize": {strconv.Itoa(pageSize)},
		"sortBy":   {"relevancy"},
	}
	if req.Recency == RecencyMonth {
		params.Set("from", n.now().AddDate(0, 0, -30).Format("2006-01-02"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi HTTP error: %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %s: %s", result.Status, result.Message)
	}

	out := &Response{}
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}
		out.Results = append(out.Results, Result{
			Title:   strings.TrimSpace(a.Title),
			Link:    a.URL,
			Snippet: strings.TrimSpace(a.Description),
		})
	}
	return out, nil
}
