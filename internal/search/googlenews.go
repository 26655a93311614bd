package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

const googleNewsBaseURL = "https://news.google.com/rss/search"

// GoogleNews searches the Google News RSS feed. It needs no API key.
type GoogleNews struct {
	baseURL string
	client  *http.Client
}

// NewGoogleNews creates a new Google News RSS searcher.
func NewGoogleNews() *GoogleNews {
	return &GoogleNews{
		baseURL: googleNewsBaseURL,
		client:  &http.Client{},
	}
}

var _ Searcher = (*GoogleNews)(nil)

// Search implements Searcher.
func (g *GoogleNews) Search(ctx context.Context, req *Request) (*Response, error) {
	query := req.Query
	if req.Recency == RecencyMonth {
		query += " when:30d"
	}

	lang := strings.ToLower(req.Language)
	country := strings.ToUpper(req.Country)
	params := url.Values{
		"q":    {query},
		"hl":   {lang + "-" + country},
		"gl":   {country},
		"ceid": {country + ":" + lang},
	}

	parser := gofeed.NewParser()
	parser.Client = g.client
	feed, err := parser.ParseURLWithContext(g.baseURL+"?"+params.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("google news feed: %w", err)
	}

	out := &Response{}
	for _, item := range feed.Items {
		if req.Count > 0 && len(out.Results) >= req.Count {
			break
		}
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		if link == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			Title:   strings.TrimSpace(item.Title),
			Link:    link,
			Snippet: strings.TrimSpace(item.Description),
		})
	}
	return out, nil
}
