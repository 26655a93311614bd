package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/pharmabrief/internal/logger"
)

// ErrNoSearcher is returned by Client.Links when no backend is configured.
var ErrNoSearcher = errors.New("no search provider configured")

// Searcher is implemented by every search backend.
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Recency restricts results to a publication window.
type Recency string

const (
	RecencyAny   Recency = ""
	RecencyMonth Recency = "month"
)

// Request is a provider-neutral search request.
type Request struct {
	Query    string
	Count    int
	News     bool
	Recency  Recency
	Language string // e.g. "en"
	Country  string // e.g. "us"
}

// Response holds results in provider relevance order.
type Response struct {
	Results []Result
}

// Result is a single search hit.
type Result struct {
	Title   string
	Link    string
	Snippet string
}

// RenderQuery fills the {drug} and {year} placeholders of a query template.
func RenderQuery(template, drug string, now time.Time) string {
	r := strings.NewReplacer("{drug}", drug, "{year}", strconv.Itoa(now.Year()))
	return strings.TrimSpace(r.Replace(template))
}

// Client issues throttled, time-bounded searches. It is safe for concurrent use.
type Client struct {
	searcher Searcher
	limiter  *rate.Limiter
	timeout  time.Duration
	language string
	country  string
}

// ClientOptions configures a Client. A nil Limiter disables throttling.
type ClientOptions struct {
	Limiter  *rate.Limiter
	Timeout  time.Duration
	Language string
	Country  string
}

// NewClient creates a new search client around a backend.
func NewClient(searcher Searcher, opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Country == "" {
		opts.Country = "us"
	}
	return &Client{
		searcher: searcher,
		limiter:  opts.Limiter,
		timeout:  opts.Timeout,
		language: opts.Language,
		country:  opts.Country,
	}
}

// Links returns up to req.Count result links in relevance order. A search
// that found nothing returns an empty slice and a nil error; a search that
// could not be performed returns an error.
func (c *Client) Links(ctx context.Context, req Request) ([]string, error) {
	log := logger.Log.WithField("query", req.Query)

	if c.searcher == nil {
		return nil, ErrNoSearcher
	}
	if req.Language == "" {
		req.Language = c.language
	}
	if req.Country == "" {
		req.Country = c.country
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for search rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.searcher.Search(ctx, &req)
	if err != nil {
		log.Warnf("Search failed: %v", err)
		return nil, err
	}
	if resp == nil || len(resp.Results) == 0 {
		log.Debug("Search returned no results")
		return nil, nil
	}

	var links []string
	for _, r := range resp.Results {
		if r.Link == "" {
			continue
		}
		links = append(links, r.Link)
		if req.Count > 0 && len(links) >= req.Count {
			break
		}
	}
	log.Debugf("Search returned %d links", len(links))
	return links, nil
}
