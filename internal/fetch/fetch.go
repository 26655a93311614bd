package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/pharmabrief/internal/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; pharmabrief/1.0)"
	maxBodyBytes     = 5 << 20
	maxRedirects     = 10
)

// Reason classifies why a page could not be turned into text.
type Reason string

const (
	ReasonTimeout Reason = "timeout"
	ReasonNetwork Reason = "network"
	ReasonStatus  Reason = "status"
	ReasonParse   Reason = "parse"
	ReasonEmpty   Reason = "empty"
)

// Failure describes a failed fetch.
type Failure struct {
	Reason     Reason
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.Reason == ReasonStatus:
		return fmt.Sprintf("fetch %s: HTTP %d %s", f.Reason, f.StatusCode, http.StatusText(f.StatusCode))
	case f.Err != nil:
		return fmt.Sprintf("fetch %s: %v", f.Reason, f.Err)
	default:
		return fmt.Sprintf("fetch %s", f.Reason)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Document is the outcome of fetching one URL. Exactly one of Text and
// Failure is meaningful.
type Document struct {
	URL     string
	Text    string
	Failure *Failure
}

// OK reports whether the document carries usable text.
func (d Document) OK() bool { return d.Failure == nil }

// Options configures a Fetcher.
type Options struct {
	Timeout             time.Duration
	UserAgent           string
	ReadabilityFallback bool
}

// Fetcher downloads pages and extracts their paragraph text.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	readability bool
}

// New creates a new page fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   opts.UserAgent,
		readability: opts.ReadabilityFallback,
	}
}

// Fetch retrieves pageURL and returns its visible paragraph text. It never
// returns an error; failures are reported through Document.Failure.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) Document {
	doc := Document{URL: pageURL}
	text, failure := f.fetch(ctx, pageURL)
	if failure != nil {
		logger.Log.WithField("url", pageURL).Debugf("Fetch failed: %v", failure)
		doc.Failure = failure
		return doc
	}
	doc.Text = text
	return doc
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (string, *Failure) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", &Failure{Reason: ReasonNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", &Failure{Reason: ReasonNetwork, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Failure{Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", transportFailure(err)
	}

	text, err := Paragraphs(body)
	if err != nil {
		return "", &Failure{Reason: ReasonParse, Err: err}
	}

	if text == "" && f.readability {
		if article, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil {
			text = strings.TrimSpace(article.TextContent)
		}
	}

	if text == "" {
		return "", &Failure{Reason: ReasonEmpty}
	}
	return text, nil
}

// Paragraphs returns the trimmed text of every <p> element in document
// order, skipping empty ones, joined by newlines.
func Paragraphs(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n"), nil
}

func transportFailure(err error) *Failure {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Failure{Reason: ReasonTimeout, Err: err}
	}
	return &Failure{Reason: ReasonNetwork, Err: err}
}
