package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TobiSchelling/pharmabrief/internal/brief"
	"github.com/TobiSchelling/pharmabrief/internal/fetch"
	"github.com/TobiSchelling/pharmabrief/internal/llm"
	"github.com/TobiSchelling/pharmabrief/internal/search"
	"github.com/TobiSchelling/pharmabrief/internal/summarize"
)

var testNow = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func latestQuery(drug string) string {
	return drug + " latest drug developments 2026"
}

func newsQuery(drug string) string {
	return drug + " pharmaceutical news"
}

// fakeSearch returns canned links per query, or err for every query.
type fakeSearch struct {
	links map[string][]string
	err   error
}

func (f *fakeSearch) Links(_ context.Context, req search.Request) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	links := f.links[req.Query]
	if req.Count > 0 && len(links) > req.Count {
		links = links[:req.Count]
	}
	return links, nil
}

// fakeFetcher serves page text per URL; unknown URLs fail with 404.
type fakeFetcher struct {
	pages map[string]string
	delay map[string]time.Duration
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) fetch.Document {
	if d := f.delay[url]; d > 0 {
		time.Sleep(d)
	}
	text, ok := f.pages[url]
	if !ok {
		return fetch.Document{URL: url, Failure: &fetch.Failure{Reason: fetch.ReasonStatus, StatusCode: http.StatusNotFound}}
	}
	return fetch.Document{URL: url, Text: text}
}

// scriptedProvider answers according to the system instruction.
type scriptedProvider struct {
	failLatest bool
	failNews   map[string]bool
	failMoA    bool

	mu        sync.Mutex
	moaInputs []string
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	switch {
	case req.System == summarize.LatestInstruction:
		if p.failLatest {
			return "", errors.New("latest model down")
		}
		return "latest: " + req.User, nil

	case req.System == summarize.NewsInstruction:
		if p.failNews[req.User] {
			return "", errors.New("news model down")
		}
		return "summary of " + req.User, nil

	case strings.HasPrefix(req.System, "Classify"):
		switch {
		case strings.Contains(req.User, "clinical"):
			return "Clinical", nil
		case strings.Contains(req.User, "regulatory"):
			return "Regulatory", nil
		case strings.Contains(req.User, "commercial"):
			return "Commercial", nil
		}
		return "Financial", nil

	case strings.HasPrefix(req.System, "Identify the mechanism of action"):
		p.mu.Lock()
		p.moaInputs = append(p.moaInputs, req.User)
		p.mu.Unlock()
		if p.failMoA {
			return "", errors.New("moa model down")
		}
		return "Inhibits the target enzyme.", nil
	}
	return "", fmt.Errorf("unexpected instruction %q", req.System)
}

func newOrchestrator(s LinkSearcher, f PageFetcher, p llm.Provider, workers int) *Orchestrator {
	return New(Deps{
		Search:     s,
		Fetcher:    f,
		Summarizer: summarize.New(p, summarize.Options{Temperature: 0.1}),
	}, Options{DrugWorkers: workers, NewsWorkers: workers, Now: testNow})
}

func drugXFixtures() (*fakeSearch, *fakeFetcher) {
	s := &fakeSearch{links: map[string][]string{
		latestQuery("DrugX"): {"https://x.example/latest"},
		newsQuery("DrugX"):   {"https://x.example/n1", "https://x.example/n2", "https://x.example/n3"},
	}}
	f := &fakeFetcher{pages: map[string]string{
		"https://x.example/latest": "drugx approved in new indication",
		"https://x.example/n1":     "drugx clinical trial one",
		"https://x.example/n2":     "drugx commercial launch",
		"https://x.example/n3":     "drugx clinical trial two",
	}}
	return s, f
}

func TestAnalyzeDrugXScenario(t *testing.T) {
	s, f := drugXFixtures()
	o := newOrchestrator(s, f, &scriptedProvider{}, 4)

	report, err := o.Analyze(context.Background(), []string{"DrugX"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(report))
	}
	a := report[0]
	if a.Molecule != "DrugX" {
		t.Errorf("unexpected molecule %q", a.Molecule)
	}
	if a.LatestSummary != "latest: drugx approved in new indication" {
		t.Errorf("unexpected latest summary %q", a.LatestSummary)
	}
	if len(a.ClinicalNews) != 2 || len(a.CommercialNews) != 1 || len(a.RegulatoryNews) != 0 {
		t.Fatalf("unexpected buckets: clinical=%d commercial=%d regulatory=%d",
			len(a.ClinicalNews), len(a.CommercialNews), len(a.RegulatoryNews))
	}
	if a.ClinicalNews[0].URL != "https://x.example/n1" || a.ClinicalNews[1].URL != "https://x.example/n3" {
		t.Errorf("clinical items out of discovery order: %+v", a.ClinicalNews)
	}
	if a.CommercialNews[0].Summary != "summary of drugx commercial launch" {
		t.Errorf("unexpected commercial summary %q", a.CommercialNews[0].Summary)
	}
	if a.MoA == brief.MoAUnavailable || a.MoA == "" {
		t.Errorf("expected synthesized MoA, got %q", a.MoA)
	}
}

func TestAnalyzeDrugYAllFetchesFail(t *testing.T) {
	s := &fakeSearch{links: map[string][]string{
		latestQuery("DrugY"): {"https://y.example/latest"},
		newsQuery("DrugY"):   {"https://y.example/n1", "https://y.example/n2"},
	}}
	p := &scriptedProvider{}
	o := newOrchestrator(s, &fakeFetcher{}, p, 2)

	report, err := o.Analyze(context.Background(), []string{"DrugY"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(report))
	}
	a := report[0]
	if a.LatestSummary != brief.SourceUnavailable {
		t.Errorf("expected %q, got %q", brief.SourceUnavailable, a.LatestSummary)
	}
	if a.NewsCount() != 0 {
		t.Errorf("expected empty buckets, got %d items", a.NewsCount())
	}
	if a.MoA != brief.MoAUnavailable {
		t.Errorf("expected %q, got %q", brief.MoAUnavailable, a.MoA)
	}
	if len(p.moaInputs) != 0 {
		t.Errorf("MoA must not be requested without summaries, got %d calls", len(p.moaInputs))
	}
}

func TestAnalyzeDrugYSearchFails(t *testing.T) {
	searcher := searcherFunc(func(context.Context, *search.Request) (*search.Response, error) {
		return nil, errors.New("search backend unreachable")
	})
	p := &scriptedProvider{failLatest: true, failMoA: true}
	o := New(Deps{
		Search:     search.NewClient(searcher, search.ClientOptions{}),
		Fetcher:    fetch.New(fetch.Options{Timeout: time.Second}),
		Summarizer: summarize.New(p, summarize.Options{}),
	}, Options{Now: testNow})

	report, err := o.Analyze(context.Background(), []string{"DrugY"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(report))
	}
	a := report[0]
	if a.LatestSummary != brief.SearchUnavailable {
		t.Errorf("expected %q, got %q", brief.SearchUnavailable, a.LatestSummary)
	}
	if a.NewsCount() != 0 || a.MoA != brief.MoAUnavailable {
		t.Errorf("unexpected analysis: %+v", a)
	}
	if len(p.moaInputs) != 0 {
		t.Errorf("MoA must not be requested without summaries, got %d calls", len(p.moaInputs))
	}
}

func TestAnalyzeNewsSearchFailureKeepsLatest(t *testing.T) {
	s, f := drugXFixtures()
	o := newOrchestrator(&newsFailingSearch{inner: s}, f, &scriptedProvider{}, 2)

	report, err := o.Analyze(context.Background(), []string{"DrugX"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	a := report[0]
	if a.LatestSummary != "latest: drugx approved in new indication" {
		t.Errorf("latest summary should survive a news search failure, got %q", a.LatestSummary)
	}
	if a.NewsCount() != 0 || a.MoA != brief.MoAUnavailable {
		t.Errorf("expected no news and no MoA, got %+v", a)
	}
}

// newsFailingSearch fails news searches only.
type newsFailingSearch struct {
	inner *fakeSearch
}

func (n *newsFailingSearch) Links(ctx context.Context, req search.Request) ([]string, error) {
	if req.News {
		return nil, errors.New("news quota exceeded")
	}
	return n.inner.Links(ctx, req)
}

func TestAnalyzeNoSearchResults(t *testing.T) {
	o := newOrchestrator(&fakeSearch{}, &fakeFetcher{}, &scriptedProvider{}, 1)

	report, err := o.Analyze(context.Background(), []string{"Unknownumab"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	a := report[0]
	if a.LatestSummary != brief.NoRecentInformation {
		t.Errorf("expected %q, got %q", brief.NoRecentInformation, a.LatestSummary)
	}
	if a.MoA != brief.MoAUnavailable || a.NewsCount() != 0 {
		t.Errorf("unexpected analysis: %+v", a)
	}
}

func TestAnalyzeLatestSummaryFailure(t *testing.T) {
	s, f := drugXFixtures()
	o := newOrchestrator(s, f, &scriptedProvider{failLatest: true}, 2)

	report, err := o.Analyze(context.Background(), []string{"DrugX"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report[0].LatestSummary != brief.SummaryUnavailable {
		t.Errorf("expected %q, got %q", brief.SummaryUnavailable, report[0].LatestSummary)
	}
	if report[0].NewsCount() != 3 {
		t.Errorf("news should be unaffected, got %d items", report[0].NewsCount())
	}
}

func TestAnalyzeExcludesFailedItems(t *testing.T) {
	s, f := drugXFixtures()
	delete(f.pages, "https://x.example/n1")
	p := &scriptedProvider{failNews: map[string]bool{"drugx commercial launch": true}}
	o := newOrchestrator(s, f, p, 3)

	report, err := o.Analyze(context.Background(), []string{"DrugX"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	a := report[0]
	if len(a.ClinicalNews) != 1 || a.ClinicalNews[0].URL != "https://x.example/n3" {
		t.Errorf("expected only n3 in clinical, got %+v", a.ClinicalNews)
	}
	if len(a.CommercialNews) != 0 {
		t.Errorf("failed summary must not reach a bucket, got %+v", a.CommercialNews)
	}
	if len(p.moaInputs) != 1 {
		t.Fatalf("expected one MoA call, got %d", len(p.moaInputs))
	}
	if p.moaInputs[0] != "summary of drugx clinical trial two" {
		t.Errorf("unexpected MoA input %q", p.moaInputs[0])
	}
}

func TestAnalyzeUnclassifiedFeedsMoAOnly(t *testing.T) {
	s := &fakeSearch{links: map[string][]string{
		newsQuery("DrugZ"): {"https://z.example/1", "https://z.example/2"},
	}}
	f := &fakeFetcher{pages: map[string]string{
		"https://z.example/1": "drugz quarterly earnings",
		"https://z.example/2": "drugz regulatory filing",
	}}
	p := &scriptedProvider{}
	o := newOrchestrator(s, f, p, 2)

	report, err := o.Analyze(context.Background(), []string{"DrugZ"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	a := report[0]
	if a.NewsCount() != 1 || len(a.RegulatoryNews) != 1 {
		t.Errorf("expected only the regulatory item, got %+v", a)
	}
	want := "summary of drugz quarterly earnings\nsummary of drugz regulatory filing"
	if len(p.moaInputs) != 1 || p.moaInputs[0] != want {
		t.Errorf("expected both summaries as MoA input, got %q", p.moaInputs)
	}
}

func TestAnalyzeMoAFailure(t *testing.T) {
	s, f := drugXFixtures()
	o := newOrchestrator(s, f, &scriptedProvider{failMoA: true}, 2)

	report, err := o.Analyze(context.Background(), []string{"DrugX"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report[0].MoA != brief.MoAUnavailable {
		t.Errorf("expected placeholder, got %q", report[0].MoA)
	}
	if report[0].NewsCount() != 3 {
		t.Errorf("expected buckets to be kept, got %d items", report[0].NewsCount())
	}
}

func TestAnalyzePreservesInputOrder(t *testing.T) {
	drugs := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"}
	s := &fakeSearch{links: map[string][]string{}}
	f := &fakeFetcher{pages: map[string]string{}, delay: map[string]time.Duration{}}
	for i, d := range drugs {
		url := "https://pages.example/" + d
		s.links[latestQuery(d)] = []string{url}
		f.pages[url] = d + " page"
		// Earlier drugs finish later.
		f.delay[url] = time.Duration(len(drugs)-i) * 10 * time.Millisecond
	}
	o := newOrchestrator(s, f, &scriptedProvider{}, len(drugs))

	report, err := o.Analyze(context.Background(), drugs)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := report.Molecules(); !reflect.DeepEqual(got, drugs) {
		t.Errorf("expected %v, got %v", drugs, got)
	}
	for i, a := range report {
		if a.LatestSummary != "latest: "+drugs[i]+" page" {
			t.Errorf("analysis %d carries wrong summary %q", i, a.LatestSummary)
		}
	}
}

func TestAnalyzeNewsDiscoveryOrder(t *testing.T) {
	links := []string{"https://o.example/1", "https://o.example/2", "https://o.example/3", "https://o.example/4"}
	s := &fakeSearch{links: map[string][]string{newsQuery("DrugO"): links}}
	f := &fakeFetcher{pages: map[string]string{}, delay: map[string]time.Duration{}}
	for i, l := range links {
		f.pages[l] = fmt.Sprintf("drugo clinical item %d", i+1)
		f.delay[l] = time.Duration(len(links)-i) * 10 * time.Millisecond
	}
	o := newOrchestrator(s, f, &scriptedProvider{}, 4)

	report, err := o.Analyze(context.Background(), []string{"DrugO"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	got := report[0].ClinicalNews
	if len(got) != len(links) {
		t.Fatalf("expected %d items, got %d", len(links), len(got))
	}
	for i, item := range got {
		if item.URL != links[i] {
			t.Errorf("item %d: expected %s, got %s", i, links[i], item.URL)
		}
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	s, f := drugXFixtures()
	drugs := []string{"DrugX", "DrugY", "DrugX"}

	first, err := newOrchestrator(s, f, &scriptedProvider{}, 3).Analyze(context.Background(), drugs)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newOrchestrator(s, f, &scriptedProvider{}, 1).Analyze(context.Background(), drugs)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(first[0], first[2]) {
		t.Error("duplicate drugs should produce identical analyses")
	}
}

func TestAnalyzeInvalidRequest(t *testing.T) {
	o := newOrchestrator(&fakeSearch{}, &fakeFetcher{}, &scriptedProvider{}, 1)

	for _, drugs := range [][]string{nil, {}, {"DrugX", "  "}} {
		if _, err := o.Analyze(context.Background(), drugs); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%q: expected ErrInvalidRequest, got %v", drugs, err)
		}
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	s, f := drugXFixtures()
	o := newOrchestrator(s, f, &scriptedProvider{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Analyze(ctx, []string{"DrugX"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyzeWithHTTPCollaborators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest":
			w.Write([]byte(`<html><body><p>drugh phase 3 readout</p></body></html>`))
		case "/news/1":
			w.Write([]byte(`<html><body><p>drugh regulatory</p><p>approval expected</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	searcher := searcherFunc(func(_ context.Context, req *search.Request) (*search.Response, error) {
		if req.News {
			return &search.Response{Results: []search.Result{{Link: srv.URL + "/news/1"}, {Link: srv.URL + "/news/2"}}}, nil
		}
		return &search.Response{Results: []search.Result{{Link: srv.URL + "/latest"}}}, nil
	})

	o := New(Deps{
		Search:     search.NewClient(searcher, search.ClientOptions{}),
		Fetcher:    fetch.New(fetch.Options{Timeout: 5 * time.Second}),
		Summarizer: summarize.New(&scriptedProvider{}, summarize.Options{}),
	}, Options{Now: testNow})

	report, err := o.Analyze(context.Background(), []string{"DrugH"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	a := report[0]
	if a.LatestSummary != "latest: drugh phase 3 readout" {
		t.Errorf("unexpected latest summary %q", a.LatestSummary)
	}
	if len(a.RegulatoryNews) != 1 || a.RegulatoryNews[0].Summary != "summary of drugh regulatory\napproval expected" {
		t.Errorf("unexpected regulatory bucket: %+v", a.RegulatoryNews)
	}
	if a.MoA != "Inhibits the target enzyme." {
		t.Errorf("unexpected MoA %q", a.MoA)
	}
}

type searcherFunc func(ctx context.Context, req *search.Request) (*search.Response, error)

func (f searcherFunc) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	return f(ctx, req)
}
