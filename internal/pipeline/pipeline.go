package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/pharmabrief/internal/brief"
	"github.com/TobiSchelling/pharmabrief/internal/fetch"
	"github.com/TobiSchelling/pharmabrief/internal/logger"
	"github.com/TobiSchelling/pharmabrief/internal/search"
	"github.com/TobiSchelling/pharmabrief/internal/summarize"
	"github.com/TobiSchelling/pharmabrief/internal/synthesize"
	"github.com/TobiSchelling/pharmabrief/internal/triage"
)

// ErrInvalidRequest is returned for an empty drug list or a blank drug name.
var ErrInvalidRequest = errors.New("invalid request")

// Stage names a point in a single drug's pipeline.
type Stage string

const (
	StageInit                 Stage = "init"
	StageLatestSummaryFetched Stage = "latest_summary_fetched"
	StageNewsCollected        Stage = "news_collected"
	StageClassified           Stage = "classified"
	StageMoAResolved          Stage = "moa_resolved"
	StageAssembled            Stage = "assembled"
)

// LinkSearcher returns result links for a query. An empty slice with a nil
// error means nothing was found. *search.Client satisfies it.
type LinkSearcher interface {
	Links(ctx context.Context, req search.Request) ([]string, error)
}

// PageFetcher returns the text of a page. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) fetch.Document
}

// Deps are the collaborators shared by every analysis.
type Deps struct {
	Search     LinkSearcher
	Fetcher    PageFetcher
	Summarizer *summarize.Summarizer
}

// Options tunes the orchestrator.
type Options struct {
	LatestQuery string
	NewsQuery   string
	NewsCount   int
	DrugWorkers int
	NewsWorkers int
	Now         func() time.Time
}

// Orchestrator runs the per-drug analysis pipeline.
type Orchestrator struct {
	search     LinkSearcher
	fetcher    PageFetcher
	summarizer *summarize.Summarizer
	classifier *triage.Classifier
	extractor  *synthesize.Extractor
	opts       Options
}

// New creates a new orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.LatestQuery == "" {
		opts.LatestQuery = "{drug} latest drug developments {year}"
	}
	if opts.NewsQuery == "" {
		opts.NewsQuery = "{drug} pharmaceutical news"
	}
	if opts.NewsCount <= 0 {
		opts.NewsCount = 5
	}
	if opts.DrugWorkers <= 0 {
		opts.DrugWorkers = 4
	}
	if opts.NewsWorkers <= 0 {
		opts.NewsWorkers = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		search:     deps.Search,
		fetcher:    deps.Fetcher,
		summarizer: deps.Summarizer,
		classifier: triage.NewClassifier(deps.Summarizer),
		extractor:  synthesize.NewExtractor(deps.Summarizer),
		opts:       opts,
	}
}

// Analyze produces one DrugAnalysis per drug, in input order. Per-drug
// failures degrade fields of that drug only; an error is returned only for
// invalid input or when ctx ends before every drug is done.
func (o *Orchestrator) Analyze(ctx context.Context, drugs []string) (brief.Report, error) {
	if err := validate(drugs); err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Log.Infof("Analyzing %d drug(s)", len(drugs))

	results := make([]brief.DrugAnalysis, len(drugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.DrugWorkers)
	for i, drug := range drugs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.AnalyzeDrug(gctx, drug)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	logger.Log.Infof("Analysis complete in %s", time.Since(start).Round(time.Millisecond))
	return brief.Aggregate(results...), nil
}

func validate(drugs []string) error {
	if len(drugs) == 0 {
		return fmt.Errorf("%w: drugs list is empty", ErrInvalidRequest)
	}
	for i, d := range drugs {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: drug at position %d is blank", ErrInvalidRequest, i)
		}
	}
	return nil
}

// newsSlot holds the outcome of one news link.
type newsSlot struct {
	summary string
	item    *brief.NewsItem
}

// AnalyzeDrug runs the full pipeline for one drug. It always returns an
// analysis; missing data is represented by placeholders and empty buckets.
func (o *Orchestrator) AnalyzeDrug(ctx context.Context, drug string) brief.DrugAnalysis {
	log := logger.Log.WithField("drug", drug)
	analysis := brief.NewDrugAnalysis(drug)
	log.WithField("stage", StageInit).Debug("Starting analysis")

	analysis.LatestSummary = o.latestSummary(ctx, drug)
	log.WithField("stage", StageLatestSummaryFetched).Debug("Latest summary resolved")

	links, err := o.search.Links(ctx, search.Request{
		Query:   search.RenderQuery(o.opts.NewsQuery, drug, o.opts.Now()),
		Count:   o.opts.NewsCount,
		News:    true,
		Recency: search.RecencyMonth,
	})
	if err != nil {
		log.Debugf("News search failed: %v", err)
	}
	log.WithField("stage", StageNewsCollected).Debugf("Found %d news link(s)", len(links))

	slots := o.processNews(ctx, drug, links)

	var summaries []string
	for _, s := range slots {
		if s.summary != "" {
			summaries = append(summaries, s.summary)
		}
		if s.item != nil {
			analysis.AddNews(*s.item)
		}
	}
	log.WithField("stage", StageClassified).Debugf("Classified %d of %d summaries", analysis.NewsCount(), len(summaries))

	analysis.MoA = o.extractor.Extract(ctx, drug, summaries)
	log.WithField("stage", StageMoAResolved).Debug("MoA resolved")

	log.WithField("stage", StageAssembled).Infof("Analysis ready: %d clinical, %d regulatory, %d commercial",
		len(analysis.ClinicalNews), len(analysis.RegulatoryNews), len(analysis.CommercialNews))
	return analysis
}

func (o *Orchestrator) latestSummary(ctx context.Context, drug string) string {
	links, err := o.search.Links(ctx, search.Request{
		Query: search.RenderQuery(o.opts.LatestQuery, drug, o.opts.Now()),
		Count: 1,
	})
	if err != nil {
		logger.Log.WithField("drug", drug).Debugf("Latest search failed: %v", err)
		return brief.SearchUnavailable
	}
	if len(links) == 0 {
		return brief.NoRecentInformation
	}

	doc := o.fetcher.Fetch(ctx, links[0])
	if !doc.OK() {
		logger.Log.WithFields(logrus.Fields{"drug": drug, "url": doc.URL}).
			Warnf("Latest source unavailable: %v", doc.Failure)
		return brief.SourceUnavailable
	}

	sum := o.summarizer.Summarize(ctx, doc.Text, summarize.LatestInstruction)
	if sum.Failed() {
		return brief.SummaryUnavailable
	}
	return sum.Text
}

// processNews handles every link concurrently and returns the outcomes in
// link order.
func (o *Orchestrator) processNews(ctx context.Context, drug string, links []string) []newsSlot {
	slots := make([]newsSlot, len(links))

	var g errgroup.Group
	g.SetLimit(o.opts.NewsWorkers)
	for i, link := range links {
		g.Go(func() error {
			slots[i] = o.processLink(ctx, drug, link)
			return nil
		})
	}
	_ = g.Wait()

	return slots
}

func (o *Orchestrator) processLink(ctx context.Context, drug, link string) newsSlot {
	log := logger.Log.WithFields(logrus.Fields{"drug": drug, "url": link})

	doc := o.fetcher.Fetch(ctx, link)
	if !doc.OK() {
		log.Debugf("Skipping news item: %v", doc.Failure)
		return newsSlot{}
	}

	sum := o.summarizer.Summarize(ctx, doc.Text, summarize.NewsInstruction)
	if sum.Failed() {
		log.Debugf("Skipping news item: %v", sum)
		return newsSlot{}
	}

	slot := newsSlot{summary: sum.Text}
	if category, ok := o.classifier.Classify(ctx, sum.Text); ok {
		slot.item = &brief.NewsItem{Summary: sum.Text, URL: link, Category: category}
	}
	return slot
}
