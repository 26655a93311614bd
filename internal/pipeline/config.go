package pipeline

import (
	"fmt"

	"github.com/TobiSchelling/pharmabrief/internal/config"
	"github.com/TobiSchelling/pharmabrief/internal/fetch"
	"github.com/TobiSchelling/pharmabrief/internal/llm"
	"github.com/TobiSchelling/pharmabrief/internal/search"
	"github.com/TobiSchelling/pharmabrief/internal/summarize"
)

// NewFromConfig wires the search, fetch and model clients described by cfg.
// Credentials are read from the environment; a missing key is an error.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	provider, err := llm.CreateProvider(cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	provider = llm.NewRateLimited(provider, cfg.LLM.RequestsPerMinute, cfg.LLM.Burst)

	searcher, err := search.NewSearcher(cfg.Search.Provider, cfg.Search.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("creating search provider: %w", err)
	}

	deps := Deps{
		Search: search.NewClient(searcher, search.ClientOptions{
			Limiter:  llm.NewLimiter(cfg.Search.RequestsPerMinute, cfg.Search.Burst),
			Timeout:  cfg.SearchTimeout(),
			Language: cfg.Search.Language,
			Country:  cfg.Search.Country,
		}),
		Fetcher: fetch.New(fetch.Options{
			Timeout:             cfg.FetchTimeout(),
			UserAgent:           cfg.Fetch.UserAgent,
			ReadabilityFallback: cfg.Fetch.ReadabilityFallback,
		}),
		Summarizer: summarize.New(provider, summarize.Options{
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
			MaxInputChars: cfg.LLM.MaxInputChars,
			Timeout:       cfg.LLMTimeout(),
		}),
	}

	return New(deps, Options{
		LatestQuery: cfg.Search.LatestQuery,
		NewsQuery:   cfg.Search.NewsQuery,
		NewsCount:   cfg.Search.NewsCount,
		DrugWorkers: cfg.Analysis.DrugWorkers,
		NewsWorkers: cfg.Analysis.NewsWorkers,
	}), nil
}
