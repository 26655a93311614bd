package search

import (
	"fmt"
	"os"
	"strings"
)

// NewSearcher creates a backend by provider name. Key-based providers read
// their API key from the environment variable named by apiKeyEnv.
func NewSearcher(provider, apiKeyEnv string) (Searcher, error) {
	name := strings.ToLower(provider)

	switch name {
	case "serpapi", "newsapi":
		apiKey := os.Getenv(apiKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%s api key is missing (set %s)", name, apiKeyEnv)
		}
		if name == "serpapi" {
			return NewSerpAPI(apiKey), nil
		}
		return NewNewsAPI(apiKey), nil

	case "googlenews":
		return NewGoogleNews(), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
