// Package search provides web search backends used by the search_internet tool.
//
// Available providers:
//
//   - Tavily: requires TAVILY_API_KEY, the default
//   - Brave: requires BRAVE_API_KEY
//   - DuckDuckGo: no key, scrapes the HTML endpoint; used as the fallback
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title" jsonschema:"description=Title of the search result"`
	URL     string `json:"url" jsonschema:"description=URL of the source"`
	Content string `json:"content" jsonschema:"description=Content excerpt from the source"`
}

// Searcher runs a query and returns at most limit results in ranking order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// Options selects and configures a backend.
type Options struct {
	Provider  string
	TavilyKey string
	BraveKey  string
	Depth     string
	// Timeout bounds each HTTP request. Zero keeps the backend's own default.
	Timeout time.Duration
}

// New returns the requested backend. When the provider's API key is missing it falls
// back to DuckDuckGo and logs why.
func New(opts Options, log logrus.FieldLogger) (Searcher, error) {
	switch opts.Provider {
	case "tavily", "":
		if opts.TavilyKey != "" {
			log.Info("✅ Using Tavily for web search")
			if opts.Timeout > 0 {
				return NewTavilyWithClient(opts.TavilyKey, opts.Depth, &http.Client{Timeout: opts.Timeout}), nil
			}
			return NewTavily(opts.TavilyKey, opts.Depth), nil
		}
		log.Warn("ℹ️ TAVILY_API_KEY not set, falling back to DuckDuckGo")
	case "brave":
		if opts.BraveKey != "" {
			log.Info("✅ Using Brave for web search")
			if opts.Timeout > 0 {
				return NewBraveWithClient(opts.BraveKey, &http.Client{Timeout: opts.Timeout}), nil
			}
			return NewBrave(opts.BraveKey), nil
		}
		log.Warn("ℹ️ BRAVE_API_KEY not set, falling back to DuckDuckGo")
	case "duckduckgo":
	default:
		return nil, fmt.Errorf("unknown search provider %q", opts.Provider)
	}
	log.Info("✅ Using DuckDuckGo for web search")
	if opts.Timeout > 0 {
		return NewDuckDuckGoWithClient(&http.Client{Timeout: opts.Timeout}), nil
	}
	return NewDuckDuckGo(), nil
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
