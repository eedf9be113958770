// Package tools provides the agent's tool definitions.
package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/olusolaa/searchchat/foundation/search"
)

// SearchToolName is the name the model uses to request a web search.
const SearchToolName = "search_internet"

// SearchRequest is the search tool's input.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"description=The search query to find information on the internet"`
}

// SearchResponse is the search tool's output.
type SearchResponse struct {
	Query   string          `json:"query" jsonschema:"description=The search query that was executed"`
	Results []search.Result `json:"results" jsonschema:"description=Search results in ranking order"`
}

// NewSearchTool wraps searcher as an eino tool returning at most maxResults results.
func NewSearchTool(searcher search.Searcher, maxResults int) (tool.InvokableTool, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	return utils.InferTool(
		SearchToolName,
		"Search the internet for current information, news, and general knowledge. Returns the top results with their source URLs and content. Use this for current events or anything you are unsure about.",
		func(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
			results, err := searcher.Search(ctx, req.Query, maxResults)
			if err != nil {
				return nil, fmt.Errorf("%s search failed: %w", searcher.Name(), err)
			}
			return &SearchResponse{Query: req.Query, Results: results}, nil
		},
	)
}
