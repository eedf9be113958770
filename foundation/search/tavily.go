package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	depth    string
	endpoint string
	client   *http.Client
}

// NewTavily constructs a Tavily backend. depth is "basic" or "advanced".
func NewTavily(apiKey, depth string) *Tavily {
	return NewTavilyWithClient(apiKey, depth, &http.Client{Timeout: 30 * time.Second})
}

// NewTavilyWithClient constructs a Tavily backend using the supplied HTTP client.
func NewTavilyWithClient(apiKey, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{apiKey: apiKey, depth: depth, endpoint: tavilyEndpoint, client: client}
}

// Name implements Searcher.
func (t *Tavily) Name() string { return "tavily" }

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts the query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if t.apiKey == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	reqBody := map[string]any{
		"api_key":      t.apiKey,
		"query":        query,
		"search_depth": t.depth,
		"max_results":  limit,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return truncate(results, limit), nil
}
