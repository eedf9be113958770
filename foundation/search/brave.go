package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. The key is sent as X-Subscription-Token.
type Brave struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewBrave constructs a Brave backend.
func NewBrave(apiKey string) *Brave {
	return NewBraveWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewBraveWithClient constructs a Brave backend using the supplied HTTP client.
func NewBraveWithClient(apiKey string, client *http.Client) *Brave {
	return &Brave{apiKey: apiKey, endpoint: braveEndpoint, client: client}
}

// Name implements Searcher.
func (b *Brave) Name() string { return "brave" }

// Search executes a Brave query.
func (b *Brave) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if b.apiKey == "" {
		return nil, errors.New("brave: API key is missing")
	}

	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("count", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave returned status %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Description})
	}
	return truncate(results, limit), nil
}
