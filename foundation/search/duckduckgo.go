package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

var (
	ddgResultPattern  = regexp.MustCompile(`<div[^>]*class="result[ "]`)
	ddgTitlePattern   = regexp.MustCompile(`(?s)<a[^>]*class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`(?s)<a[^>]*class="result__snippet"[^>]*>(.*?)</a>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo scrapes DuckDuckGo's HTML endpoint. No API key needed.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo backend with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo backend using the supplied HTTP client.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{endpoint: duckDuckGoEndpoint, client: client}
}

// Name implements Searcher.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search fetches the results page and extracts result links and snippets.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	searchURL := fmt.Sprintf("%s?q=%s", d.endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Set a user agent to avoid being blocked
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; searchchat/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return truncate(parseDuckDuckGo(string(body)), limit), nil
}

// parseDuckDuckGo splits the page into result blocks and reads the link, title and
// snippet from within each block, so a result without a snippet stays empty.
func parseDuckDuckGo(page string) []Result {
	starts := ddgResultPattern.FindAllStringIndex(page, -1)

	var results []Result
	for i, loc := range starts {
		end := len(page)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		block := page[loc[0]:end]

		m := ddgTitlePattern.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		link := resolveDuckDuckGoLink(m[1])
		title := cleanText(m[2])
		if link == "" || title == "" {
			continue
		}
		r := Result{Title: title, URL: link}
		if sm := ddgSnippetPattern.FindStringSubmatch(block); sm != nil {
			r.Content = cleanText(sm[1])
		}
		results = append(results, r)
	}
	return results
}

// resolveDuckDuckGoLink unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func resolveDuckDuckGoLink(href string) string {
	href = html.UnescapeString(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func cleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
