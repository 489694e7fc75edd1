package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/armatrix/kaya"
)

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"content"`
}

// SearchFunc is a pluggable search backend.
type SearchFunc func(ctx context.Context, query string) ([]SearchResult, error)

// WebSearchInput defines the input for the WebSearch tool.
type WebSearchInput struct {
	Query          string   `json:"query" jsonschema:"required,description=The search query"`
	AllowedDomains []string `json:"allowed_domains,omitempty" jsonschema:"description=Only include results from these domains"`
	BlockedDomains []string `json:"blocked_domains,omitempty" jsonschema:"description=Exclude results from these domains"`
}

// WebSearchTool performs web searches through Search.
type WebSearchTool struct {
	Search SearchFunc
}

var _ kaya.Tool[WebSearchInput] = (*WebSearchTool)(nil)

func (t *WebSearchTool) Name() string        { return "WebSearch" }
func (t *WebSearchTool) Description() string { return "Search the web and return titles, URLs and snippets" }

func (t *WebSearchTool) Execute(ctx context.Context, input WebSearchInput) (*kaya.ToolResult, error) {
	if input.Query == "" {
		return kaya.ErrorResult("query is required"), nil
	}
	if t.Search == nil {
		return kaya.ErrorResult("search backend not configured"), nil
	}

	results, err := t.Search(ctx, input.Query)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("search failed: %s", err)), nil
	}

	filtered := filterResults(results, input.AllowedDomains, input.BlockedDomains)
	if len(filtered) == 0 {
		return kaya.TextResult("No results found."), nil
	}

	var b strings.Builder
	for i, r := range filtered {
		fmt.Fprintf(&b, "%d. [%s](%s)\n   %s\n\n", i+1, r.Title, r.URL, strings.TrimSpace(r.Snippet))
	}
	return kaya.TextResult(b.String()), nil
}

func filterResults(results []SearchResult, allowed, blocked []string) []SearchResult {
	if len(allowed) == 0 && len(blocked) == 0 {
		return results
	}
	var out []SearchResult
	for _, r := range results {
		host := extractDomain(r.URL)
		if len(allowed) > 0 && !matchesDomain(host, allowed) {
			continue
		}
		if matchesDomain(host, blocked) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// matchesDomain reports whether host is one of domains or a subdomain of one.
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func extractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SearXNG returns a SearchFunc backed by a SearXNG instance's JSON API.
// The instance must have the json output format enabled.
func SearXNG(baseURL string, client *http.Client) SearchFunc {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/search"

	return func(ctx context.Context, query string) ([]SearchResult, error) {
		q := url.Values{"q": {query}, "format": {"json"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("searxng: HTTP %s", resp.Status)
		}

		var body struct {
			Results []SearchResult `json:"results"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("searxng: decode response: %w", err)
		}
		return body.Results, nil
	}
}
