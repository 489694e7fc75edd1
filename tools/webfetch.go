package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/armatrix/kaya"
)

const (
	maxFetchBytes = 512_000
	fetchTimeout  = 30 * time.Second
	userAgent     = "kaya/1.0 (+https://github.com/armatrix/kaya)"
)

// WebFetchInput defines the input for the WebFetch tool.
type WebFetchInput struct {
	URL    string `json:"url" jsonschema:"required,description=The URL to fetch content from"`
	Prompt string `json:"prompt" jsonschema:"required,description=What information to extract from the page"`
}

// FetchFunc retrieves the raw body at url.
type FetchFunc func(ctx context.Context, url string) (string, error)

// WebFetchTool fetches a page and returns it as markdown.
type WebFetchTool struct {
	Fetcher FetchFunc    // nil uses an HTTP GET through Client
	Client  *http.Client // nil uses http.DefaultClient
}

var _ kaya.Tool[WebFetchInput] = (*WebFetchTool)(nil)

func (t *WebFetchTool) Name() string { return "WebFetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its content as markdown. HTTP URLs are upgraded to HTTPS."
}

func (t *WebFetchTool) Execute(ctx context.Context, input WebFetchInput) (*kaya.ToolResult, error) {
	if input.URL == "" {
		return kaya.ErrorResult("url is required"), nil
	}
	url := input.URL
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		url = "https://" + rest
	}

	fetch := t.Fetcher
	if fetch == nil {
		fetch = t.httpFetch
	}
	body, err := fetch(ctx, url)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("fetch failed: %s", err)), nil
	}

	title, content := "", body
	if strings.HasPrefix(http.DetectContentType([]byte(body)), "text/html") {
		title, content, err = htmlToMarkdown(body, url)
		if err != nil {
			return kaya.ErrorResult(fmt.Sprintf("convert page: %s", err)), nil
		}
	}
	if len(content) > maxFetchBytes {
		content = content[:maxFetchBytes] + "\n... [content truncated]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", input.URL)
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	fmt.Fprintf(&b, "Prompt: %s\n\nContent:\n%s", input.Prompt, content)
	return kaya.TextResult(b.String()), nil
}

// htmlToMarkdown strips non-content elements and converts the rest.
func htmlToMarkdown(page, url string) (title, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, iframe, nav, footer, head").Remove()

	domain := ""
	if req, err := http.NewRequest(http.MethodGet, url, nil); err == nil {
		domain = req.URL.Host
	}
	converter := md.NewConverter(domain, true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
	})
	markdown = converter.Convert(doc.Selection)
	return title, strings.TrimSpace(markdown), nil
}

func (t *WebFetchTool) httpFetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*maxFetchBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
