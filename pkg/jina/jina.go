// Package jina reads pages and runs web searches through the Jina reader
// (r.jina.ai) and search (s.jina.ai) endpoints.
package jina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/jingkaihe/skillbox/pkg/logger"
)

const (
	DefaultReaderURL = "https://r.jina.ai/"
	DefaultSearchURL = "https://s.jina.ai/"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina returned %d: %s", e.StatusCode, e.Body)
}

// Client calls the Jina endpoints. The API key is optional; without it
// requests are rate limited.
type Client struct {
	readerURL  string
	searchURL  string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs points the client at other reader and search hosts.
func WithBaseURLs(reader, search string) Option {
	return func(c *Client) {
		c.readerURL = ensureSlash(reader)
		c.searchURL = ensureSlash(search)
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func ensureSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// New creates a client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		readerURL:  DefaultReaderURL,
		searchURL:  DefaultSearchURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadOptions maps to the reader's X- headers.
type ReadOptions struct {
	// Format is one of markdown, html, text or screenshot.
	Format   string
	Selector string
	WaitFor  string
	NoCache  bool
	Links    bool
	Images   bool
	Timeout  time.Duration
}

func (o ReadOptions) headers() map[string]string {
	h := map[string]string{}
	if o.Format != "" {
		h["X-Return-Format"] = o.Format
	}
	if o.Selector != "" {
		h["X-Target-Selector"] = o.Selector
	}
	if o.WaitFor != "" {
		h["X-Wait-For-Selector"] = o.WaitFor
	}
	if o.NoCache {
		h["X-No-Cache"] = "true"
	}
	if o.Links {
		h["X-With-Links-Summary"] = "true"
	}
	if o.Images {
		h["X-With-Images-Summary"] = "true"
	}
	if o.Timeout > 0 {
		h["X-Timeout"] = strconv.Itoa(int(o.Timeout.Seconds()))
	}
	return h
}

// Page is a page returned by the reader.
type Page struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Content     string            `json:"content"`
	Links       map[string]string `json:"links,omitempty"`
	Images      map[string]string `json:"images,omitempty"`
}

// Read fetches target through the reader.
func (c *Client) Read(ctx context.Context, target string, opts ReadOptions) (*Page, error) {
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, errors.Wrapf(err, "invalid url %q", target)
	}

	body, err := c.get(ctx, c.readerURL+target, opts.headers())
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, errors.New("jina reader response carried no data")
	}
	return &Page{
		Title:       data.Get("title").String(),
		URL:         data.Get("url").String(),
		Description: data.Get("description").String(),
		Content:     data.Get("content").String(),
		Links:       stringMap(data.Get("links")),
		Images:      stringMap(data.Get("images")),
	}, nil
}

func stringMap(r gjson.Result) map[string]string {
	if !r.IsObject() {
		return nil
	}
	m := map[string]string{}
	r.ForEach(func(k, v gjson.Result) bool {
		m[k.String()] = v.String()
		return true
	})
	return m
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Site  string
	Limit int
}

// SearchResult is one search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Search runs a web search and returns at most opts.Limit results.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is empty")
	}

	q := url.Values{"q": {query}}
	headers := map[string]string{}
	if opts.Site != "" {
		headers["X-Site"] = opts.Site
	}

	body, err := c.get(ctx, c.searchURL+"?"+q.Encode(), headers)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
		results = append(results, SearchResult{
			Title:       item.Get("title").String(),
			URL:         item.Get("url").String(),
			Description: item.Get("description").String(),
			Content:     item.Get("content").String(),
		})
		return opts.Limit <= 0 || len(results) < opts.Limit
	})
	return results, nil
}

func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build jina request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.G(ctx).WithField("url", rawURL).WithField("authenticated", c.apiKey != "").Debug("calling jina")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "jina request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read jina response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Markdown renders the page the way the reader does in its text mode.
func (p *Page) Markdown() string {
	var sb strings.Builder
	if p.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n\n", p.Title)
	}
	if p.URL != "" {
		fmt.Fprintf(&sb, "URL Source: %s\n\n", p.URL)
	}
	sb.WriteString("Markdown Content:\n")
	sb.WriteString(strings.TrimSpace(p.Content))
	sb.WriteString("\n")

	writeSummary(&sb, "Links", p.Links)
	writeSummary(&sb, "Images", p.Images)
	return sb.String()
}

func writeSummary(sb *strings.Builder, heading string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(sb, "\n%s:\n", heading)
	for _, k := range keys {
		fmt.Fprintf(sb, "- [%s](%s)\n", k, m[k])
	}
}

// ResultsMarkdown renders search results as a numbered markdown list.
func ResultsMarkdown(results []SearchResult) string {
	if len(results) == 0 {
		return "No results.\n"
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Description)
		}
	}
	return sb.String()
}
