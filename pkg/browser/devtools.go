// Package browser launches a local Chromium with remote debugging enabled and
// drives its tabs over the Chrome DevTools Protocol.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// DefaultPort is the remote debugging port used when none is given.
const DefaultPort = 9222

// VersionInfo is the payload of /json/version.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Target is one entry of /json/list.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
}

// Client talks to the DevTools HTTP endpoints of a running browser.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the browser listening on localhost:port.
func NewClient(port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewClientWithURL returns a client for an arbitrary DevTools base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Version queries /json/version. It fails when no browser is listening.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.do(ctx, http.MethodGet, "/json/version", &info); err != nil {
		return nil, err
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, errors.New("browser did not report a websocket debugger url")
	}
	return &info, nil
}

// Tabs lists page targets, most recently focused first.
func (c *Client) Tabs(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := c.do(ctx, http.MethodGet, "/json/list", &targets); err != nil {
		return nil, err
	}

	pages := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// NewTab opens a new page target at rawURL.
func (c *Client) NewTab(ctx context.Context, rawURL string) (*Target, error) {
	if rawURL == "" {
		rawURL = "about:blank"
	}
	var t Target
	if err := c.do(ctx, http.MethodPut, "/json/new?"+url.QueryEscape(rawURL), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build devtools request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "no browser reachable at %s", c.baseURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read devtools response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("devtools %s %s returned %d: %s", method, path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}
