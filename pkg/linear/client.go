// Package linear is a small GraphQL client for the Linear API.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/jingkaihe/skillbox/pkg/logger"
)

// DefaultEndpoint is the Linear GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linear API returned %d: %s", e.StatusCode, e.Body)
}

// GraphQLError is the first entry of a response's errors array.
type GraphQLError struct {
	Message string
	Code    string
}

func (e *GraphQLError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("linear: %s (%s)", e.Message, e.Code)
	}
	return "linear: " + e.Message
}

// Client sends GraphQL operations to Linear.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func newClient(opts []Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithAPIKey authenticates with a personal API key, sent verbatim in the
// Authorization header.
func NewWithAPIKey(apiKey string, opts ...Option) *Client {
	c := newClient(opts)
	c.apiKey = apiKey
	return c
}

// NewWithOAuthToken authenticates with an OAuth access token sent as a bearer
// token.
func NewWithOAuthToken(ctx context.Context, token string, opts ...Option) *Client {
	c := newClient(opts)
	base := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	c.httpClient = oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	return c
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Do runs a query or mutation and decodes its data field into out.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return errors.Wrap(err, "failed to encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build graphql request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	logger.G(ctx).WithField("endpoint", c.endpoint).Debug("sending linear request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "linear request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read linear response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if first := gjson.GetBytes(body, "errors.0"); first.Exists() {
		return &GraphQLError{
			Message: first.Get("message").String(),
			Code:    first.Get("extensions.code").String(),
		}
	}

	if out == nil {
		return nil
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return errors.New("linear response carried no data")
	}
	return errors.Wrap(json.Unmarshal([]byte(data.Raw), out), "failed to decode linear response")
}
