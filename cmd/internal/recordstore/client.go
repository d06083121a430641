package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// StatusError reports a non-2xx answer from the record store.
// The upstream response body is intentionally not carried: backend error
// bodies must never reach API clients.
type StatusError struct {
	Op     string
	Status int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: record store returned status %d", e.Op, e.Status)
}

// Ref identifies a row for link operations.
type Ref struct {
	ID json.Number `json:"Id"`
}

// Client talks to the tabular record store.
type Client struct {
	base  string
	token string
	httpc *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (10s timeout).
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// New constructs a Client for the record store at baseURL, authenticating
// every request with apiToken.
func New(baseURL, apiToken string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("recordstore: empty base URL")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("recordstore: invalid base URL: %w", err)
	}

	c := &Client{
		base:  baseURL,
		token: strings.TrimSpace(apiToken),
		httpc: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Eq renders an equality row filter: Eq("email", "a@b.de") -> "(email,eq,a@b.de)".
func Eq(field, value string) string {
	return fmt.Sprintf("(%s,eq,%s)", field, value)
}

// List fetches rows of table matching query and decodes the row array into out
// (a pointer to a slice). Query keys pass through verbatim ("where", "limit", ...).
func (c *Client) List(ctx context.Context, table string, query url.Values, out any) error {
	const op = "recordstore.List"

	u := fmt.Sprintf("%s/tables/%s/records", c.base, url.PathEscape(table))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var envelope struct {
		List json.RawMessage `json:"list"`
	}
	if err := c.do(ctx, op, http.MethodGet, u, nil, &envelope); err != nil {
		return err
	}
	if len(envelope.List) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.List, out)
}

// Create inserts a row into table. When out is non-nil the created row
// (including its assigned Id) is decoded into it.
func (c *Client) Create(ctx context.Context, table string, body, out any) error {
	u := fmt.Sprintf("%s/tables/%s/records", c.base, url.PathEscape(table))
	return c.do(ctx, "recordstore.Create", http.MethodPost, u, body, out)
}

// Update patches a row in table; body must carry the row Id.
func (c *Client) Update(ctx context.Context, table string, body any) error {
	u := fmt.Sprintf("%s/tables/%s/records", c.base, url.PathEscape(table))
	return c.do(ctx, "recordstore.Update", http.MethodPatch, u, body, nil)
}

// Link attaches target rows to recordID via the table's link field.
func (c *Client) Link(ctx context.Context, table, linkField, recordID string, targets []Ref) error {
	u := fmt.Sprintf("%s/tables/%s/links/%s/records/%s",
		c.base, url.PathEscape(table), url.PathEscape(linkField), url.PathEscape(recordID))
	return c.do(ctx, "recordstore.Link", http.MethodPost, u, targets, nil)
}

func (c *Client) do(ctx context.Context, op, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("xc-token", c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return StatusError{Op: op, Status: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
