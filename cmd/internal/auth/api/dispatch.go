package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"codegate/cmd/identity"
)

// ErrDispatchUnconfigured indicates no delivery channel exists for the
// contact kind. Callers must not let this distinguish the response.
var ErrDispatchUnconfigured = errors.New("dispatch channel not configured")

// Dispatcher delivers a one-time code to a normalized contact over an
// out-of-band channel.
type Dispatcher interface {
	SendCode(ctx context.Context, c identity.Contact, code string) error
}

// NoopDispatcher is the default dispatcher; it delivers nothing.
type NoopDispatcher struct{}

// SendCode is a no-op.
func (NoopDispatcher) SendCode(_ context.Context, _ identity.Contact, _ string) error { return nil }

// WebhookDispatcher POSTs codes to per-channel webhook endpoints.
type WebhookDispatcher struct {
	emailURL string
	smsURL   string
	httpc    *http.Client
}

// WebhookOption configures a WebhookDispatcher.
type WebhookOption func(*WebhookDispatcher)

// WithDispatchHTTPClient overrides the default 10s-timeout HTTP client.
func WithDispatchHTTPClient(c *http.Client) WebhookOption {
	return func(d *WebhookDispatcher) {
		if d == nil || c == nil {
			return
		}
		d.httpc = c
	}
}

// NewWebhookDispatcher creates a dispatcher for the given webhook URLs.
// Either URL may be empty; sending over the missing channel then fails
// with ErrDispatchUnconfigured.
func NewWebhookDispatcher(emailURL, smsURL string, opts ...WebhookOption) *WebhookDispatcher {
	d := &WebhookDispatcher{
		emailURL: emailURL,
		smsURL:   smsURL,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	return d
}

// SendCode implements Dispatcher.
func (d *WebhookDispatcher) SendCode(ctx context.Context, c identity.Contact, code string) error {
	var target string
	payload := map[string]string{"code": code}

	switch c.Kind {
	case identity.KindEmail:
		target = d.emailURL
		payload["email"] = c.Value
	case identity.KindPhone:
		target = d.smsURL
		payload["phone"] = c.Value
	default:
		return fmt.Errorf("dispatch: unknown contact kind %q", c.Kind)
	}
	if target == "" {
		return ErrDispatchUnconfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Upstream bodies stay out of errors so they can never leak.
		return fmt.Errorf("dispatch: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
