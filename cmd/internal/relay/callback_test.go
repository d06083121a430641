package relay

import (
	"net/url"
	"testing"
)

func TestConsumeCallback_ExtractsAndScrubs(t *testing.T) {
	u, err := url.Parse("https://app.example.com/docs?auth_token=tok123&expires=2026-08-03T12%3A00%3A00Z&next=%2Fdocs%2Fstart&tab=2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cb, scrubbed, ok := ConsumeCallback(u)
	if !ok {
		t.Fatalf("expected a callback")
	}
	if cb.Token != "tok123" {
		t.Fatalf("token mismatch: %q", cb.Token)
	}
	if cb.Expires != "2026-08-03T12:00:00Z" {
		t.Fatalf("expires mismatch: %q", cb.Expires)
	}
	if cb.Next != "/docs/start" {
		t.Fatalf("next mismatch: %q", cb.Next)
	}

	q := scrubbed.Query()
	if q.Get("auth_token") != "" || q.Get("expires") != "" || q.Get("next") != "" {
		t.Fatalf("hand-off params survived scrubbing: %q", scrubbed.String())
	}
	if q.Get("tab") != "2" {
		t.Fatalf("unrelated params must survive: %q", scrubbed.String())
	}
	if scrubbed.Path != "/docs" {
		t.Fatalf("path changed: %q", scrubbed.Path)
	}
}

func TestConsumeCallback_NoToken(t *testing.T) {
	u, _ := url.Parse("https://app.example.com/docs?tab=2")
	_, scrubbed, ok := ConsumeCallback(u)
	if ok {
		t.Fatalf("expected no callback")
	}
	if scrubbed != u {
		t.Fatalf("URL must be returned unchanged")
	}
}
