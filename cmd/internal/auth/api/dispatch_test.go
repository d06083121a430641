package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"codegate/cmd/identity"
)

func TestWebhookDispatcher_Email(t *testing.T) {
	var got struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, "")
	err := d.SendCode(context.Background(), identity.Contact{
		Kind: identity.KindEmail, Value: "user@example.com",
	}, "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("expected one webhook call, got %d", calls.Load())
	}
	if got.Email != "user@example.com" || got.Code != "123456" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookDispatcher_SMSChannelMissing(t *testing.T) {
	d := NewWebhookDispatcher("http://email.invalid", "")
	err := d.SendCode(context.Background(), identity.Contact{
		Kind: identity.KindPhone, Value: "+491712345678",
	}, "123456")
	if !errors.Is(err, ErrDispatchUnconfigured) {
		t.Fatalf("expected ErrDispatchUnconfigured, got %v", err)
	}
}

func TestWebhookDispatcher_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "secret upstream details", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, "")
	err := d.SendCode(context.Background(), identity.Contact{
		Kind: identity.KindEmail, Value: "user@example.com",
	}, "123456")
	if err == nil {
		t.Fatalf("expected error for 502 webhook response")
	}
	// The upstream body must never leak into the error.
	if strings.Contains(err.Error(), "secret upstream details") {
		t.Fatalf("error leaked upstream body: %v", err)
	}
}
