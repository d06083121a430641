package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAuthOrigin serves sync-session and logout the way the auth origin
// does, treating validTokens as the live session set.
type fakeAuthOrigin struct {
	srv *httptest.Server

	validToken atomic.Value // string
	syncCalls  atomic.Int64
}

func newFakeAuthOrigin(t *testing.T) *fakeAuthOrigin {
	t.Helper()

	f := &fakeAuthOrigin{}
	f.validToken.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/sync-session", func(w http.ResponseWriter, r *http.Request) {
		f.syncCalls.Add(1)

		var req struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if req.Token == "" || req.Token != f.validToken.Load().(string) {
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid": true,
			"session": map[string]any{
				"token":      req.Token,
				"id":         "sess-1",
				"expires_at": time.Now().UTC().Add(48 * time.Hour),
			},
			"user": map[string]any{
				"id":         "u-1",
				"email":      "user@example.com",
				"first_name": "Ada",
				"last_name":  "Lovelace",
			},
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.validToken.Store("")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

func TestInit_ConsumesHandoffAndAuthenticates(t *testing.T) {
	origin := newFakeAuthOrigin(t)
	origin.validToken.Store("tok123")

	store := NewMemoryStore()
	readyStates := make(chan State, 1)

	c, err := NewClient(Config{
		AuthBase: origin.srv.URL,
		Store:    store,
		OnReady:  func(s State) { readyStates <- s },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	display, err := c.Init(context.Background(), "https://app.example.com/docs?auth_token=tok123&expires=x&next=%2Fdocs")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if strings.Contains(display, "tok123") {
		t.Fatalf("token leaked into display URL: %q", display)
	}

	select {
	case s := <-readyStates:
		if !s.Authenticated || s.User.ID != "u-1" {
			t.Fatalf("expected authenticated ready state, got %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnReady never fired")
	}

	if !c.Ready() || !c.IsAuthenticated() {
		t.Fatalf("client should be ready and authenticated")
	}
	if c.AuthToken() != "tok123" {
		t.Fatalf("token not adopted")
	}
	if v, ok := store.Get(TokenKey); !ok || v != "tok123" {
		t.Fatalf("token not persisted")
	}
	if _, ok := store.Get(SnapshotKey); !ok {
		t.Fatalf("session snapshot not persisted")
	}
}

func TestInit_NoTokenIsUnauthenticatedReady(t *testing.T) {
	origin := newFakeAuthOrigin(t)

	fired := atomic.Int64{}
	c, err := NewClient(Config{
		AuthBase: origin.srv.URL,
		OnReady: func(s State) {
			fired.Add(1)
			if s.Authenticated {
				t.Errorf("expected unauthenticated state")
			}
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if _, err := c.Init(context.Background(), "https://app.example.com/"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if fired.Load() != 1 {
		t.Fatalf("OnReady should fire exactly once, fired %d times", fired.Load())
	}
	if origin.syncCalls.Load() != 0 {
		t.Fatalf("no sync expected without a stored token")
	}

	// A second Init must not fire OnReady again.
	_, _ = c.Init(context.Background(), "https://app.example.com/")
	if fired.Load() != 1 {
		t.Fatalf("OnReady fired more than once")
	}
}

func TestInit_InvalidTokenClearsStorage(t *testing.T) {
	origin := newFakeAuthOrigin(t)

	store := NewMemoryStore()
	store.Set(TokenKey, "stale-token")

	c, err := NewClient(Config{AuthBase: origin.srv.URL, Store: store})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if _, err := c.Init(context.Background(), "https://app.example.com/"); err != nil {
		t.Fatalf("init: %v", err)
	}

	if c.IsAuthenticated() {
		t.Fatalf("stale token must not authenticate")
	}
	if _, ok := store.Get(TokenKey); ok {
		t.Fatalf("invalid token must be cleared from storage")
	}
}

func TestCrossTab_TokenWriteTriggersSync(t *testing.T) {
	origin := newFakeAuthOrigin(t)
	origin.validToken.Store("tok-b")

	store := NewMemoryStore()
	c, err := NewClient(Config{AuthBase: origin.srv.URL, Store: store})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if _, err := c.Init(context.Background(), "https://app.example.com/"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatalf("should start unauthenticated")
	}

	// Another tab logs in and writes the token.
	store.Set(TokenKey, "tok-b")

	waitFor(t, c.IsAuthenticated, "cross-tab login to propagate")
	if c.AuthToken() != "tok-b" {
		t.Fatalf("expected adopted token, got %q", c.AuthToken())
	}
}

func TestCrossTab_TokenRemovalLogsOutWithoutNetwork(t *testing.T) {
	origin := newFakeAuthOrigin(t)
	origin.validToken.Store("tok123")

	store := NewMemoryStore()
	store.Set(TokenKey, "tok123")
	loggedOut := make(chan struct{}, 1)

	c, err := NewClient(Config{
		AuthBase: origin.srv.URL,
		Store:    store,
		OnLogout: func() { loggedOut <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if _, err := c.Init(context.Background(), "https://app.example.com/"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !c.IsAuthenticated() {
		t.Fatalf("expected authenticated client")
	}

	before := origin.syncCalls.Load()

	// Another tab logs out and removes the token.
	store.Del(TokenKey)

	select {
	case <-loggedOut:
	case <-time.After(2 * time.Second):
		t.Fatalf("OnLogout never fired")
	}
	if c.IsAuthenticated() {
		t.Fatalf("client still authenticated after remote removal")
	}
	if origin.syncCalls.Load() != before {
		t.Fatalf("remote removal must not trigger a network call")
	}
}

func TestLogout_RevokesAndClears(t *testing.T) {
	origin := newFakeAuthOrigin(t)
	origin.validToken.Store("tok123")

	store := NewMemoryStore()
	store.Set(TokenKey, "tok123")
	loggedOut := make(chan struct{}, 1)

	c, err := NewClient(Config{
		AuthBase: origin.srv.URL,
		Store:    store,
		OnLogout: func() { loggedOut <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if _, err := c.Init(context.Background(), "https://app.example.com/"); err != nil {
		t.Fatalf("init: %v", err)
	}

	c.Logout(context.Background())

	select {
	case <-loggedOut:
	case <-time.After(2 * time.Second):
		t.Fatalf("OnLogout never fired")
	}
	if c.IsAuthenticated() || c.AuthToken() != "" {
		t.Fatalf("local state must be cleared")
	}
	if _, ok := store.Get(TokenKey); ok {
		t.Fatalf("token must be removed from storage")
	}
	if origin.validToken.Load().(string) != "" {
		t.Fatalf("revoke call never reached the auth origin")
	}
}

func TestLogin_BuildsRedirect(t *testing.T) {
	origin := newFakeAuthOrigin(t)
	c, err := NewClient(Config{AuthBase: origin.srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	got := c.Login("https://app.example.com/docs?tab=2")
	want := origin.srv.URL + "/?redirect=https%3A%2F%2Fapp.example.com%2Fdocs%3Ftab%3D2"
	if got != want {
		t.Fatalf("login URL mismatch:\n got %q\nwant %q", got, want)
	}
}
