package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// User is the profile projection returned by the auth origin.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"telephone_number"`
	Tokens    int    `json:"tokens"`
}

// State is the relay's authentication view of the current origin.
type State struct {
	Authenticated bool
	User          User
}

// Snapshot is the minimal session record persisted next to the token.
type Snapshot struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

// Config configures a relay Client.
type Config struct {
	// AuthBase is the auth origin, e.g. "https://auth.example.com".
	AuthBase string

	// HTTPClient overrides the default 10s-timeout client.
	HTTPClient *http.Client

	// Store is the per-origin storage area. Defaults to a private
	// in-memory store (no cross-tab behavior).
	Store Store

	Logger *slog.Logger

	// OnReady fires exactly once per client, after the first sync
	// attempt resolves, with the resulting state.
	OnReady func(State)

	// OnLogout fires on explicit logout and on detected remote token
	// removal.
	OnLogout func()
}

// Client owns the page's authentication state. It replaces ambient
// globals: hosts construct one, call Init once, and read state through
// its accessors.
type Client struct {
	authBase string
	httpc    *http.Client
	store    Store
	log      *slog.Logger

	onReady  func(State)
	onLogout func()

	mu    sync.Mutex
	state State
	token string
	ready bool

	readyOnce sync.Once
	cancelSub func()
	closeOnce sync.Once
}

// NewClient constructs a relay client and starts watching the store for
// cross-tab changes. Callers must Close it.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.AuthBase), "/")
	if base == "" {
		return nil, errors.New("relay: empty auth base URL")
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("relay: invalid auth base URL")
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		authBase: base,
		httpc:    httpc,
		store:    store,
		log:      log,
		onReady:  cfg.OnReady,
		onLogout: cfg.OnLogout,
	}

	ch, cancel := store.Subscribe()
	c.cancelSub = cancel
	go c.watch(ch)

	return c, nil
}

// Init consumes a token hand-off from pageURL if present, runs the
// initial sync against the auth origin, and fires OnReady. It returns
// the scrubbed URL the page should show in its address bar.
func (c *Client) Init(ctx context.Context, pageURL string) (string, error) {
	display := pageURL

	u, err := url.Parse(pageURL)
	if err == nil {
		cb, scrubbed, found := ConsumeCallback(u)
		if found {
			c.adoptToken(cb.Token)
			display = scrubbed.String()
		}
	}

	state, syncErr := c.syncStored(ctx)
	c.fireReady(state)
	return display, syncErr
}

// CheckSession re-validates the stored token against the auth origin.
func (c *Client) CheckSession(ctx context.Context) (State, error) {
	return c.syncStored(ctx)
}

// Login returns the auth origin URL to redirect the user agent to, with
// returnURL attached so the flow can resume after verification.
func (c *Client) Login(returnURL string) string {
	if strings.TrimSpace(returnURL) == "" {
		return c.authBase + "/"
	}
	return c.authBase + "/?redirect=" + url.QueryEscape(returnURL)
}

// Logout revokes the session at the auth origin (best-effort), clears
// local state, and notifies listeners. Network failure never prevents
// the local logout.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.state = State{}
	c.mu.Unlock()

	if token != "" {
		if err := c.postLogout(ctx, token); err != nil {
			c.log.Warn("relay.logout.revoke.fail", "err", err)
		}
	}

	c.store.Del(TokenKey)
	c.store.Del(SnapshotKey)

	if c.onLogout != nil {
		c.onLogout()
	}
}

// CurrentUser returns the authenticated user, if any.
func (c *Client) CurrentUser() (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.User, c.state.Authenticated
}

// IsAuthenticated reports whether the last sync confirmed the session.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Authenticated
}

// AuthToken returns the plaintext bearer token held by this client.
func (c *Client) AuthToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Ready reports whether the initial sync attempt has resolved.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Close stops the cross-tab watcher.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancelSub != nil {
			c.cancelSub()
		}
	})
}

// ---- internals ----

// adoptToken records the token locally before persisting it, so the
// watcher recognizes the write as our own and skips the redundant sync.
func (c *Client) adoptToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.store.Set(TokenKey, token)
}

func (c *Client) fireReady(state State) {
	c.readyOnce.Do(func() {
		c.mu.Lock()
		c.ready = true
		c.mu.Unlock()
		if c.onReady != nil {
			c.onReady(state)
		}
	})
}

// syncStored re-validates the stored token. An invalid verdict clears
// local storage; a transport failure keeps the token for a later retry
// but reports unauthenticated state.
func (c *Client) syncStored(ctx context.Context) (State, error) {
	token, ok := c.store.Get(TokenKey)
	if !ok || strings.TrimSpace(token) == "" {
		c.mu.Lock()
		c.token = ""
		c.state = State{}
		state := c.state
		c.mu.Unlock()
		return state, nil
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	resp, err := c.postSync(ctx, token)
	if err != nil {
		c.mu.Lock()
		c.state = State{}
		state := c.state
		c.mu.Unlock()
		c.log.Warn("relay.sync.fail", "err", err)
		return state, err
	}

	if !resp.Valid || resp.User == nil {
		c.clearLocal()
		return State{}, nil
	}

	state := State{Authenticated: true, User: *resp.User}
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	if resp.Session != nil {
		c.writeSnapshot(Snapshot{
			Token:     resp.Session.Token,
			ExpiresAt: resp.Session.ExpiresAt,
			Timestamp: time.Now().UTC(),
		})
	}
	return state, nil
}

func (c *Client) clearLocal() {
	c.mu.Lock()
	c.token = ""
	c.state = State{}
	c.mu.Unlock()
	c.store.Del(TokenKey)
	c.store.Del(SnapshotKey)
}

func (c *Client) writeSnapshot(s Snapshot) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	c.store.Set(SnapshotKey, string(b))
}

func (c *Client) watch(ch <-chan Change) {
	for change := range ch {
		if change.Key != TokenKey {
			continue
		}
		if change.Deleted {
			c.handleRemoteLogout()
			continue
		}
		c.handleRemoteToken(change.Value)
	}
}

// handleRemoteToken reacts to a token written by another tab.
func (c *Client) handleRemoteToken(value string) {
	c.mu.Lock()
	same := value == c.token
	c.mu.Unlock()
	if same {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.syncStored(ctx); err != nil {
		c.log.Warn("relay.cross_tab.sync.fail", "err", err)
	}
}

// handleRemoteLogout reacts to a token removed by another tab. No
// network call: the removal itself is authoritative.
func (c *Client) handleRemoteLogout() {
	c.mu.Lock()
	hadSession := c.token != "" || c.state.Authenticated
	c.token = ""
	c.state = State{}
	c.mu.Unlock()

	if hadSession && c.onLogout != nil {
		c.onLogout()
	}
}

// ---- auth origin wire calls ----

type syncWireResponse struct {
	Valid   bool `json:"valid"`
	Session *struct {
		Token     string    `json:"token"`
		ID        string    `json:"id"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"session"`
	User *User `json:"user"`
}

func (c *Client) postSync(ctx context.Context, token string) (syncWireResponse, error) {
	var out syncWireResponse
	err := c.postJSON(ctx, "/api/auth/sync-session", token, &out)
	return out, err
}

func (c *Client) postLogout(ctx context.Context, token string) error {
	return c.postJSON(ctx, "/api/auth/logout", token, &struct {
		Success bool `json:"success"`
	}{})
}

func (c *Client) postJSON(ctx context.Context, path, token string, out any) error {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New("relay: auth origin returned status " + resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
