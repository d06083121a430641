package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"codegate/cmd/identity"
	"codegate/cmd/internal/auth/session"
)

type dispatchCall struct {
	Contact identity.Contact
	Code    string
}

type captureDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *captureDispatcher) SendCode(_ context.Context, c identity.Contact, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{Contact: c, Code: code})
	return d.err
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *captureDispatcher) last() dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

type testEnv struct {
	mux      *http.ServeMux
	users    *identity.MemoryStore
	store    *session.MemoryStore
	dispatch *captureDispatcher
	user     identity.User
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	users := identity.NewMemoryStore()
	u := users.Add(identity.User{
		Email:     "user@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+491712345678",
	})

	store := session.NewMemoryStore()
	svc := session.NewService(session.DefaultConfig(), users, store)

	dispatch := &captureDispatcher{}
	h, err := NewHandler(nil, cfg, users, svc, WithDispatcher(dispatch))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{mux: mux, users: users, store: store, dispatch: dispatch, user: u}
}

func defaultTestConfig() Config {
	return Config{
		MaxBodyBytes:       1 << 20,
		DefaultCountryCode: "+49",
		RequestCodeMax:     100,
		RequestCodeWindow:  time.Minute,
		VerifyMax:          100,
		VerifyWindow:       time.Minute,
	}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (e *testEnv) pendingCode(t *testing.T) string {
	t.Helper()
	acct, err := e.users.FindByContact(context.Background(), identity.Contact{
		Kind: identity.KindEmail, Value: "user@example.com",
	})
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	return acct.Code
}

func TestRequestCode_UnknownContactIsIndistinguishable(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	rec := e.post(t, "/api/auth/request-code", map[string]string{"contact": "ghost@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp requestCodeResponse
	decodeBody(t, rec, &resp)
	if !resp.Success {
		t.Fatalf("expected uniform success for unknown contact")
	}
	if e.dispatch.count() != 0 {
		t.Fatalf("expected no dispatch for unknown contact, got %d", e.dispatch.count())
	}
}

func TestRequestCode_KnownContactDispatchesSixDigitCode(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	rec := e.post(t, "/api/auth/request-code", map[string]string{"contact": "user@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if e.dispatch.count() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", e.dispatch.count())
	}
	call := e.dispatch.last()
	if !regexp.MustCompile(`^[0-9]{6}$`).MatchString(call.Code) {
		t.Fatalf("dispatched code %q is not six digits", call.Code)
	}
	if stored := e.pendingCode(t); stored != call.Code {
		t.Fatalf("stored code %q does not match dispatched %q", stored, call.Code)
	}
}

func TestRequestCode_DispatchFailureStaysUniform(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())
	e.dispatch.err = context.DeadlineExceeded

	rec := e.post(t, "/api/auth/request-code", map[string]string{"contact": "user@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp requestCodeResponse
	decodeBody(t, rec, &resp)
	if !resp.Success {
		t.Fatalf("dispatch failure must not be observable")
	}
}

func TestRequestCode_MalformedContact(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	rec := e.post(t, "/api/auth/request-code", map[string]string{"contact": "???"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed contact, got %d", rec.Code)
	}
	var resp failResponse
	decodeBody(t, rec, &resp)
	if resp.Success {
		t.Fatalf("expected success=false")
	}
}

func TestVerify_WrongCode(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())
	e.post(t, "/api/auth/request-code", map[string]string{"contact": "user@example.com"})

	rec := e.post(t, "/api/auth/verify", map[string]string{
		"contact": "user@example.com",
		"code":    "000000",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong code, got %d", rec.Code)
	}
}

func TestVerify_UnknownAccount(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	rec := e.post(t, "/api/auth/verify", map[string]string{
		"contact": "ghost@example.com",
		"code":    "123456",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", rec.Code)
	}
}

func TestVerifyRateLimit_RejectsSixthAttempt(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.VerifyMax = 5
	cfg.VerifyWindow = 15 * time.Minute
	e := newTestEnv(t, cfg)

	e.post(t, "/api/auth/request-code", map[string]string{"contact": "user@example.com"})
	code := e.pendingCode(t)

	body := map[string]string{"contact": "user@example.com", "code": "000000"}
	for i := 0; i < 5; i++ {
		rec := e.post(t, "/api/auth/verify", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	// Sixth attempt in-window is rejected before code comparison, even
	// with the correct code.
	rec := e.post(t, "/api/auth/verify", map[string]string{
		"contact": "user@example.com",
		"code":    code,
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	var resp rateLimitedResponse
	decodeBody(t, rec, &resp)
	if resp.RetryAfterS <= 0 {
		t.Fatalf("expected machine-readable retry hint, got %+v", resp)
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	rec := e.post(t, "/api/auth/logout", map[string]string{"token": "never-issued"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp logoutResponse
	decodeBody(t, rec, &resp)
	if !resp.Success {
		t.Fatalf("logout must report success for unknown tokens")
	}

	rec = e.post(t, "/api/auth/logout", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for tokenless logout, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" || resp.Service != ServiceName {
		t.Fatalf("unexpected health payload: %+v", resp)
	}
}

func TestEndToEnd_CodeToSessionToLogout(t *testing.T) {
	e := newTestEnv(t, defaultTestConfig())

	// Request a code and redeem it.
	rec := e.post(t, "/api/auth/request-code", map[string]string{"contact": "user@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("request-code: %d", rec.Code)
	}
	code := e.pendingCode(t)

	rec = e.post(t, "/api/auth/verify", map[string]string{
		"contact": "user@example.com",
		"code":    code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}
	var verified verifyResponse
	decodeBody(t, rec, &verified)
	if !verified.Success || verified.Session.Token == "" {
		t.Fatalf("expected session from verify, got %+v", verified)
	}
	if verified.User.Email != "user@example.com" {
		t.Fatalf("unexpected user projection: %+v", verified.User)
	}

	// A foreign origin confirms the token via sync-session.
	rec = e.post(t, "/api/auth/sync-session", map[string]string{"token": verified.Session.Token})
	var synced syncSessionResponse
	decodeBody(t, rec, &synced)
	if !synced.Valid || synced.User == nil || synced.User.ID != verified.User.ID {
		t.Fatalf("sync-session should confirm the same user, got %+v", synced)
	}
	if synced.Session == nil || synced.Session.Token != verified.Session.Token {
		t.Fatalf("sync-session must echo the token")
	}

	// The session endpoint accepts the bearer header form.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+verified.Session.Token)
	hrec := httptest.NewRecorder()
	e.mux.ServeHTTP(hrec, req)
	var checked sessionCheckResponse
	decodeBody(t, hrec, &checked)
	if !checked.Valid || checked.User == nil {
		t.Fatalf("session check failed: %+v", checked)
	}

	// Logout, then the token is dead.
	rec = e.post(t, "/api/auth/logout", map[string]string{"token": verified.Session.Token})
	var out logoutResponse
	decodeBody(t, rec, &out)
	if !out.Success {
		t.Fatalf("logout failed")
	}

	rec = e.post(t, "/api/auth/sync-session", map[string]string{"token": verified.Session.Token})
	decodeBody(t, rec, &synced)
	if synced.Valid {
		t.Fatalf("token must be invalid after logout")
	}
}
