package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codegate/cmd/identity"
	"codegate/cmd/internal/auth/session"
)

// ServiceName identifies this deployment in health responses.
const ServiceName = "codegate-auth"

// RevocationNotifier receives the session id of every session revoked
// through the logout endpoint, so other holders of the session can be
// told to drop it.
type RevocationNotifier interface {
	NotifyRevoked(sessionID string)
}

// Handler wires the passwordless auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Service

	dispatcher Dispatcher
	notifier   RevocationNotifier

	requestLimiter *WindowLimiter
	verifyLimiter  *WindowLimiter
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithDispatcher overrides the default no-op code dispatcher.
func WithDispatcher(d Dispatcher) HandlerOption {
	return func(h *Handler) {
		if h == nil || d == nil {
			return
		}
		h.dispatcher = d
	}
}

// WithRevocationNotifier registers a listener for logout revocations.
func WithRevocationNotifier(n RevocationNotifier) HandlerOption {
	return func(h *Handler) {
		if h == nil || n == nil {
			return
		}
		h.notifier = n
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("auth: nil identity store")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}

	h := &Handler{
		log:            log,
		cfg:            cfg,
		users:          users,
		sessions:       sessions,
		dispatcher:     NoopDispatcher{},
		requestLimiter: NewWindowLimiter(cfg.RequestCodeMax, cfg.RequestCodeWindow),
		verifyLimiter:  NewWindowLimiter(cfg.VerifyMax, cfg.VerifyWindow),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/request-code", h.handleRequestCode)
	mux.HandleFunc("/api/auth/verify", h.handleVerify)
	mux.HandleFunc("/api/auth/session", h.handleSession)
	mux.HandleFunc("/api/auth/sync-session", h.handleSyncSession)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/health", h.handleHealth)
}

// ---- handlers ----

// handleRequestCode issues a one-time code for a known contact.
//
// The response is uniform {success:true} for every structurally valid
// contact: unknown accounts, store failures, and dispatch failures all
// look identical to the caller. Only a malformed contact is distinguishable.
func (h *Handler) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req requestCodeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)

	if ok, retryAfter := h.requestLimiter.Allow(ip, now); !ok {
		metricRateLimited.WithLabelValues("request_code").Inc()
		writeRateLimited(w, retryAfter)
		return
	}

	contact, err := identity.NormalizeContact(req.Contact, h.cfg.DefaultCountryCode)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid email address or phone number")
		return
	}

	acct, err := h.users.FindByContact(ctx, contact)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.request_code.lookup.fail", "err", err)
		}
		metricCodeRequests.WithLabelValues("unknown").Inc()
		writeJSON(w, http.StatusOK, requestCodeResponse{Success: true, Message: codeSentMessage})
		return
	}

	code, err := identity.NewEntryCode()
	if err != nil {
		h.log.Error("auth.request_code.generate.fail", "err", err)
		metricCodeRequests.WithLabelValues("dispatch_fail").Inc()
		writeJSON(w, http.StatusOK, requestCodeResponse{Success: true, Message: codeSentMessage})
		return
	}

	if err := h.users.SetCode(ctx, acct.User.ID, code, now); err != nil {
		h.log.Error("auth.request_code.store.fail", "err", err)
		metricCodeRequests.WithLabelValues("dispatch_fail").Inc()
		writeJSON(w, http.StatusOK, requestCodeResponse{Success: true, Message: codeSentMessage})
		return
	}

	if err := h.dispatcher.SendCode(ctx, contact, code); err != nil {
		h.log.Error("auth.request_code.dispatch.fail", "err", err, "kind", string(contact.Kind))
		metricCodeRequests.WithLabelValues("dispatch_fail").Inc()
		writeJSON(w, http.StatusOK, requestCodeResponse{Success: true, Message: codeSentMessage})
		return
	}

	metricCodeRequests.WithLabelValues("found").Inc()
	writeJSON(w, http.StatusOK, requestCodeResponse{Success: true, Message: codeSentMessage})
}

const codeSentMessage = "if an account exists for this contact, a code has been sent"

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)

	// The limiter runs before code comparison so attempts past the limit
	// reveal nothing about code correctness.
	if ok, retryAfter := h.verifyLimiter.Allow(ip, now); !ok {
		metricRateLimited.WithLabelValues("verify").Inc()
		writeRateLimited(w, retryAfter)
		return
	}

	contact, err := identity.NormalizeContact(req.Contact, h.cfg.DefaultCountryCode)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid email address or phone number")
		return
	}

	created, err := h.sessions.VerifyCode(ctx, now, contact, req.Code, ip)
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			metricVerifyAttempts.WithLabelValues("not_found").Inc()
			writeFail(w, http.StatusNotFound, "no account found for this contact")
		case errors.Is(err, session.ErrBadCode):
			metricVerifyAttempts.WithLabelValues("bad_code").Inc()
			writeFail(w, http.StatusUnauthorized, "invalid or expired code")
		default:
			h.log.Error("auth.verify.fail", "err", err)
			metricVerifyAttempts.WithLabelValues("error").Inc()
			writeFail(w, http.StatusInternalServerError, "verification failed, please retry")
		}
		return
	}

	h.log.Info("auth.verify.ok", "session_id", created.SessionID, "user_id", created.User.ID)
	metricVerifyAttempts.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: true,
		Session: sessionPayload{
			Token:     created.Token,
			ID:        created.SessionID,
			ExpiresAt: created.ExpiresAt,
		},
		User: toUserResponse(created.User),
	})
}

// handleSession validates a bearer token and advances last_activity.
// Every failure collapses to {valid:false}; backend errors are logged only.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tok := h.tokenFromRequest(w, r)
	if tok == "" {
		metricSessionChecks.WithLabelValues("validate", "invalid").Inc()
		writeJSON(w, http.StatusOK, sessionCheckResponse{Valid: false})
		return
	}

	user, err := h.sessions.Validate(r.Context(), time.Now().UTC(), tok)
	if err != nil {
		if !isSessionInvalid(err) {
			h.log.Error("auth.session.fail", "err", err)
		}
		metricSessionChecks.WithLabelValues("validate", "invalid").Inc()
		writeJSON(w, http.StatusOK, sessionCheckResponse{Valid: false})
		return
	}

	metricSessionChecks.WithLabelValues("validate", "ok").Inc()
	resp := toUserResponse(user)
	writeJSON(w, http.StatusOK, sessionCheckResponse{Valid: true, User: &resp})
}

// handleSyncSession validates a bearer token without touching
// last_activity and echoes it back for cross-domain re-propagation.
func (h *Handler) handleSyncSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tok := h.tokenFromRequest(w, r)
	if tok == "" {
		metricSessionChecks.WithLabelValues("sync", "invalid").Inc()
		writeJSON(w, http.StatusOK, syncSessionResponse{Valid: false})
		return
	}

	synced, err := h.sessions.Sync(r.Context(), time.Now().UTC(), tok)
	if err != nil {
		if !isSessionInvalid(err) {
			h.log.Error("auth.sync_session.fail", "err", err)
		}
		metricSessionChecks.WithLabelValues("sync", "invalid").Inc()
		writeJSON(w, http.StatusOK, syncSessionResponse{Valid: false})
		return
	}

	metricSessionChecks.WithLabelValues("sync", "ok").Inc()
	user := toUserResponse(synced.User)
	writeJSON(w, http.StatusOK, syncSessionResponse{
		Valid: true,
		Session: &sessionPayload{
			Token:     synced.Token,
			ID:        synced.SessionID,
			ExpiresAt: synced.ExpiresAt,
		},
		User: &user,
	})
}

// handleLogout revokes the presented session. It always answers
// {success:true}: logout must never fail observably, even when the token
// is unknown, already revoked, or the backend is down.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tok := h.tokenFromRequest(w, r)
	if tok != "" {
		sessionID, err := h.sessions.Revoke(r.Context(), time.Now().UTC(), tok)
		switch {
		case err != nil:
			h.log.Error("auth.logout.fail", "err", err)
		case sessionID != "":
			h.log.Info("auth.logout.ok", "session_id", sessionID)
			metricLogouts.Inc()
			if h.notifier != nil {
				h.notifier.NotifyRevoked(sessionID)
			}
		}
	}

	writeJSON(w, http.StatusOK, logoutResponse{Success: true})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: ServiceName})
}

func isSessionInvalid(err error) bool {
	return errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrSessionExpired) ||
		errors.Is(err, session.ErrSessionRevoked) ||
		identity.IsNotFound(err)
}
