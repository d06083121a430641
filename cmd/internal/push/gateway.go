package push

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultHeartbeatEvery = 30 * time.Second
	defaultPingTimeout    = 5 * time.Second
)

// SessionResolver maps a bearer token to its live session id without
// touching last_activity.
type SessionResolver interface {
	ResolveToken(ctx context.Context, now time.Time, token string) (string, error)
}

// Gateway upgrades authenticated requests to websocket subscriptions on
// the hub.
type Gateway struct {
	log      *slog.Logger
	hub      *Hub
	sessions SessionResolver

	// Origin host patterns passed to websocket.Accept; cross-origin
	// upgrades are rejected unless their host matches.
	originPatterns []string

	heartbeatEvery time.Duration
}

// NewGateway constructs a websocket gateway. originPatterns should be
// derived from the deployment's allowed-origin rules.
func NewGateway(log *slog.Logger, hub *Hub, sessions SessionResolver, originPatterns []string) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		log:            log,
		hub:            hub,
		sessions:       sessions,
		originPatterns: originPatterns,
		heartbeatEvery: defaultHeartbeatEvery,
	}
}

// ServeHTTP adapter so the gateway mounts as an http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates the request, upgrades it, and parks the
// connection on the hub until the session is revoked or the client
// goes away.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := wsToken(r)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := g.sessions.ResolveToken(r.Context(), time.Now().UTC(), token)
	if err != nil || sessionID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Info("push.ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(1 << 10)

	sub := &subscriber{conn: conn}
	g.hub.register(sessionID, sub)
	defer g.hub.unregister(sessionID, sub)

	g.log.Info("push.ws.open", "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients never send payloads; the read loop only notices closure.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(g.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			g.log.Info("push.ws.close", "session_id", sessionID)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sub.ping(ctx, defaultPingTimeout); err != nil {
				g.log.Info("push.ws.heartbeat.fail", "session_id", sessionID, "err", err)
				return
			}
		}
	}
}

func wsToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
