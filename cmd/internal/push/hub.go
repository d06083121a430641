package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// revokedEvent is the single message the gateway pushes today.
type revokedEvent struct {
	Event string `json:"event"`
}

// Hub tracks live websocket subscribers per session id and fans out
// revocation events. It satisfies the auth API's RevocationNotifier.
type Hub struct {
	log *slog.Logger

	writeTimeout time.Duration

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub constructs an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:          log,
		writeTimeout: 5 * time.Second,
		subs:         make(map[string]map[*subscriber]struct{}),
	}
}

// NotifyRevoked pushes a revoked event to every subscriber of the
// session and closes their connections. It never blocks the caller.
func (h *Hub) NotifyRevoked(sessionID string) {
	if h == nil || sessionID == "" {
		return
	}

	h.mu.Lock()
	set := h.subs[sessionID]
	targets := make([]*subscriber, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	delete(h.subs, sessionID)
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	go func() {
		for _, s := range targets {
			s.sendRevokedAndClose(h.writeTimeout)
		}
		h.log.Info("push.revoked.fanout", "session_id", sessionID, "subscribers", len(targets))
	}()
}

func (h *Hub) register(sessionID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unregister(sessionID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

// subscriber wraps one websocket connection. Writes are serialized.
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) sendRevokedAndClose(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_ = wsjson.Write(ctx, s.conn, revokedEvent{Event: "revoked"})
	_ = s.conn.Close(websocket.StatusNormalClosure, "session revoked")
}

func (s *subscriber) ping(ctx context.Context, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.conn.Ping(pctx)
}
