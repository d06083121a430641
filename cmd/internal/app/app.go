// Package app wires the codegate runtime: config, logging, persistence
// backend selection, HTTP routes, and the revocation push gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"codegate/cmd/identity"
	authapi "codegate/cmd/internal/auth/api"
	"codegate/cmd/internal/auth/session"
	"codegate/cmd/internal/push"
	"codegate/cmd/internal/recordstore"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction so backend resources
// can be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App is the codegate server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auth *authapi.Handler
	ws   *push.Gateway

	rules Rules
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, users, sessStore, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	sessionSvc := session.NewService(sessCfg, users, sessStore)

	var dispatcher authapi.Dispatcher = authapi.NoopDispatcher{}
	if cfg.EmailWebhookURL != "" || cfg.SMSWebhookURL != "" {
		dispatcher = authapi.NewWebhookDispatcher(cfg.EmailWebhookURL, cfg.SMSWebhookURL)
	} else {
		log.Warn("dispatch.disabled.noop")
	}

	hub := push.NewHub(log)

	authCfg := authapi.LoadConfigFromEnv()
	authHandler, err := authapi.NewHandler(log, authCfg, users, sessionSvc,
		authapi.WithDispatcher(dispatcher),
		authapi.WithRevocationNotifier(hub),
	)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	rules := RulesFromConfig(cfg)
	ws := push.NewGateway(log, hub, sessionResolver{svc: sessionSvc}, rules.OriginPatterns())

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		auth:      authHandler,
		ws:        ws,
		rules:     rules,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.ws)

	handler := WithCORS(mux, a.rules)
	handler = WithHTTPMetrics(handler)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "backend", a.backendName())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func (a *App) backendName() string {
	switch {
	case a.dbPool != nil:
		return "postgres"
	case a.dbEnabled:
		return "recordstore"
	default:
		return "memory"
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// sessionResolver adapts the session service for the push gateway.
// Sync is the right check: websocket subscriptions must not advance
// last_activity.
type sessionResolver struct {
	svc *session.Service
}

func (r sessionResolver) ResolveToken(ctx context.Context, now time.Time, token string) (string, error) {
	synced, err := r.svc.Sync(ctx, now, token)
	if err != nil {
		return "", err
	}
	return synced.SessionID, nil
}

// newStores selects the persistence backend: Postgres when a database
// URL is set, the external record store when configured, and an empty
// in-memory store otherwise (dev mode).
func newStores(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, identity.Store, session.Store, error) {
	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, false, nil, nil, err
		}

		users, err := identity.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, false, nil, nil, err
		}
		sessions, err := session.NewPostgresStore(pool, "")
		if err != nil {
			pool.Close()
			return nil, nil, false, nil, nil, err
		}

		log.Info("backend.postgres")
		return dbStore{pool: pool}, pool, true, users, sessions, nil
	}

	if cfg.RecordStoreBase != "" {
		client, err := recordstore.New(cfg.RecordStoreBase, cfg.RecordStoreToken)
		if err != nil {
			return nil, nil, false, nil, nil, err
		}

		users, err := identity.NewRecordStore(client, cfg.UsersTable)
		if err != nil {
			return nil, nil, false, nil, nil, err
		}
		sessions, err := session.NewRecordStore(client, cfg.SessionsTable, cfg.SessionsUserLink)
		if err != nil {
			return nil, nil, false, nil, nil, err
		}

		log.Info("backend.recordstore", "base", cfg.RecordStoreBase)
		return nopStore{}, nil, true, users, sessions, nil
	}

	log.Info("backend.memory.dev_mode")
	return nopStore{}, nil, false, identity.NewMemoryStore(), session.NewMemoryStore(), nil
}
