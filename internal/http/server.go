package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/sessionstore"
	"github.com/LUMINOUX-HEHE/DPR/internal/session"
	"github.com/LUMINOUX-HEHE/DPR/internal/shell"
	"github.com/LUMINOUX-HEHE/DPR/internal/task"
)

const (
	housekeepingInterval = time.Minute
	minWorkspaceIdle     = 2 * time.Minute
)

// dprBackend is the DPR API as the server uses it.
type dprBackend interface {
	shell.Backend
	Enabled() bool
	Endpoint() string
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        config.Config
	httpServer *nethttp.Server
	store      *sessionstore.Store
	workspaces *shell.Registry
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	housekeeper *task.Handle
}

// NewServer creates a configured HTTP server.
func NewServer(cfg config.Config) (*Server, error) {
	store, err := sessionstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	client := dpr.NewClient(cfg.DPRAPIBaseURL, cfg.UploadTimeout, cfg.ListTimeout)
	if !client.Enabled() {
		log.Warn().Msg("APP_DPR_API_BASE_URL is empty; backend calls will fail")
	}

	srv, err := newServer(cfg, store, client)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return srv, nil
}

func newServer(cfg config.Config, store *sessionstore.Store, client dprBackend) (*Server, error) {
	sessions, err := session.NewManager(store, session.Options{
		Secret:            cfg.SessionSecret,
		TTL:               cfg.SessionTTL,
		CookieName:        cfg.SessionCookieName,
		CookieSecure:      cfg.SessionCookieSecure,
		DefaultRole:       cfg.DefaultRole,
		DefaultDepartment: cfg.DefaultDepartment,
		RoleOverrides:     cfg.RoleOverrides,
	})
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	ui, err := newRenderer(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{cfg: cfg, store: store, baseCtx: baseCtx, baseCancel: cancel}

	m := newMetrics(func() float64 { return float64(s.workspaces.Len()) })
	store.SetObserver(func(op string, elapsed time.Duration, err error) {
		m.recordDBQuery(store.Driver(), op, elapsed.Seconds(), err)
	})
	backend := &meteredBackend{next: client, metrics: m}

	s.workspaces = shell.NewRegistry(baseCtx, backend, shell.Settings{
		PollInterval:     cfg.PollInterval,
		RefreshInterval:  cfg.DashboardRefreshInterval,
		HistoryMaxPoints: cfg.DashboardHistoryMaxPoints,
		SettleDelay:      cfg.RefreshSettleDelay,
	})

	auth := &authenticator{sessions: sessions, workspaces: s.workspaces}

	mux := nethttp.NewServeMux()
	mux.HandleFunc("GET /{$}", rootHandler(sessions))
	mux.HandleFunc("GET /favicon.ico", faviconHandler)
	mux.HandleFunc("GET /login", loginPageHandler(ui, sessions))
	mux.HandleFunc("POST /login", loginHandler(ui, sessions))
	mux.HandleFunc("POST /logout", logoutHandler(sessions, s.workspaces))

	mux.HandleFunc("GET /app", auth.page(appHandler(ui)))
	mux.HandleFunc("POST /app/evaluate/{jobId}", auth.page(evaluateHandler()))
	mux.HandleFunc("POST /app/dpr/upload", auth.page(uploadHandler(cfg.MaxUploadBytes)))
	mux.HandleFunc("POST /app/dpr/refresh", auth.page(refreshHandler()))
	mux.HandleFunc("POST /app/dpr/query", auth.page(queryHandler()))
	mux.HandleFunc("POST /app/dpr/sort", auth.page(sortHandler()))
	mux.HandleFunc("POST /app/dpr/select", auth.page(selectHandler()))
	mux.HandleFunc("POST /app/dpr/bulk-delete", auth.page(bulkDeleteHandler()))
	mux.HandleFunc("POST /app/dpr/{jobId}/delete", auth.page(deleteHandler()))
	mux.HandleFunc("GET /app/dpr/export", auth.page(exportHandler()))
	mux.HandleFunc("POST /app/dashboard/retry", auth.page(dashboardRetryPageHandler()))

	mux.HandleFunc("GET /api/v1/evaluation", auth.api(evaluationSnapshotHandler()))
	mux.HandleFunc("GET /api/v1/dashboard", auth.api(dashboardStateHandler()))
	mux.HandleFunc("POST /api/v1/dashboard/retry", auth.api(dashboardRetryHandler()))
	mux.HandleFunc("GET /api/v1/status/backend", auth.api(backendStatusHandler(backend, store)))
	mux.HandleFunc("GET /api/v1/settings", settingsHandler(cfg))

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(store))
	mux.Handle("GET /metrics", m.handler)

	s.httpServer = &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      loggingMiddleware(observabilityMiddleware(m, recoveryMiddleware(ui, mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler exposes the fully wrapped handler.
func (s *Server) Handler() nethttp.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.housekeeper = task.Every(s.baseCtx, housekeepingInterval, func(ctx context.Context) bool {
		s.housekeeping(ctx, time.Now())
		return true
	})
	s.mu.Unlock()

	log.Info().Str("addr", s.cfg.ListenAddr).Str("session_driver", s.store.Driver()).Msg("review console listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and every workspace task.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.housekeeper.Cancel()
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)
	s.workspaces.CloseAll()
	s.baseCancel()
	if s.store != nil {
		_ = s.store.Close()
	}
	return err
}

// housekeeping purges expired session records, releases the workspaces of
// sessions that no longer exist and pauses the refreshers of idle ones.
func (s *Server) housekeeping(ctx context.Context, now time.Time) {
	n, err := s.store.Purge(ctx, now)
	if err != nil {
		log.Warn().Err(err).Msg("session purge failed")
	} else if n > 0 {
		log.Info().Int64("removed", n).Msg("expired sessions purged")
	}

	released := s.workspaces.Sweep(func(ws *shell.Workspace) bool {
		if exp := ws.ExpiresAt(); !exp.IsZero() && !now.Before(exp) {
			return false
		}
		_, err := s.store.Load(ctx, ws.SessionID)
		return !errors.Is(err, sessionstore.ErrNotFound)
	})
	paused := s.workspaces.PauseIdle(s.workspaceIdle())
	if released > 0 || paused > 0 {
		log.Info().Int("released", released).Int("paused", paused).Int("live", s.workspaces.Len()).Msg("workspaces swept")
	}
}

func (s *Server) workspaceIdle() time.Duration {
	idle := 3 * s.cfg.DashboardRefreshInterval
	if idle < minWorkspaceIdle {
		idle = minWorkspaceIdle
	}
	return idle
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(store *sessionstore.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.Ping(r.Context()); err != nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"error":  "session store unreachable",
			})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"status": "ready",
		})
	}
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

func loggingMiddleware(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)

		evt := logger.Info()
		if rec.status >= nethttp.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// recoveryMiddleware turns a panic while handling or rendering into the
// retry/reload page. Error detail is only shown in development.
func recoveryMiddleware(ui *renderer, next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == nethttp.ErrAbortHandler {
				panic(rv)
			}
			stack := debug.Stack()
			zerolog.Ctx(r.Context()).Error().
				Interface("panic", rv).
				Bytes("stack", stack).
				Str("path", r.URL.Path).
				Msg("recovered from panic")
			ui.renderFailure(w, r, fmt.Sprint(rv), string(stack))
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
