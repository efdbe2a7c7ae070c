// Package control exposes the recorder on a local HTTP endpoint so window
// manager key bindings and scripts can drive it while the UI runs.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/alchemmist/lazy-rec/internal/host"
	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
)

const (
	DefaultAddr   = "127.0.0.1:47631"
	eventBuffer   = 8
	writeDeadline = 5 * time.Second
)

// Backend is the part of the recorder the control surface reads.
type Backend interface {
	Status() recorder.Status
	Sessions() []recording.Session
	DeleteSession(id string) bool
	Subscribe(fn func(recorder.Status)) (cancel func())
}

type Server struct {
	backend  Backend
	triggers chan<- recorder.Trigger
	versions func(ctx context.Context) host.Versions
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

func NewServer(backend Backend, triggers chan<- recorder.Trigger, versions func(ctx context.Context) host.Versions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend:  backend,
		triggers: triggers,
		versions: versions,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(loopbackOrigin)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/triggers/{name}", s.handleTrigger)
		r.Get("/status", s.handleStatus)
		r.Get("/sessions", s.handleSessions)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/versions", s.handleVersions)
		r.Get("/events", s.handleEvents)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("control server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown control server: %w", err)
	}
	return nil
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := recorder.ParseTrigger(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	select {
	case s.triggers <- t:
		writeJSON(w, http.StatusAccepted, map[string]string{"trigger": string(t)})
	default:
		writeError(w, http.StatusServiceUnavailable, errors.New("trigger queue is full"))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStatusView(s.backend.Status()))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewSessionViews(s.backend.Sessions()))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.backend.DeleteSession(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	if s.versions == nil {
		writeError(w, http.StatusNotImplemented, errors.New("versions unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, s.versions(r.Context()))
}

// handleEvents streams a StatusView on connect and after every controller
// update. Slow readers lose intermediate updates, never the latest one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := make(chan recorder.Status, eventBuffer)
	push := func(st recorder.Status) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	cancel := s.backend.Subscribe(push)
	defer cancel()
	push(s.backend.Status())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(NewStatusView(st)); err != nil {
				s.logger.Debug("event client gone", "error", err)
				return
			}
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("control request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// loopbackOrigin rejects browser requests sent from pages that are not served
// from this machine. Requests without an Origin header (scripts, ctl) pass.
func loopbackOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !isLoopbackOrigin(origin) {
			writeError(w, http.StatusForbidden, fmt.Errorf("origin %q not allowed", origin))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
