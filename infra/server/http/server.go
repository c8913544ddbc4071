// Package httpsrv hosts the HTTP surface: REST endpoints, WebSocket upgrades and long-poll.
package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/webitel/notification-relay/config"
)

// Server wraps the HTTP server with its router.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger

	listener net.Listener
}

// NewServer builds the router with the shared middleware stack. Handlers attach their
// routes before Start.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	logger = logger.With("component", "http-server")

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger),
		middleware.Recoverer,
		corsHandler(cfg.HTTP.AllowedOrigins),
	)

	return &Server{
		router: router,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

func (s *Server) Router() chi.Router { return s.router }

// Start binds the listener synchronously so address errors surface at startup, then
// serves in the background.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()

	s.logger.Info("HTTP_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server. Hijacked WebSocket connections are not
// tracked by net/http; they end when the registry closes their handles.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP_SERVER_STOPPING")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP_REQUEST",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsHandler answers preflights for the configured origins; "*" allows any origin.
// Requests from other origins pass through without CORS headers.
func corsHandler(allowed []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
