// Package server is the HTTP host that serves content identifiers, the shell
// page that frames archived documents, and the session control API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/zipsite/internal/history"
	"github.com/ziadkadry99/zipsite/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port            int
	AllowAll        bool // allow all CORS origins
	MaxArchiveBytes int64
	RemoteTimeout   time.Duration
}

// Server hosts one session manager.
type Server struct {
	cfg        Config
	manager    *session.Manager
	history    *history.Store
	events     *hub
	client     *http.Client
	router     chi.Router
	httpServer *http.Server
	listener   net.Listener

	// ctx bounds loads that outlive the request that started them.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server for manager. hist may be nil when history is disabled.
func New(cfg Config, manager *session.Manager, hist *history.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		manager: manager,
		history: hist,
		events:  newHub(manager),
		client:  &http.Client{Timeout: cfg.RemoteTimeout},
		ctx:     ctx,
		cancel:  cancel,
	}
	manager.Subscribe(s.events.broadcast)
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Long-lived routes: uploads, synchronous loads and the event stream.
	r.Post("/~zipsite/load", s.handleLoad)
	r.Get("/~zipsite/events", s.events.serve)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", serveShell)
		r.Get("/~zipsite/blob/{token}", s.handleBlob)
		r.Get("/~zipsite/session", s.handleSession)
		r.Get("/~zipsite/context", s.handleGetContext)
		r.Put("/~zipsite/context", s.handlePutContext)
		r.Get("/~zipsite/resolve", s.handleResolve)
		r.Get("/~zipsite/fetch", s.handleFetch)
		r.Post("/~zipsite/navigate", s.handleNavigate)
		r.Post("/~zipsite/reset", s.handleReset)
		r.Post("/~zipsite/abort", s.handleAbort)

		if s.history != nil {
			history.RegisterRoutes(r, s.history)
		}
	})

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Manager returns the session manager.
func (s *Server) Manager() *session.Manager { return s.manager }

// Listen binds the configured port on the loopback interface. Port 0 picks a
// free port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	return nil
}

// URL returns the base URL once Listen succeeded.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Serve accepts connections until Shutdown. It calls Listen if needed.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("zipsite server listening on %s", s.URL())
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops background loads, closes event streams and gracefully shuts
// down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.events.close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
