package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/metrics"
	"github.com/psantana5/charon/pkg/middleware"
	"github.com/psantana5/charon/pkg/registry"
	"github.com/psantana5/charon/pkg/systemd"
	"github.com/psantana5/charon/pkg/tracing"
)

// SocketMode is the permission applied to the control socket
const SocketMode os.FileMode = 0600

// Options configures a Server
type Options struct {
	Registry *registry.Registry
	Units    *systemd.Writer
	Metrics  *metrics.Metrics
	Tracer   *tracing.Provider
	Logger   *logging.Logger
	Debug    bool

	// Requests per second and burst for the rate limiter. Zero RPS
	// disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the charon daemon: it answers control, query and status
// requests over a local socket
type Server struct {
	registry *registry.Registry
	units    *systemd.Writer
	metrics  *metrics.Metrics
	tracer   *tracing.Provider
	logger   *logging.Logger
	limiter  *middleware.Limiter
	debug    bool

	httpServer *http.Server
}

// NewServer creates a server. Missing collaborators get defaults.
func NewServer(opts Options) *Server {
	s := &Server{
		registry: opts.Registry,
		units:    opts.Units,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
		debug:    opts.Debug,
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.tracer == nil {
		s.tracer, _ = tracing.InitTracer(tracing.Config{ServiceName: "charon"})
	}
	if s.units == nil {
		s.units = systemd.NewWriter("", systemd.NewSystemctlReloader(), opts.Debug)
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = middleware.NewLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	return s
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/status/ping", s.Ping).Methods("GET")

	r.HandleFunc("/control/units", s.WriteUnit).Methods("POST")
	r.HandleFunc("/control/units/{name}/{version}", s.RemoveUnit).Methods("DELETE")

	r.HandleFunc("/query/prompts/{name}/{version}", s.GetPrompts).Methods("GET")
	r.HandleFunc("/query/responses/{name}", s.SetResponses).Methods("PUT")
	r.HandleFunc("/query/command/{name}/{version}", s.Command).Methods("GET")

	r.Handle("/metrics", s.metrics).Methods("GET")
}

// Handler builds the router with its middleware chain
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	r.Use(middleware.RequestID)
	r.Use(tracing.HTTPMiddleware(s.tracer))
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.Metrics(s.metrics))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(middleware.PeerKeyFunc))
	}
	return r
}

// Listen opens the control socket, replacing a stale one left by a
// previous run
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, SocketMode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return ln, nil
}

// Serve handles requests on ln until Shutdown is called
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Listening", map[string]interface{}{
		"address": ln.Addr().String(),
		"debug":   s.debug,
	})

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
