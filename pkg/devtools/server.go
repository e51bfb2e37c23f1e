package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	duxerrors "github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/registry"
)

// Default stream limits.
const (
	DefaultRate  = rate.Limit(20)
	DefaultBurst = 5
)

// Server exposes a registry over HTTP.
type Server struct {
	reg      *registry.Registry
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	limit    rate.Limit
	burst    int

	router *chi.Mux
	hub    *hub
	cancel func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the metrics source for /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithRate sets how many change frames per second each WebSocket client
// receives, and the burst above that rate. A limit of zero or less removes
// the limit.
func WithRate(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limit = limit
		if limit <= 0 {
			s.limit = rate.Inf
		}
		if burst > 0 {
			s.burst = burst
		}
	}
}

// New creates a devtools server for reg and starts watching it.
func New(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		reg:      reg,
		logger:   reg.Logger().With("component", "devtools"),
		gatherer: prometheus.DefaultGatherer,
		limit:    DefaultRate,
		burst:    DefaultBurst,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = newHub(s.logger, s.limit, s.burst)
	s.cancel = reg.Watch(s.hub.broadcast)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stores", s.handleStores)
	r.Get("/stores/*", s.handleStore)
	r.Get("/ws", s.handleStream)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("devtools listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.close()
	return srv.Shutdown(shutdownCtx)
}

// Close stops watching the registry and disconnects every stream client.
func (s *Server) Close() {
	s.cancel()
	s.hub.close()
}

// ClientCount returns the number of connected stream clients.
func (s *Server) ClientCount() int {
	return s.hub.count()
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.Stores())
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	// Names may contain slashes; the wildcard keeps them in one parameter.
	name := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	info, ok := s.reg.Store(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, duxerrors.New("D052").WithStore(name))
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Store   string `json:"store,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err *duxerrors.DuxError) {
	s.writeJSON(w, status, errorBody{Code: err.Code, Message: err.Message, Store: err.Store})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("devtools response not encodable", "error", err)
		data, _ = json.Marshal(errorBody{Code: "D004", Message: err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
