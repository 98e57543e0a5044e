// ABOUTME: HTTP control surface for a running stream
// ABOUTME: Status, stop, health, Prometheus metrics and the optional WebSocket stream
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/stream"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Streamer is the part of the driver the control surface needs
type Streamer interface {
	State() stream.State
	Stats() stream.Stats
	Stop()
}

// Info describes the stream for /status
type Info struct {
	Name      string  `json:"name"`
	Waveform  string  `json:"waveform"`
	Frequency float64 `json:"frequency_hz"`
	Format    string  `json:"format"`
	Output    string  `json:"output"`
	StreamID  string  `json:"stream_id,omitempty"`
}

// Status is the /status response body
type Status struct {
	Info
	State     string       `json:"state"`
	Uptime    string       `json:"uptime"`
	Listeners *int         `json:"listeners,omitempty"`
	Stats     stream.Stats `json:"stats"`
}

// Options configures the control server
type Options struct {
	Streamer Streamer
	Info     Info

	// Stream is mounted at /stream when set
	Stream http.Handler

	// Listeners reports connected stream listeners when set
	Listeners func() int

	// Gatherer backs /metrics; defaults to the global registry
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// Server serves the control API
type Server struct {
	opts    Options
	logger  *zap.Logger
	router  chi.Router
	started time.Time

	srv      *http.Server
	listener net.Listener
}

// New builds the control router
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		opts:    opts,
		logger:  opts.Logger,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	r.Get("/status", s.status)
	r.Post("/stop", s.stop)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	if opts.Stream != nil {
		r.Handle("/stream", opts.Stream)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("control server listening", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server failed", zap.Error(err))
		}
	}()
	return nil
}

// Port returns the bound TCP port, zero before Start
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	state := s.opts.Streamer.State()
	if state == stream.Faulted {
		http.Error(w, state.String(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, state.String())
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	resp := Status{
		Info:   s.opts.Info,
		State:  s.opts.Streamer.State().String(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Stats:  s.opts.Streamer.Stats(),
	}
	if s.opts.Listeners != nil {
		n := s.opts.Listeners()
		resp.Listeners = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("stop requested over HTTP", zap.String("remote", r.RemoteAddr))
	s.opts.Streamer.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"state": s.opts.Streamer.State().String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// requestLogger logs every request at debug level
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
