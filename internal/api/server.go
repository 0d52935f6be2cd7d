package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/logging"
	"github.com/RowanDark/cipherkit/internal/observability/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Config configures the REST API server.
type Config struct {
	Addr string
	// Registry defaults to cipher.DefaultRegistry().
	Registry *cipher.Registry
	// Detector defaults to cipher.NewSmartDetector().
	Detector cipher.Detector
	// Recipes defaults to an in-memory recipe manager.
	Recipes *cipher.RecipeManager
	// Defaults returns parameter defaults for an operation name. Request
	// parameters take precedence.
	Defaults cipher.DefaultsFunc
	// Audit defaults to a logger that discards events.
	Audit *logging.AuditLogger
	// Log defaults to slog.Default().
	Log             *slog.Logger
	ShutdownTimeout time.Duration
}

// Server exposes the cipher operations over HTTP.
type Server struct {
	cfg        Config
	httpServer *http.Server
	registry   *cipher.Registry
	detector   cipher.Detector
	recipes    *cipher.RecipeManager
	audit      *logging.AuditLogger
	log        *slog.Logger
}

// NewServer constructs a REST API server using the provided configuration.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("api address must be provided")
	}
	s := &Server{
		cfg:      cfg,
		registry: cfg.Registry,
		detector: cfg.Detector,
		recipes:  cfg.Recipes,
		audit:    cfg.Audit,
		log:      cfg.Log,
	}
	if s.registry == nil {
		s.registry = cipher.DefaultRegistry()
	}
	if s.detector == nil {
		s.detector = cipher.NewSmartDetector()
	}
	if s.recipes == nil {
		s.recipes = cipher.NewRecipeManager("")
	}
	if s.audit == nil {
		s.audit = logging.Discard()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = 5 * time.Second
	}
	metrics.SetRecipes(len(s.recipes.ListRecipes()))
	return s, nil
}

// Handler returns the API routes wrapped in request-ID middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/api/v1/cipher/operations", s.handleCipherListOperations)
	mux.HandleFunc("/api/v1/cipher/execute", s.handleCipherExecute)
	mux.HandleFunc("/api/v1/cipher/pipeline", s.handleCipherPipeline)
	mux.HandleFunc("/api/v1/cipher/detect", s.handleCipherDetect)
	mux.HandleFunc("/api/v1/cipher/smart-decode", s.handleCipherSmartDecode)
	mux.HandleFunc("/api/v1/cipher/recipes", s.handleRecipes)
	mux.HandleFunc("/api/v1/cipher/recipes/import", s.handleRecipeImport)
	mux.HandleFunc("/api/v1/cipher/recipes/{name}", s.handleRecipeByName)
	mux.HandleFunc("/api/v1/cipher/recipes/{name}/run", s.handleRecipeRun)
	return s.withRequestID(mux)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts HTTP/1.1 and cleartext HTTP/2 connections on ln and blocks
// until ctx is cancelled or a fatal error occurs.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	s.log.Info("http api listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type requestIDKey struct{}

// RequestID returns the request ID attached by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
		next.ServeHTTP(rec, req)
		// The mux records the matched route on req.
		metrics.RecordRequest("http", req.Pattern, strconv.Itoa(rec.status))
		s.log.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"route", req.Pattern,
			"status", rec.status,
			"proto", r.Proto,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(body).Decode(v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("write response", "error", err)
	}
}
