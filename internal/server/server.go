// SPDX-License-Identifier: MPL-2.0

// Package server is the HTTP shell: a search page with the selected help page
// in an iframe, the raw help HTML, a JSON search API, health and metrics.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/invowk/fuzzyhelp/internal/helpdoc"
	"github.com/invowk/fuzzyhelp/internal/metrics"
	"github.com/invowk/fuzzyhelp/internal/rank"
	"github.com/invowk/fuzzyhelp/internal/session"
)

const (
	// DefaultAPILimit caps /api/search results when no limit is given.
	DefaultAPILimit = 50

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

//go:embed index.html.tmpl
var indexSource string

var indexTemplate = template.Must(template.New("index").Parse(indexSource))

type (
	// Backend is the part of *session.Session the server uses.
	Backend interface {
		Lookup(ctx context.Context, req session.Request) session.Response
		Query(ctx context.Context, q string) session.QueryResult
		Select(ctx context.Context, pkg, topic string) helpdoc.Page
		Started() bool
	}

	// Server serves the HTTP shell.
	Server struct {
		backend Backend
		logger  *log.Logger
		metrics *metrics.Recorder
		router  *mux.Router
	}

	// Option configures a Server.
	Option func(*Server)

	// SearchResponse is the body of /api/search.
	SearchResponse struct {
		Query         string         `json:"query"`
		Token         string         `json:"token"`
		InstallMarker int            `json:"install_marker"`
		Results       []SearchResult `json:"results"`
		Error         string         `json:"error,omitempty"`
	}

	// SearchResult is one ranked entry in a SearchResponse.
	SearchResult struct {
		Name      string `json:"name"`
		Package   string `json:"package"`
		Topic     string `json:"topic"`
		Score     int    `json:"score"`
		Positions []int  `json:"positions"`
	}

	indexPage struct {
		Query         string
		Token         string
		InstallMarker int
		Results       []indexResult
		HTML          string
	}

	indexResult struct {
		Name     string
		Href     string
		Selected bool
	}
)

// WithLogger sets the server's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics instruments requests and serves /metrics from m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server over backend.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	// Topics such as `/` and `%/%` arrive percent-encoded; matching on the
	// encoded path keeps them inside a single path segment.
	r := mux.NewRouter().UseEncodedPath()
	r.Use(crossOriginIsolation, s.logRequests)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/", s.index).Methods(http.MethodGet)
	r.HandleFunc("/help/{pkg}/{topic}", s.help).Methods(http.MethodGet)
	r.HandleFunc("/api/search", s.search).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, when non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// index handles GET /?q=&pkg=&topic=
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	req := session.Request{Q: qs.Get("q"), Pkg: qs.Get("pkg"), Topic: qs.Get("topic")}
	resp := s.backend.Lookup(r.Context(), req)

	page := indexPage{
		Query:         req.Q,
		Token:         resp.Token,
		InstallMarker: resp.InstallMarker,
		HTML:          resp.HTML,
		Results:       make([]indexResult, len(resp.Results)),
	}
	for i, res := range resp.Results {
		page.Results[i] = indexResult{
			Name:     res.Entry.Name,
			Href:     selectionHref(req.Q, res.Entry.Package, res.Entry.Topic),
			Selected: res.Entry.Package == req.Pkg && res.Entry.Topic == req.Topic,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		s.logger.Error("render index", "err", err)
	}
}

// help handles GET /help/{pkg}/{topic}
func (s *Server) help(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pkg, err := url.PathUnescape(vars["pkg"])
	if err != nil {
		http.Error(w, "malformed package name", http.StatusBadRequest)
		return
	}
	topic, err := url.PathUnescape(vars["topic"])
	if err != nil {
		http.Error(w, "malformed topic", http.StatusBadRequest)
		return
	}
	page := s.backend.Select(r.Context(), pkg, topic)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !page.Found {
		w.WriteHeader(http.StatusNotFound)
	}
	_, _ = io.WriteString(w, page.HTML)
}

// search handles GET /api/search?q=&limit=
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := DefaultAPILimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	body := NewSearchResponse(s.backend.Query(r.Context(), q), limit)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode search response", "err", err)
	}
}

// healthz handles GET /healthz
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.backend.Started() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "starting\n")
		return
	}
	_, _ = io.WriteString(w, "ok\n")
}

// NewSearchResponse converts the first limit results of a query into the
// /api/search body. A limit of zero or less keeps every result.
func NewSearchResponse(res session.QueryResult, limit int) SearchResponse {
	results := rank.Top(res.Results, limit)
	body := SearchResponse{
		Query:         res.Query,
		Token:         res.Token,
		InstallMarker: res.InstallMarker,
		Results:       make([]SearchResult, len(results)),
	}
	for i, rr := range results {
		positions := rr.Positions
		if positions == nil {
			positions = []int{}
		}
		body.Results[i] = SearchResult{
			Name:      rr.Entry.Name,
			Package:   rr.Entry.Package,
			Topic:     rr.Entry.Topic,
			Score:     rr.Score,
			Positions: positions,
		}
	}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	return body
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// crossOriginIsolation sets the headers that let the page run
// cross-origin-isolated features.
func crossOriginIsolation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
		next.ServeHTTP(w, r)
	})
}

func selectionHref(q, pkg, topic string) string {
	v := url.Values{}
	v.Set("q", q)
	v.Set("pkg", pkg)
	v.Set("topic", topic)
	return "/?" + v.Encode()
}
