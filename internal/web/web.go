package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"racecal/internal/config"
	"racecal/internal/export"
	"racecal/internal/filter"
	appLog "racecal/internal/log"
	"racecal/internal/metrics"
	"racecal/internal/view"
)

// Server exposes the board page and its API around one Synchronizer.
type Server struct {
	cfg       *config.Config
	mux       *http.ServeMux
	syncr     *view.Synchronizer
	presenter *BoardPresenter
}

// embeddedStatic contains the board page assets served at /.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server around an already-wired synchronizer
// and its presenter.
func NewServer(cfg *config.Config, syncr *view.Synchronizer, presenter *BoardPresenter) *Server {
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		syncr:     syncr,
		presenter: presenter,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, with basic auth
// applied when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Refresh re-fetches the events document, serialized against request
// handling so no half-applied snapshot is ever observable.
func (s *Server) Refresh(ctx context.Context) error {
	s.presenter.renderMu.Lock()
	defer s.presenter.renderMu.Unlock()
	return s.syncr.Reload(ctx)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="racecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/view", counted("/api/view", s.handleView))
	s.mux.HandleFunc("/api/export", counted("/api/export", s.handleExport))
	s.mux.HandleFunc("/api/subscribe", counted("/api/subscribe", s.handleSubscribe))
	s.mux.Handle("/metrics", metrics.Handler())

	// Board page; all non-API paths fall through to the embedded UI.
	s.mux.Handle("/", s.staticFileServer())
}

func counted(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.ObserveRequest(path)
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleView maps the board controls onto the filter criteria, runs
// one recompute, and returns everything the page renders: the visible
// items, the summary counts and text, the location options, and the
// empty-state or load-failure notice.
//
// GET /api/view?location=台北&start=2024-03-01&end=2024-06-30&open=1
// GET /api/view?reset=1
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.presenter.renderMu.Lock()
	if isTruthy(q.Get("reset")) {
		s.syncr.Reset()
	} else {
		s.syncr.Recompute(parseCriteria(q))
	}
	resp := s.presenter.buildView(s.syncr)
	s.presenter.renderMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleExport downloads the subset matching the request's criteria.
// Exports are a pure projection of the loaded events and do not touch
// the board's criteria.
//
// GET /api/export?format=ics|csv|json&location=...&start=...&end=...&open=...
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtered := filter.Apply(s.syncr.Events(), parseCriteria(q))

	switch q.Get("format") {
	case "ics":
		export.ICS(w, filtered)
	case "csv":
		export.CSV(w, filtered)
	case "json":
		export.JSON(w, filtered, s.syncr.GeneratedAt())
	default:
		writeError(w, http.StatusBadRequest, "unknown export format")
	}
}

// handleSubscribe serves an inline ICS publish feed of the subset
// matching the request's criteria.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	filtered := filter.Apply(s.syncr.Events(), parseCriteria(r.URL.Query()))
	export.SubscriptionICS(w, filtered)
}

// parseCriteria reads control values from the query string. Absent or
// malformed date parameters are treated as no bound.
func parseCriteria(q map[string][]string) filter.Criteria {
	get := func(key string) string {
		if vs, ok := q[key]; ok && len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	c := filter.Default()
	if loc := get("location"); loc != "" {
		c.Location = loc
	}
	if start := parseDay(get("start")); start != nil {
		c.Start = start
	}
	if end := parseDay(get("end")); end != nil {
		c.End = end
	}
	c.OpenOnly = isTruthy(get("open"))
	return c
}

func parseDay(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		appLog.Debug("ignoring malformed date parameter", "value", s)
		return nil
	}
	return &t
}

func isTruthy(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}

// staticFileServer serves the embedded board page from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "board UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API paths never fall back to the UI; a missing API route is a 404.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		metrics.ObserveRequest("static")
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
