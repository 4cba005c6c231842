package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cityevents/internal/config"
	"cityevents/internal/ics"
	appLog "cityevents/internal/log"
	"cityevents/internal/model"
	"cityevents/internal/pipeline"
)

// Runner produces one pipeline result.
type Runner interface {
	Run(ctx context.Context) pipeline.Result
}

// Server exposes the latest pipeline result over HTTP.
type Server struct {
	cfg    *config.Config
	runner Runner
	ttl    time.Duration
	router chi.Router

	// Last pipeline result, served until it is older than ttl.
	snapMu sync.RWMutex
	snap   *snapshot

	// Serializes pipeline runs so concurrent stale requests share one.
	runMu      sync.Mutex
	runTimeout time.Duration
}

// defaultRunTimeout bounds one pipeline run started from a request.
const defaultRunTimeout = 2 * time.Minute

// snapshot holds a pipeline result and its timestamp.
type snapshot struct {
	result    pipeline.Result
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, runner Runner) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		ttl:    cfg.API.CacheTTL(),

		runTimeout: defaultRunTimeout,
	}
	s.router = s.routes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="cityevents", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if n := s.cfg.API.RateLimitPerMinute; n > 0 {
			r.Use(httprate.Limit(n, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				}),
			))
		}

		r.Get("/api/events", s.handleEvents)
		r.Get("/api/occurrences", s.handleOccurrences)
		r.Get("/api/venues", s.handleVenues)
		r.Get("/api/collections", s.handleCollections)
		r.Get("/api/quarantine", s.handleQuarantine)
		r.Get("/api/status", s.handleStatus)
		r.Post("/api/refresh", s.handleRefresh)
		r.Get("/calendar.ics", s.handleCalendar)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Refresh runs the pipeline and replaces the snapshot. The cron job in
// cmd/cityevents calls it on schedule.
func (s *Server) Refresh(ctx context.Context) pipeline.Result {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked detaches the run from ctx's cancellation: the snapshot is
// shared, so a client going away must not leave an empty result behind.
func (s *Server) refreshLocked(ctx context.Context) pipeline.Result {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
	defer cancel()
	res := s.runner.Run(runCtx)
	s.snapMu.Lock()
	s.snap = &snapshot{result: res, updatedAt: time.Now()}
	s.snapMu.Unlock()
	return res
}

// current returns the cached result, running the pipeline first when
// there is none or it is older than the TTL.
func (s *Server) current(ctx context.Context) pipeline.Result {
	if res, ok := s.fresh(); ok {
		return res
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	// Another request may have refreshed while we waited.
	if res, ok := s.fresh(); ok {
		return res
	}
	return s.refreshLocked(ctx)
}

func (s *Server) fresh() (pipeline.Result, bool) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.snap == nil || time.Since(s.snap.updatedAt) >= s.ttl {
		return pipeline.Result{}, false
	}
	return s.snap.result, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Total       int           `json:"total"`
	Events      []model.Event `json:"events"`
}

// handleEvents returns the normalized events, optionally filtered.
//
// GET /api/events?venue=bleza&category=music&tag=jazz&status=scheduled
//
//	&collection=c1&from=2024-05-01&to=2024-05-08&free=1&limit=50
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	loc := s.cfg.Location()
	f, err := parseFilter(r.URL.Query(), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.current(r.Context())
	events := f.apply(res.Events, res.Collections)

	writeJSON(w, http.StatusOK, eventsResponse{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Total:       len(events),
		Events:      events,
	})
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Occurrences     []ics.Occurrence `json:"occurrences"`
	TruncatedEvents []string         `json:"truncated_events,omitempty"`
	RangeStart      time.Time        `json:"range_start"`
	RangeEnd        time.Time        `json:"range_end"`
	DisplayTimeZone string           `json:"display_timezone"`
}

// handleOccurrences expands recurring events into dated instances within
// a window around now.
//
// GET /api/occurrences?days=7&backfill=1
//   - days:     how many days ahead to include (default 7)
//   - backfill: how many past days to include (default 1)
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	loc := s.cfg.Location()
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	res := s.current(r.Context())
	expanded, err := ics.Expand(res.Events, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		appLog.Error("api occurrences: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences:     expanded.Occurrences,
		TruncatedEvents: expanded.TruncatedEvents,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	})
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	res := s.current(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"venues": res.Venues})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	res := s.current(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"collections": res.Collections})
}

func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	res := s.current(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     res.RunID,
		"quarantine": res.Quarantine,
	})
}

// statusResponse summarizes the last run.
type statusResponse struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Events      int               `json:"events"`
	Venues      int               `json:"venues"`
	Collections int               `json:"collections"`
	Quarantined int               `json:"quarantined"`
	FeedErrors  map[string]string `json:"feed_errors,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := s.current(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Events:      len(res.Events),
		Venues:      len(res.Venues),
		Collections: len(res.Collections),
		Quarantined: len(res.Quarantine),
		FeedErrors:  res.FeedErrors,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res := s.Refresh(r.Context())
	appLog.Info("api refresh completed", "run_id", res.RunID, "events", len(res.Events))
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": res.RunID,
		"events": len(res.Events),
	})
}

// handleCalendar serves the events as an iCalendar feed. Query filters are
// the same as /api/events.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), s.cfg.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.current(r.Context())
	body := ics.Export(f.apply(res.Events, res.Collections), s.cfg.CalendarName, res.Venues)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
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
