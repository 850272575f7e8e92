package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/videodesk-io/videodesk/internal/assign"
	"github.com/videodesk-io/videodesk/internal/logbuf"
	"github.com/videodesk-io/videodesk/internal/video"
	"github.com/videodesk-io/videodesk/internal/zendesk"
	"github.com/videodesk-io/videodesk/pkg/triage"
)

// LogQuerier abstracts log entry querying to avoid coupling to logbuf directly.
type LogQuerier interface {
	Query(since time.Time, minLevel slog.Level, limit int) []logbuf.Entry
}

// TriageService is the interface the API server needs from the desk.
type TriageService interface {
	ListVideos(filter video.Filter) ([]*triage.Video, error)
	CountVideos(filter video.Filter) (int, error)
	RouteVideo(id string, tab triage.Tab) error
	EscalateVideo(ctx context.Context, id, subject, description string) (int64, error)
	RunAssignment(ctx context.Context, viewID, fieldID int64, agentIDs []int64) (*triage.RunResult, error)
	ListRuns(limit int) ([]*triage.RunResult, error)
	GetRun(runID string) (*triage.RunResult, error)
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth
}

// Server is the videodesk REST API server.
type Server struct {
	svc    TriageService
	cfg    Config
	logger *slog.Logger
	logs   LogQuerier
	srv    *http.Server
}

// NewServer creates a new API server. logs may be nil.
func NewServer(svc TriageService, cfg Config, logger *slog.Logger, logs LogQuerier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		logs:   logs,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/videos", s.requireAuth(s.handleListVideos))
	mux.HandleFunc("POST /api/videos/{id}/route", s.requireAuth(s.handleRouteVideo))
	mux.HandleFunc("POST /api/videos/{id}/escalate", s.requireAuth(s.handleEscalateVideo))
	mux.HandleFunc("POST /api/assign", s.requireAuth(s.handleAssign))
	mux.HandleFunc("GET /api/runs", s.requireAuth(s.handleListRuns))
	mux.HandleFunc("GET /api/runs/{id}", s.requireAuth(s.handleGetRun))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type videoListResponse struct {
	Videos  []*triage.Video `json:"videos"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := video.Filter{
		Channel: q.Get("channel"),
		Source:  q.Get("source"),
		Query:   q.Get("q"),
	}
	if tab := q.Get("tab"); tab != "" {
		t := triage.Tab(tab)
		if !t.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown tab %q", tab)})
			return
		}
		filter.Tab = t
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
			return
		}
		filter.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "until must be RFC 3339"})
			return
		}
		filter.Until = t
	}

	page := queryInt(q.Get("page"), 1)
	perPage := queryInt(q.Get("per_page"), 50)
	if perPage > 200 {
		perPage = 200
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	total, err := s.svc.CountVideos(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	videos, err := s.svc.ListVideos(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if videos == nil {
		videos = []*triage.Video{}
	}
	writeJSON(w, http.StatusOK, videoListResponse{
		Videos:  videos,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

type routeRequest struct {
	Tab string `json:"tab"`
}

func (s *Server) handleRouteVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	tab := triage.Tab(req.Tab)
	if !tab.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown tab %q", req.Tab)})
		return
	}

	if err := s.svc.RouteVideo(id, tab); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id, "tab": req.Tab})
}

type escalateRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

func (s *Server) handleEscalateVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Subject == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject is required"})
		return
	}

	ticketID, err := s.svc.EscalateVideo(r.Context(), id, req.Subject, req.Description)
	if err != nil {
		writeJSON(w, upstreamStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "id": id, "ticket_id": ticketID})
}

type assignRequest struct {
	ViewID   int64   `json:"view_id"`
	FieldID  int64   `json:"field_id"`
	AgentIDs []int64 `json:"agent_ids"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	req := assignRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	res, err := s.svc.RunAssignment(r.Context(), req.ViewID, req.FieldID, req.AgentIDs)
	if err != nil {
		writeJSON(w, upstreamStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 50)
	runs, err := s.svc.ListRuns(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*triage.RunResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.GetRun(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	minLevel := slog.LevelDebug
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			minLevel = slog.LevelInfo
		case "warn":
			minLevel = slog.LevelWarn
		case "error":
			minLevel = slog.LevelError
		}
	}

	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			since = time.UnixMilli(ms)
		}
	}

	entries := s.logs.Query(since, minLevel, limit)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

// upstreamStatus maps desk errors to HTTP statuses: bad run parameters
// are the caller's fault, ticketing API failures are a bad gateway.
func upstreamStatus(err error) int {
	var cfgErr *assign.ConfigError
	if errors.As(err, &cfgErr) {
		return http.StatusBadRequest
	}
	var authErr *zendesk.AuthError
	if errors.As(err, &authErr) {
		return http.StatusBadGateway
	}
	var transportErr *zendesk.TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
