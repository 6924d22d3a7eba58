// Package api exposes the progress service over HTTP.
package api

import (
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/realtime"
	"github.com/p-n-ai/pai-progress/internal/report"
)

const maxBodyBytes = 64 << 10

//go:embed update_schema.json
var updateSchemaJSON string

var updateSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(updateSchemaJSON))
})

// CheckFunc reports whether a dependency is ready to serve traffic.
type CheckFunc func(ctx context.Context) error

// Config holds dependencies for the HTTP server.
type Config struct {
	Service        *progress.Service
	Hub            *realtime.Hub // nil disables /ws
	DefaultStudent int64
	ReadyChecks    map[string]CheckFunc
	Now            func() time.Time
}

// Server serves the progress API.
type Server struct {
	svc            *progress.Service
	hub            *realtime.Hub
	defaultStudent int64
	readyChecks    map[string]CheckFunc
	now            func() time.Time
}

// New creates an API server.
func New(cfg Config) *Server {
	svc := cfg.Service
	if svc == nil {
		svc = progress.NewService(progress.ServiceConfig{})
	}
	student := cfg.DefaultStudent
	if student <= 0 {
		student = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		svc:            svc,
		hub:            cfg.Hub,
		defaultStudent: student,
		readyChecks:    cfg.ReadyChecks,
		now:            now,
	}
}

// Handler returns the routed handler wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	return chain(s.routes(), withLogging, withRequestID, withCORS)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("/progress", s.handleProgress)
	mux.HandleFunc("GET /progress/export.xlsx", s.handleExport)
	mux.HandleFunc("GET /topics/{id}/sections", s.handleSections)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWS)
	}
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	if err := s.svc.HealthCheck(ctx); err != nil {
		failed["store"] = err.Error()
	}
	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		slog.Warn("readiness check failed", "checks", failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getProgress(w, r)
	case http.MethodPost:
		s.postProgress(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	studentID, err := s.studentFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	topics, err := s.svc.FetchAll(r.Context(), studentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	lang := catalog.MatchLanguage(r.Header.Get("Accept-Language"))
	for i := range topics {
		topics[i].DifficultyLabel = catalog.DifficultyLabel(topics[i].Difficulty, lang)
	}

	body, err := json.Marshal(map[string]any{"topics": topics})
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("encode topics: %w", err))
		return
	}
	body = append(body, '\n')

	tag := etag(body)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Vary", "Accept-Language, X-Student-Id")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// etag is a strong validator over the encoded response body.
func etag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}

type updateRequest struct {
	StudentID      int64 `json:"student_id"`
	TopicID        int   `json:"topic_id"`
	CompletedTasks int   `json:"completed_tasks"`
}

type updateResponse struct {
	Success bool `json:"success"`
	progress.Result
}

func (s *Server) postProgress(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if err := validateUpdate(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.StudentID == 0 {
		req.StudentID = s.defaultStudent
	}

	res, err := s.svc.SetProgress(r.Context(), req.StudentID, req.TopicID, req.CompletedTasks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{Success: true, Result: res})
}

func validateUpdate(body []byte) error {
	schema, err := updateSchema()
	if err != nil {
		return fmt.Errorf("compiling update schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.New("invalid JSON body")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid topic id")
		return
	}

	cat := s.svc.Catalog()
	if _, ok := cat.Topic(id); !ok {
		writeError(w, http.StatusNotFound, "Topic not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sections": cat.SectionsFor(id)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	studentID, err := s.studentFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	topics, err := s.svc.FetchAll(r.Context(), studentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="progress-%d.xlsx"`, studentID))
	err = report.Write(w, topics, report.Options{
		StudentID:   studentID,
		Language:    catalog.MatchLanguage(r.Header.Get("Accept-Language")),
		GeneratedAt: s.now(),
	})
	if err != nil {
		slog.Error("export failed", "student_id", studentID, "request_id", RequestID(r.Context()), "error", err)
	}
}

// studentFromRequest resolves the student from the student_id query
// parameter, then the X-Student-Id header, then the configured default.
func (s *Server) studentFromRequest(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("student_id")
	if raw == "" {
		raw = r.Header.Get("X-Student-Id")
	}
	if raw == "" {
		return s.defaultStudent, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid student_id %q", raw)
	}
	return id, nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, progress.ErrTopicNotFound):
		writeError(w, http.StatusNotFound, "Topic not found")
	case errors.Is(err, progress.ErrInvalidCount), errors.Is(err, progress.ErrInvalidStudent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("progress request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
