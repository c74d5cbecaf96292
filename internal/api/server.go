// Package api wires the HTTP surface: submission, status, history,
// DLQ inspection/retry/resolve, health, and stats, following the
// teacher's chi-router Server shape.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"codereviewsvc/internal/config"
	"codereviewsvc/internal/dlq"
	"codereviewsvc/internal/models"
	"codereviewsvc/internal/ratelimit"
	"codereviewsvc/internal/store"
	"codereviewsvc/internal/submission"
	"codereviewsvc/internal/telemetry"
	"codereviewsvc/pkg/review"
)

// Server wires HTTP handlers for the review-submission API.
type Server struct {
	cfg        config.Config
	submission *submission.Service
	dlq        *dlq.Handler
	limiter    *ratelimit.TokenBucket
	store      store.Store
}

// New constructs the API server.
func New(cfg config.Config, sub *submission.Service, dlqHandler *dlq.Handler, limiter *ratelimit.TokenBucket, st store.Store) *Server {
	return &Server{cfg: cfg, submission: sub, dlq: dlqHandler, limiter: limiter, store: st}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/reviews/submit", s.handleSubmit)
	r.Get("/reviews/status/{job_id}", s.handleStatus)
	r.Get("/reviews/history", s.handleHistory)

	r.Get("/dlq", s.handleDLQList)
	r.Get("/dlq/stats", s.handleDLQStats)
	r.Get("/dlq/{id}", s.handleDLQGet)
	r.Post("/dlq/{id}/retry", s.handleDLQRetry)
	r.Post("/dlq/{id}/resolve", s.handleDLQResolve)

	return r
}

const maxOwnerIDHeaderBytes = 64

func ownerIDFromRequest(r *http.Request) int64 {
	v := r.Header.Get("X-Owner-ID")
	if v == "" {
		v = r.URL.Query().Get("owner")
	}
	if v == "" || len(v) > maxOwnerIDHeaderBytes {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// submitRequest is the documented submission body: {file_name,
// file_content, owner?}.
type submitRequest struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	Owner       int64  `json:"owner"`
}

// submitResponse is the documented submission response:
// {job_id, status, cache_hit, result?, message?}.
type submitResponse struct {
	JobID    string         `json:"job_id"`
	Status   string         `json:"status"`
	CacheHit bool           `json:"cache_hit"`
	Result   *review.Report `json:"result,omitempty"`
	Message  string         `json:"message,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	if s.limiter != nil {
		limKey := fmt.Sprintf("rl:submit:%d", req.Owner)
		allowed, _, err := s.limiter.Allow(r.Context(), limKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	result, err := s.submission.Submit(r.Context(), req.FileName, []byte(req.FileContent), req.Owner)
	if err != nil {
		if errors.Is(err, submission.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	telemetry.SubmissionsTotal.Inc()
	if result.CacheHit {
		telemetry.CacheHitsTotal.Inc()
	} else {
		telemetry.CacheMissesTotal.Inc()
	}

	resp := submitResponse{
		JobID:    result.JobID,
		Status:   string(result.Status),
		CacheHit: result.CacheHit,
	}
	if result.CacheHit {
		resp.Result = result.Result
		resp.Message = "served from cache"
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := s.submission.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFromRequest(r)
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	summaries, err := s.submission.History(r.Context(), ownerID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries})
}

func (s *Server) handleDLQList(w http.ResponseWriter, r *http.Request) {
	var resolved *bool
	if v := r.URL.Query().Get("resolved"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			resolved = &b
		}
	}
	entries, err := s.dlq.List(r.Context(), resolved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleDLQStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dlq.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDLQGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.dlq.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dlq entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDLQRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.dlq.Retry(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dlq entry not found")
			return
		}
		if errors.Is(err, dlq.ErrAlreadyResolved) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retried"})
}

type resolveRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleDLQResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.dlq.Resolve(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dlq entry not found")
			return
		}
		if errors.Is(err, dlq.ErrAlreadyResolved) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	completed, _ := s.store.CountByStatusSince(r.Context(), models.StatusComplete, since)
	retrying, _ := s.store.CountByStatusSince(r.Context(), models.StatusRetrying, since)
	dead, _ := s.store.CountByStatusSince(r.Context(), models.StatusDLQ, since)

	writeJSON(w, http.StatusOK, map[string]any{
		"completed_last_24h":   completed,
		"retrying_last_24h":    retrying,
		"dead_letter_last_24h": dead,
	})
}

// errorResponse is the documented error shape: {error: string}.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
