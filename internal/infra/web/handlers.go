package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/infra/metrics"
	"thewell-curation/internal/usecase"
)

// The JSON surface follows the upstream pipeline's camelCase contract.

type startReviewRequest struct {
	Actor    string `json:"actor"`
	Notes    string `json:"notes"`
	Priority int    `json:"priority"`
}

type approveRequest struct {
	Actor      string   `json:"actor"`
	Notes      string   `json:"notes"`
	Visibility string   `json:"visibility"`
	Tags       []string `json:"tags"`
}

type rejectRequest struct {
	Actor     string `json:"actor"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
	Permanent bool   `json:"permanent"`
}

type flagRequest struct {
	Actor    string `json:"actor"`
	Flag     string `json:"flag"`
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Priority int    `json:"priority"`
}

type assignRequest struct {
	Actor    string `json:"actor"`
	AssignTo string `json:"assignTo"`
}

type tagsRequest struct {
	Actor string   `json:"actor"`
	Tags  []string `json:"tags"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]any{"success": false, "error": err.Error()})
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

func actorOrDefault(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.reviewUC.PendingDocuments(r.Context(), offset, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list pending documents failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"documents": docs,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, trail, err := s.reviewUC.Document(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"document":   job,
		"auditTrail": trail,
	})
}

func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	var req startReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.reviewUC.StartReview(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), usecase.StartReviewOptions{
		Notes:    req.Notes,
		Priority: req.Priority,
	})
	metrics.IncReviewAction("start-review", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.reviewUC.Approve(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), usecase.ApproveOptions{
		Notes:      req.Notes,
		Visibility: req.Visibility,
		Tags:       req.Tags,
	})
	metrics.IncReviewAction("approve", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.reviewUC.Reject(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), usecase.RejectOptions{
		Reason:    req.Reason,
		Notes:     req.Notes,
		Permanent: req.Permanent,
	})
	metrics.IncReviewAction("reject", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	// The upstream contract accepts either "flag" or "type".
	flagType := req.Type
	if flagType == "" {
		flagType = req.Flag
	}

	job, err := s.reviewUC.Flag(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), usecase.FlagOptions{
		Type:     flagType,
		Reason:   req.Reason,
		Priority: req.Priority,
	})
	metrics.IncReviewAction("flag", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.reviewUC.Assign(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), req.AssignTo)
	metrics.IncReviewAction("assign", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.reviewUC.AddTags(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), req.Tags)
	metrics.IncReviewAction("add-tags", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleRemoveTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.reviewUC.RemoveTags(r.Context(), chi.URLParam(r, "id"), actorOrDefault(req.Actor), req.Tags)
	metrics.IncReviewAction("remove-tags", outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": job})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	timeframe := parseTimeframe(r.URL.Query().Get("timeframe"))
	stats, err := s.statsUC.ReviewStats(r.Context(), timeframe)
	if err != nil {
		s.log.Error().Err(err).Msg("review stats failed")
		writeError(w, err)
		return
	}

	metrics.SetQueueDepth("document-review", "waiting", stats.Pending)
	metrics.SetQueueDepth("document-review", "active", stats.InReview)
	metrics.SetQueueDepth("document-review", "completed", stats.CompletedTotal)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

func (s *Server) handleWorkflowMetrics(w http.ResponseWriter, r *http.Request) {
	timeframe := parseTimeframe(r.URL.Query().Get("timeframe"))
	m, err := s.statsUC.WorkflowMetrics(r.Context(), timeframe)
	if err != nil {
		s.log.Error().Err(err).Msg("workflow metrics failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "metrics": m})
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query()["ids"])
	statuses, err := s.statsUC.WorkflowStatus(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "statuses": statuses})
}

// parseTimeframe accepts Go duration strings; anything unparseable falls back
// to 24h.
func parseTimeframe(raw string) time.Duration {
	if raw == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// splitIDs flattens repeated ?ids= params and comma-separated lists.
func splitIDs(params []string) []string {
	var out []string
	for _, p := range params {
		for _, id := range strings.Split(p, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
