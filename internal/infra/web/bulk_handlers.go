package web

import (
	"net/http"

	"thewell-curation/internal/infra/metrics"
	"thewell-curation/internal/usecase"
)

type bulkRequest struct {
	DocumentIDs []string `json:"documentIds"`
	Actor       string   `json:"actor"`

	Notes      string   `json:"notes"`
	Visibility string   `json:"visibility"`
	Tags       []string `json:"tags"`

	Reason    string `json:"reason"`
	Permanent bool   `json:"permanent"`

	Flag     string `json:"flag"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`

	AssignTo string `json:"assignTo"`
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request, operation string,
	run func(req bulkRequest, actor string) (*usecase.BulkOutcome, error)) {

	var req bulkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcome, err := run(req, actorOrDefault(req.Actor))
	if err != nil {
		// Batch-level validation failure: nothing was processed.
		writeError(w, err)
		return
	}

	metrics.ObserveBulk(operation, outcome.Summary.Successful, outcome.Summary.Failed)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": outcome.Results,
		"errors":  outcome.Errors,
		"summary": outcome.Summary,
	})
}

func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "approve", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		return s.bulkUC.BulkApprove(r.Context(), req.DocumentIDs, actor, usecase.ApproveOptions{
			Notes:      req.Notes,
			Visibility: req.Visibility,
			Tags:       req.Tags,
		})
	})
}

func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "reject", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		return s.bulkUC.BulkReject(r.Context(), req.DocumentIDs, actor, usecase.RejectOptions{
			Reason:    req.Reason,
			Notes:     req.Notes,
			Permanent: req.Permanent,
		})
	})
}

func (s *Server) handleBulkStartReview(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "start-review", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		return s.bulkUC.BulkStartReview(r.Context(), req.DocumentIDs, actor, usecase.StartReviewOptions{
			Notes:    req.Notes,
			Priority: req.Priority,
		})
	})
}

func (s *Server) handleBulkFlag(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "flag", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		flagType := req.Type
		if flagType == "" {
			flagType = req.Flag
		}
		return s.bulkUC.BulkFlag(r.Context(), req.DocumentIDs, actor, usecase.FlagOptions{
			Type:     flagType,
			Reason:   req.Reason,
			Priority: req.Priority,
		})
	})
}

func (s *Server) handleBulkAssign(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "assign", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		return s.bulkUC.BulkAssign(r.Context(), req.DocumentIDs, actor, req.AssignTo)
	})
}

func (s *Server) handleBulkAddTags(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "add-tags", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		return s.bulkUC.BulkAddTags(r.Context(), req.DocumentIDs, actor, req.Tags)
	})
}

func (s *Server) handleBulkRemoveTags(w http.ResponseWriter, r *http.Request) {
	s.handleBulk(w, r, "remove-tags", func(req bulkRequest, actor string) (*usecase.BulkOutcome, error) {
		return s.bulkUC.BulkRemoveTags(r.Context(), req.DocumentIDs, actor, req.Tags)
	})
}
