package api

import (
	"net/http"

	"github.com/hyperengineering/syncplane/internal/types"
	"github.com/hyperengineering/syncplane/internal/validation"
)

// CreateAttempt handles POST /api/v1/jobs/{job_id}/attempts
func (h *Handler) CreateAttempt(w http.ResponseWriter, r *http.Request) {
	jobID, err := JobIDFromContext(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}

	n, err := h.attempts.CreateNewAttemptNumber(r.Context(), jobID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.CreateAttemptResponse{JobID: jobID, AttemptNumber: n})
}

// GetAttempt handles GET /api/v1/jobs/{job_id}/attempts/{attempt_number}
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	a, err := h.attempts.GetAttemptForJob(r.Context(), jobID, n)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetAttemptStats handles GET /api/v1/jobs/{job_id}/attempts/{attempt_number}/stats
func (h *Handler) GetAttemptStats(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	stats, err := h.attempts.GetAttemptCombinedStats(r.Context(), jobID, n)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetAttemptStreamStats handles GET .../attempts/{attempt_number}/stream_stats
func (h *Handler) GetAttemptStreamStats(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	stats, err := h.registry.GetStreamStats(r.Context(), jobID, n)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if stats == nil {
		stats = []types.StreamSyncStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// FailAttempt handles POST .../attempts/{attempt_number}/fail
func (h *Handler) FailAttempt(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	var req types.FailAttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.attempts.FailAttempt(r.Context(), n, jobID, req.FailureSummary, req.StandardSyncOutput); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SucceedAttempt handles POST .../attempts/{attempt_number}/succeed
func (h *Handler) SucceedAttempt(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	var req types.SucceedAttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.attempts.SucceedAttempt(r.Context(), jobID, n, req.StandardSyncOutput); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveStats handles POST .../attempts/{attempt_number}/stats
func (h *Handler) SaveStats(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	var req types.SaveStatsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateSaveStatsRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	ok := h.attempts.SaveStats(r.Context(), jobID, n, req.ConnectionID, req.Stats, req.StreamStats)
	writeJSON(w, http.StatusOK, types.InternalOperationResult{Succeeded: ok})
}

// SaveSyncConfig handles POST .../attempts/{attempt_number}/sync_config
func (h *Handler) SaveSyncConfig(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	var req types.SaveSyncConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ok := h.attempts.SaveSyncConfig(r.Context(), jobID, n, req.SyncConfig)
	writeJSON(w, http.StatusOK, types.InternalOperationResult{Succeeded: ok})
}

// SaveStreamMetadata handles POST .../attempts/{attempt_number}/stream_metadata
func (h *Handler) SaveStreamMetadata(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	var req types.SaveStreamMetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateSaveStreamMetadataRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	ok := h.attempts.SaveStreamMetadata(r.Context(), jobID, n, req.StreamMetadata)
	writeJSON(w, http.StatusOK, types.InternalOperationResult{Succeeded: ok})
}

// GetStreamMetadata handles GET .../attempts/{attempt_number}/stream_metadata
func (h *Handler) GetStreamMetadata(w http.ResponseWriter, r *http.Request) {
	jobID, n := mustJobAndAttempt(r.Context())

	metadata, err := h.registry.GetStreamAttemptMetadata(r.Context(), jobID, n)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if metadata == nil {
		metadata = []types.StreamAttemptMetadata{}
	}
	writeJSON(w, http.StatusOK, metadata)
}
