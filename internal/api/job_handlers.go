package api

import (
	"log/slog"
	"net/http"

	"github.com/hyperengineering/syncplane/internal/types"
	"github.com/hyperengineering/syncplane/internal/validation"
)

// CreateJob handles POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req types.CreateJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validation.ValidateCreateJobRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	cfg, err := types.UnmarshalJobConfig(req.ConfigType, req.Config)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.registry.CreateJob(r.Context(), req.Scope, cfg)
	if err != nil {
		MapError(w, r, err)
		return
	}

	slog.Info("job created",
		"component", "api",
		"action", "create_job",
		"job_id", job.ID,
		"config_type", job.ConfigType,
		"scope", job.Scope,
	)
	writeJSON(w, http.StatusCreated, job)
}

// GetJob handles GET /api/v1/jobs/{job_id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := JobIDFromContext(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}

	job, err := h.registry.GetJob(r.Context(), jobID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
