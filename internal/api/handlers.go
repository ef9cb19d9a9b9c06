package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hyperengineering/syncplane/internal/types"
)

// AttemptManager runs attempt lifecycle operations.
type AttemptManager interface {
	CreateNewAttemptNumber(ctx context.Context, jobID int64) (int, error)
	FailAttempt(ctx context.Context, attemptNumber int, jobID int64, rawFailureSummary, rawSyncOutput json.RawMessage) error
	SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int, rawSyncOutput json.RawMessage) error
	GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error)
	GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.AttemptStats, error)
	SaveStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) bool
	SaveSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.SyncConfigInput) bool
	SaveStreamMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) bool
}

// Registry creates and reads jobs and the connections they run on.
type Registry interface {
	CreateJob(ctx context.Context, scope string, cfg types.JobConfig) (*types.Job, error)
	GetJob(ctx context.Context, jobID int64) (*types.Job, error)
	CountJobs(ctx context.Context) (int64, error)
	GetStreamStats(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamSyncStats, error)
	GetStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamAttemptMetadata, error)

	CreateDestinationDefinition(ctx context.Context, def types.DestinationDefinition) (*types.DestinationDefinition, error)
	CreateDestination(ctx context.Context, dest types.Destination) (*types.Destination, error)
	CreateConnection(ctx context.Context, conn types.Connection) (*types.Connection, error)
	SetVersionOverride(ctx context.Context, override types.VersionOverride) error
	GetConnection(ctx context.Context, connectionID uuid.UUID) (*types.Connection, error)

	GetCurrentState(ctx context.Context, connectionID uuid.UUID) (*types.StateWrapper, error)
	WriteState(ctx context.Context, connectionID uuid.UUID, state types.StateWrapper) error
	GetCurrentGenerations(ctx context.Context, connectionID uuid.UUID) ([]types.StreamGeneration, error)
}

// Handler implements the API handlers
type Handler struct {
	registry Registry
	attempts AttemptManager
	apiKey   string
	version  string
}

// NewHandler creates a new Handler
func NewHandler(registry Registry, attempts AttemptManager, apiKey, version string) *Handler {
	return &Handler{
		registry: registry,
		attempts: attempts,
		apiKey:   apiKey,
		version:  version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.CountJobs(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		JobCount: count,
	})
}

// decodeJSON decodes the request body into v, writing a 400 problem and
// returning false when the body is not valid JSON for v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
