package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CreateJobRequest is the body of POST /api/v1/jobs
type CreateJobRequest struct {
	Scope      string          `json:"scope"`
	ConfigType ConfigType      `json:"config_type"`
	Config     json.RawMessage `json:"config"`
}

// CreateAttemptResponse is the body returned by POST /api/v1/jobs/{job_id}/attempts
type CreateAttemptResponse struct {
	JobID         int64 `json:"job_id"`
	AttemptNumber int   `json:"attempt_number"`
}

// FailAttemptRequest carries the raw failure summary and sync output of a
// failed attempt. Either may be omitted or null.
type FailAttemptRequest struct {
	FailureSummary     json.RawMessage `json:"failure_summary,omitempty"`
	StandardSyncOutput json.RawMessage `json:"standard_sync_output,omitempty"`
}

// SucceedAttemptRequest carries the raw sync output of a succeeded attempt.
type SucceedAttemptRequest struct {
	StandardSyncOutput json.RawMessage `json:"standard_sync_output,omitempty"`
}

// SaveStatsRequest is the body of POST .../attempts/{n}/stats
type SaveStatsRequest struct {
	ConnectionID uuid.UUID         `json:"connection_id"`
	Stats        SyncStats         `json:"stats"`
	StreamStats  []StreamSyncStats `json:"stream_stats,omitempty"`
}

// SaveSyncConfigRequest is the body of POST .../attempts/{n}/sync_config
type SaveSyncConfigRequest struct {
	SyncConfig SyncConfigInput `json:"sync_config"`
}

// SaveStreamMetadataRequest is the body of POST .../attempts/{n}/stream_metadata
type SaveStreamMetadataRequest struct {
	StreamMetadata []StreamAttemptMetadata `json:"stream_metadata"`
}

// InternalOperationResult reports whether a best-effort write succeeded.
type InternalOperationResult struct {
	Succeeded bool `json:"succeeded"`
}
