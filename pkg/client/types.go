package client

import (
	"encoding/json"
	"time"
)

// Config type names accepted by CreateJob.
const (
	ConfigTypeSync            = "sync"
	ConfigTypeClear           = "clear"
	ConfigTypeRefresh         = "refresh"
	ConfigTypeCheckConnection = "check_connection"
)

// Job is a syncplane job as returned by the API.
type Job struct {
	ID         int64           `json:"id"`
	ConfigType string          `json:"config_type"`
	Scope      string          `json:"scope"`
	Config     json.RawMessage `json:"config,omitempty"`
	Status     string          `json:"status"`
	Attempts   []Attempt       `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Attempt is one execution try of a job.
type Attempt struct {
	JobID          int64           `json:"job_id"`
	AttemptNumber  int             `json:"attempt_number"`
	Status         string          `json:"status"`
	LogPath        string          `json:"log_path"`
	Output         json.RawMessage `json:"output,omitempty"`
	FailureSummary json.RawMessage `json:"failure_summary,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
}

// AttemptStats are the combined counters of an attempt.
type AttemptStats struct {
	RecordsEmitted   int64 `json:"records_emitted"`
	BytesEmitted     int64 `json:"bytes_emitted"`
	RecordsCommitted int64 `json:"records_committed"`
	BytesCommitted   int64 `json:"bytes_committed"`
	EstimatedRecords int64 `json:"estimated_records"`
	EstimatedBytes   int64 `json:"estimated_bytes"`
}

// SyncStats are the counters reported by a running sync.
type SyncStats struct {
	RecordsEmitted   int64 `json:"records_emitted"`
	BytesEmitted     int64 `json:"bytes_emitted"`
	RecordsCommitted int64 `json:"records_committed"`
	BytesCommitted   int64 `json:"bytes_committed"`
	RecordsRejected  int64 `json:"records_rejected"`
	EstimatedRecords int64 `json:"estimated_records"`
	EstimatedBytes   int64 `json:"estimated_bytes"`
}

// StreamSyncStats are the counters of one stream.
type StreamSyncStats struct {
	StreamName      string    `json:"stream_name"`
	StreamNamespace *string   `json:"stream_namespace,omitempty"`
	Stats           SyncStats `json:"stats"`
}

// StreamMetadata records how a stream was processed within an attempt.
type StreamMetadata struct {
	StreamName      string  `json:"stream_name"`
	StreamNamespace *string `json:"stream_namespace,omitempty"`
	WasBackfilled   bool    `json:"was_backfilled"`
	WasResumed      bool    `json:"was_resumed"`
}

// Health is the server health report.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	JobCount int64  `json:"job_count"`
}

type createJobRequest struct {
	Scope      string          `json:"scope"`
	ConfigType string          `json:"config_type"`
	Config     json.RawMessage `json:"config"`
}

type createAttemptResponse struct {
	JobID         int64 `json:"job_id"`
	AttemptNumber int   `json:"attempt_number"`
}

type failAttemptRequest struct {
	FailureSummary     json.RawMessage `json:"failure_summary,omitempty"`
	StandardSyncOutput json.RawMessage `json:"standard_sync_output,omitempty"`
}

type succeedAttemptRequest struct {
	StandardSyncOutput json.RawMessage `json:"standard_sync_output,omitempty"`
}

type saveStatsRequest struct {
	ConnectionID string            `json:"connection_id"`
	Stats        SyncStats         `json:"stats"`
	StreamStats  []StreamSyncStats `json:"stream_stats,omitempty"`
}

type saveStreamMetadataRequest struct {
	StreamMetadata []StreamMetadata `json:"stream_metadata"`
}

type operationResult struct {
	Succeeded bool `json:"succeeded"`
}
