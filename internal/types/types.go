package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusIncomplete JobStatus = "incomplete"
	JobStatusFailed     JobStatus = "failed"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further attempts may be created for the job.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusFailed, JobStatusSucceeded, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// AttemptStatus represents the lifecycle state of a single attempt
type AttemptStatus string

const (
	AttemptStatusRunning   AttemptStatus = "running"
	AttemptStatusFailed    AttemptStatus = "failed"
	AttemptStatusSucceeded AttemptStatus = "succeeded"
)

// Job is a unit of work scoped to a connection. Attempts are appended by the
// store over time; the rest of the record is fixed once created.
type Job struct {
	ID         int64      `json:"id"`
	ConfigType ConfigType `json:"config_type"`
	Scope      string     `json:"scope"`
	Config     JobConfig  `json:"-"`
	Status     JobStatus  `json:"status"`
	Attempts   []Attempt  `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// AttemptsCount returns the number of attempts recorded for the job.
func (j *Job) AttemptsCount() int {
	return len(j.Attempts)
}

// HasRunningAttempt reports whether any attempt is still running.
func (j *Job) HasRunningAttempt() bool {
	for _, a := range j.Attempts {
		if a.Status == AttemptStatusRunning {
			return true
		}
	}
	return false
}

// ConnectionID parses the job scope as a connection id.
func (j *Job) ConnectionID() (uuid.UUID, error) {
	id, err := uuid.Parse(j.Scope)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job %d scope %q is not a connection id: %w", j.ID, j.Scope, err)
	}
	return id, nil
}

// LastAttempt returns the most recent attempt, or nil when none exist.
func (j *Job) LastAttempt() *Attempt {
	if len(j.Attempts) == 0 {
		return nil
	}
	return &j.Attempts[len(j.Attempts)-1]
}

// MarshalJSON writes the config variant under "config" and ensures attempts
// marshal as [] not null.
func (j Job) MarshalJSON() ([]byte, error) {
	type Alias Job
	out := struct {
		Alias
		Config json.RawMessage `json:"config,omitempty"`
	}{Alias: Alias(j)}
	if out.Attempts == nil {
		out.Attempts = []Attempt{}
	}
	if j.Config != nil {
		t, data, err := MarshalJobConfig(j.Config)
		if err != nil {
			return nil, err
		}
		out.ConfigType = t
		out.Config = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the config variant selected by config_type.
func (j *Job) UnmarshalJSON(data []byte) error {
	type Alias Job
	in := struct {
		*Alias
		Config json.RawMessage `json:"config,omitempty"`
	}{Alias: (*Alias)(j)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Config) == 0 || string(in.Config) == "null" {
		return nil
	}
	cfg, err := UnmarshalJobConfig(j.ConfigType, in.Config)
	if err != nil {
		return err
	}
	j.Config = cfg
	return nil
}

// Attempt is one execution try of a job
type Attempt struct {
	JobID          int64                  `json:"job_id"`
	AttemptNumber  int                    `json:"attempt_number"`
	Status         AttemptStatus          `json:"status"`
	LogPath        string                 `json:"log_path"`
	Output         *JobOutput             `json:"output,omitempty"`
	FailureSummary *AttemptFailureSummary `json:"failure_summary,omitempty"`
	SyncConfig     *AttemptSyncConfig     `json:"sync_config,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	EndedAt        *time.Time             `json:"ended_at,omitempty"`
}

// JobOutput is the persisted output of an attempt
type JobOutput struct {
	Sync *StandardSyncOutput `json:"sync,omitempty"`
}

// ReplicationStatus is the terminal status reported by a sync
type ReplicationStatus string

const (
	ReplicationCompleted ReplicationStatus = "completed"
	ReplicationFailed    ReplicationStatus = "failed"
	ReplicationCancelled ReplicationStatus = "cancelled"
)

// StandardSyncOutput is the output a sync reports when an attempt ends.
type StandardSyncOutput struct {
	StandardSyncSummary *StandardSyncSummary `json:"standard_sync_summary,omitempty"`
	State               *StateWrapper        `json:"state,omitempty"`
	Failures            []FailureReason      `json:"failures,omitempty"`
}

// StandardSyncSummary carries the replication status and counters of a sync.
type StandardSyncSummary struct {
	Status      ReplicationStatus `json:"status"`
	StartTime   int64             `json:"start_time,omitempty"`
	EndTime     int64             `json:"end_time,omitempty"`
	TotalStats  *SyncStats        `json:"total_stats,omitempty"`
	StreamStats []StreamSyncStats `json:"stream_stats,omitempty"`
}

// FailureOrigin identifies which component caused a failure
type FailureOrigin string

const (
	FailureOriginSource        FailureOrigin = "source"
	FailureOriginDestination   FailureOrigin = "destination"
	FailureOriginReplication   FailureOrigin = "replication"
	FailureOriginPersistence   FailureOrigin = "persistence"
	FailureOriginNormalization FailureOrigin = "normalization"
	FailureOriginDBT           FailureOrigin = "dbt"
	FailureOriginPlatform      FailureOrigin = "platform"
	FailureOriginUnknown       FailureOrigin = "unknown"
)

var validFailureOrigins = map[FailureOrigin]bool{
	FailureOriginSource:        true,
	FailureOriginDestination:   true,
	FailureOriginReplication:   true,
	FailureOriginPersistence:   true,
	FailureOriginNormalization: true,
	FailureOriginDBT:           true,
	FailureOriginPlatform:      true,
	FailureOriginUnknown:       true,
}

// UnmarshalJSON rejects origins outside the known set.
func (o *FailureOrigin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !validFailureOrigins[FailureOrigin(s)] {
		return fmt.Errorf("unknown failure origin %q", s)
	}
	*o = FailureOrigin(s)
	return nil
}

// FailureType classifies a failure independently of its origin
type FailureType string

const (
	FailureTypeConfigError        FailureType = "config_error"
	FailureTypeSystemError        FailureType = "system_error"
	FailureTypeManualCancel       FailureType = "manual_cancellation"
	FailureTypeRefreshSchema      FailureType = "refresh_schema"
	FailureTypeHeartbeatTimeout   FailureType = "heartbeat_timeout"
	FailureTypeDestinationTimeout FailureType = "destination_timeout"
	FailureTypeTransientError     FailureType = "transient_error"
)

// FailureReason is a single typed failure attached to an attempt
type FailureReason struct {
	FailureOrigin    FailureOrigin     `json:"failure_origin,omitempty"`
	FailureType      FailureType       `json:"failure_type,omitempty"`
	InternalMessage  string            `json:"internal_message,omitempty"`
	ExternalMessage  string            `json:"external_message,omitempty"`
	StackTrace       string            `json:"stacktrace,omitempty"`
	Retryable        *bool             `json:"retryable,omitempty"`
	Timestamp        int64             `json:"timestamp,omitempty"`
	StreamDescriptor *StreamDescriptor `json:"stream_descriptor,omitempty"`
}

// AttemptFailureSummary is attached at most once to a failed attempt.
type AttemptFailureSummary struct {
	Failures       []FailureReason `json:"failures"`
	PartialSuccess *bool           `json:"partial_success,omitempty"`
}

// MarshalJSON ensures nil failures marshal as [] not null.
func (s AttemptFailureSummary) MarshalJSON() ([]byte, error) {
	if s.Failures == nil {
		s.Failures = []FailureReason{}
	}
	type Alias AttemptFailureSummary
	return json.Marshal(Alias(s))
}

// AttemptSyncConfig is the per-attempt snapshot of connector configuration
// and the replication state applicable at attempt start.
type AttemptSyncConfig struct {
	SourceConfiguration      json.RawMessage `json:"source_configuration,omitempty"`
	DestinationConfiguration json.RawMessage `json:"destination_configuration,omitempty"`
	State                    *StateWrapper   `json:"state,omitempty"`
}

// StreamAttemptMetadata records how a stream behaved during one attempt.
type StreamAttemptMetadata struct {
	StreamName      string  `json:"stream_name"`
	StreamNamespace *string `json:"stream_namespace,omitempty"`
	WasBackfilled   bool    `json:"was_backfilled"`
	WasResumed      bool    `json:"was_resumed"`
}

// Descriptor returns the stream identity of the metadata entry.
func (m StreamAttemptMetadata) Descriptor() StreamDescriptor {
	return StreamDescriptor{Name: m.StreamName, Namespace: m.StreamNamespace}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	JobCount int64  `json:"job_count"`
}
