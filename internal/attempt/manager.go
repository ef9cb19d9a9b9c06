// Package attempt manages the lifecycle of job attempts: creating numbered
// attempts, clearing stream state and starting new generations ahead of a
// run, recording failures, and persisting per-attempt stats, sync config
// and stream metadata.
package attempt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/hyperengineering/syncplane/internal/archive"
	"github.com/hyperengineering/syncplane/internal/events"
	"github.com/hyperengineering/syncplane/internal/featureflag"
	"github.com/hyperengineering/syncplane/internal/store"
	"github.com/hyperengineering/syncplane/internal/types"
)

// Options wires the Manager to its collaborators. Publisher, Archiver and
// Flags are optional; the others are required.
type Options struct {
	Jobs          JobStore
	States        StreamStateStore
	Generations   GenerationTracker
	Connections   ConnectionLookup
	Versions      DestinationCapabilityResolver
	Metadata      StreamMetadataStore
	Flags         featureflag.Client
	Publisher     events.Publisher
	Archiver      archive.Archiver
	WorkspaceRoot string
}

// Manager runs attempt lifecycle operations.
type Manager struct {
	jobs          JobStore
	states        StreamStateStore
	generations   GenerationTracker
	connections   ConnectionLookup
	versions      DestinationCapabilityResolver
	metadata      StreamMetadataStore
	flags         featureflag.Client
	publisher     events.Publisher
	archiver      archive.Archiver
	workspaceRoot string
}

// NewManager creates a Manager from opts.
func NewManager(opts Options) *Manager {
	m := &Manager{
		jobs:          opts.Jobs,
		states:        opts.States,
		generations:   opts.Generations,
		connections:   opts.Connections,
		versions:      opts.Versions,
		metadata:      opts.Metadata,
		flags:         opts.Flags,
		publisher:     opts.Publisher,
		archiver:      opts.Archiver,
		workspaceRoot: opts.WorkspaceRoot,
	}
	if m.flags == nil {
		m.flags = featureflag.NewStaticClient(nil)
	}
	if m.publisher == nil {
		m.publisher = events.NoopPublisher{}
	}
	if m.archiver == nil {
		m.archiver = archive.NoopArchiver{}
	}
	return m
}

// CreateNewAttemptNumber creates the next attempt of jobID and returns its
// number. Before returning, the state of the streams the attempt will
// rewrite is cleared and those streams start a new generation.
func (m *Manager) CreateNewAttemptNumber(ctx context.Context, jobID int64) (int, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("%w: could not find job %d: %w", ErrNotProcessable, jobID, err)
	}

	logPath := filepath.Join(m.workspaceRoot, strconv.FormatInt(jobID, 10),
		strconv.Itoa(job.AttemptsCount()), "logs.log")

	attemptNumber, err := m.jobs.CreateAttempt(ctx, jobID, logPath)
	if err != nil {
		return 0, fmt.Errorf("create attempt for job %d: %w", jobID, err)
	}

	slog.Info("attempt created",
		"component", "attempt",
		"action", "create",
		"job_id", jobID,
		"attempt_number", attemptNumber,
		"log_path", logPath,
	)

	cleared, err := m.prepareStreams(ctx, job, attemptNumber)
	if err != nil {
		return 0, err
	}

	e := events.New(events.AttemptCreated, jobID, attemptNumber)
	e.ConnectionID = job.Scope
	e.ConfigType = string(job.ConfigType)
	e.StreamsCleared = len(cleared)
	m.publish(ctx, e)

	return attemptNumber, nil
}

// prepareStreams bumps the generation of and clears the state of the streams
// selected for attempt attemptNumber of job. It returns the selected set.
func (m *Manager) prepareStreams(ctx context.Context, job *types.Job, attemptNumber int) (types.StreamSet, error) {
	if _, ok := job.Config.(types.CheckConnectionConfig); ok {
		return nil, nil
	}

	connectionID, err := job.ConnectionID()
	if err != nil {
		return nil, err
	}

	supportsRefreshes, err := m.supportsRefreshes(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	if attemptNumber == 0 {
		streams, err := FirstAttemptStreams(job.ID, job.Config, supportsRefreshes)
		if err != nil {
			return nil, err
		}
		if err := m.generations.UpdateGenerationForStreams(ctx, connectionID, job.ID, nil, streams); err != nil {
			return nil, fmt.Errorf("update stream generations: %w", err)
		}
		if err := m.states.BulkDelete(ctx, connectionID, streams); err != nil {
			return nil, fmt.Errorf("clear stream state: %w", err)
		}
		m.logCleared(job.ID, attemptNumber, connectionID, streams)
		return streams, nil
	}

	excludeResumable := m.flags.BoolVariation(featureflag.EnableResumableFullRefresh,
		featureflag.Connection(connectionID)) && supportsRefreshes

	var catalog *types.ConfiguredCatalog
	if job.Config != nil {
		catalog = job.Config.Catalog()
	}
	streams, err := FullRefreshStreamsToClear(catalog, job.ID, excludeResumable)
	if err != nil {
		return nil, err
	}
	if err := m.generations.UpdateGenerationForStreams(ctx, connectionID, job.ID, nil, streams); err != nil {
		return nil, fmt.Errorf("update stream generations: %w", err)
	}
	if len(streams) > 0 {
		if err := m.states.BulkDelete(ctx, connectionID, streams); err != nil {
			return nil, fmt.Errorf("clear stream state: %w", err)
		}
	}
	m.logCleared(job.ID, attemptNumber, connectionID, streams)
	return streams, nil
}

func (m *Manager) supportsRefreshes(ctx context.Context, connectionID uuid.UUID) (bool, error) {
	conn, err := m.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return false, fmt.Errorf("get connection %s: %w", connectionID, err)
	}
	dest, err := m.connections.GetDestination(ctx, conn.DestinationID)
	if err != nil {
		return false, fmt.Errorf("get destination %s: %w", conn.DestinationID, err)
	}
	version, err := m.versions.GetDestinationVersion(ctx, dest.DefinitionID, dest.WorkspaceID, &dest.ID)
	if err != nil {
		return false, fmt.Errorf("resolve destination version for %s: %w", dest.ID, err)
	}
	return version.SupportsRefreshes, nil
}

func (m *Manager) logCleared(jobID int64, attemptNumber int, connectionID uuid.UUID, streams types.StreamSet) {
	names := make([]string, 0, len(streams))
	for _, d := range streams.Sorted() {
		names = append(names, d.String())
	}
	slog.Info("stream state cleared",
		"component", "attempt",
		"action", "clear_state",
		"job_id", jobID,
		"attempt_number", attemptNumber,
		"connection_id", connectionID,
		"streams", names,
	)
}

// FailAttempt marks an attempt failed and records its failure summary and
// sync output. Both payloads are raw JSON and may be empty or null. A
// payload that does not decode fails the call before anything is written.
func (m *Manager) FailAttempt(ctx context.Context, attemptNumber int, jobID int64, rawFailureSummary, rawSyncOutput json.RawMessage) error {
	var summary *types.AttemptFailureSummary
	if !isAbsent(rawFailureSummary) {
		summary = &types.AttemptFailureSummary{}
		if err := json.Unmarshal(rawFailureSummary, summary); err != nil {
			return fmt.Errorf("%w: unable to parse failure summary: %v", ErrBadRequest, err)
		}
	}

	var output *types.StandardSyncOutput
	if !isAbsent(rawSyncOutput) {
		output = &types.StandardSyncOutput{}
		if err := json.Unmarshal(rawSyncOutput, output); err != nil {
			return fmt.Errorf("%w: unable to parse sync output: %v", ErrBadRequest, err)
		}
	}

	traceFailures(jobID, attemptNumber, summary)

	if err := m.jobs.FailAttempt(ctx, jobID, attemptNumber); err != nil {
		return fmt.Errorf("fail attempt %d of job %d: %w", attemptNumber, jobID, err)
	}
	if err := m.jobs.WriteAttemptFailureSummary(ctx, jobID, attemptNumber, summary); err != nil {
		return fmt.Errorf("write failure summary: %w", err)
	}
	if output != nil {
		jobOutput := types.JobOutput{Sync: output}
		if err := m.jobs.WriteOutput(ctx, jobID, attemptNumber, jobOutput); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		m.archiveOutput(ctx, jobID, attemptNumber, jobOutput)
	}

	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job %d: %w", jobID, err)
	}

	slog.Info("attempt failed",
		"component", "attempt",
		"action", "fail",
		"job_id", jobID,
		"attempt_number", attemptNumber,
		"job_status", job.Status,
	)

	e := events.New(events.AttemptFailed, jobID, attemptNumber)
	e.ConnectionID = job.Scope
	e.ConfigType = string(job.ConfigType)
	if summary != nil {
		for _, f := range summary.Failures {
			e.FailureOrigins = append(e.FailureOrigins, string(f.FailureOrigin))
		}
	}
	m.publish(ctx, e)
	return nil
}

// SucceedAttempt marks a running attempt and its job succeeded, then
// records the attempt's output. An empty or null output records nothing.
func (m *Manager) SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int, rawSyncOutput json.RawMessage) error {
	var output *types.StandardSyncOutput
	if !isAbsent(rawSyncOutput) {
		output = &types.StandardSyncOutput{}
		if err := json.Unmarshal(rawSyncOutput, output); err != nil {
			return fmt.Errorf("%w: unable to parse sync output: %v", ErrBadRequest, err)
		}
	}

	if err := m.jobs.SucceedAttempt(ctx, jobID, attemptNumber); err != nil {
		return fmt.Errorf("succeed attempt %d of job %d: %w", attemptNumber, jobID, err)
	}
	if output != nil {
		jobOutput := types.JobOutput{Sync: output}
		if err := m.jobs.WriteOutput(ctx, jobID, attemptNumber, jobOutput); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		m.archiveOutput(ctx, jobID, attemptNumber, jobOutput)
	}

	slog.Info("attempt succeeded",
		"component", "attempt",
		"action", "succeed",
		"job_id", jobID,
		"attempt_number", attemptNumber,
	)
	m.publish(ctx, events.New(events.AttemptSucceeded, jobID, attemptNumber))
	return nil
}

// GetAttemptForJob returns attempt attemptNumber of jobID.
func (m *Manager) GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error) {
	a, err := m.jobs.GetAttemptForJob(ctx, jobID, attemptNumber)
	if errors.Is(err, store.ErrNotFound) || (err == nil && a == nil) {
		return nil, fmt.Errorf("%w: could not find attempt %d for job %d", ErrNotFound, attemptNumber, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt %d of job %d: %w", attemptNumber, jobID, err)
	}
	return a, nil
}

// GetAttemptCombinedStats returns the combined stats of an attempt. Stats
// that were recorded as zero are returned, not treated as absent.
func (m *Manager) GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.AttemptStats, error) {
	stats, err := m.jobs.GetAttemptCombinedStats(ctx, jobID, attemptNumber)
	if errors.Is(err, store.ErrNotFound) || (err == nil && stats == nil) {
		return nil, fmt.Errorf("%w: could not find stats for attempt %d of job %d", ErrNotFound, attemptNumber, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get stats for attempt %d of job %d: %w", attemptNumber, jobID, err)
	}
	out := types.AttemptStatsFrom(*stats)
	return &out, nil
}

// SaveStats records the combined and per-stream stats of an attempt and
// reports whether they were written.
func (m *Manager) SaveStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) bool {
	if err := m.jobs.WriteStats(ctx, jobID, attemptNumber, connectionID, totals, perStream); err != nil {
		m.logSaveFailure("save_stats", jobID, attemptNumber, err)
		return false
	}
	return true
}

// SaveSyncConfig records the sync config an attempt runs with and reports
// whether it was written.
func (m *Manager) SaveSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.SyncConfigInput) bool {
	if err := m.jobs.WriteAttemptSyncConfig(ctx, jobID, attemptNumber, cfg.ToInternal()); err != nil {
		m.logSaveFailure("save_sync_config", jobID, attemptNumber, err)
		return false
	}
	return true
}

// SaveStreamMetadata upserts per-stream metadata of an attempt and reports
// whether it was written.
func (m *Manager) SaveStreamMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) bool {
	if err := m.metadata.UpsertStreamAttemptMetadata(ctx, jobID, attemptNumber, metadata); err != nil {
		m.logSaveFailure("save_stream_metadata", jobID, attemptNumber, err)
		return false
	}
	return true
}

func (m *Manager) logSaveFailure(action string, jobID int64, attemptNumber int, err error) {
	slog.Warn("attempt write failed",
		"component", "attempt",
		"action", action,
		"job_id", jobID,
		"attempt_number", attemptNumber,
		"error", err,
	)
}

func (m *Manager) archiveOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) {
	if err := m.archiver.ArchiveOutput(ctx, jobID, attemptNumber, output); err != nil {
		slog.Warn("output archive failed",
			"component", "attempt",
			"action", "archive_output",
			"job_id", jobID,
			"attempt_number", attemptNumber,
			"error", err,
		)
	}
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if err := m.publisher.Publish(ctx, e); err != nil {
		slog.Warn("event publish failed",
			"component", "attempt",
			"action", "publish",
			"event_type", e.Type,
			"job_id", e.JobID,
			"attempt_number", e.AttemptNumber,
			"error", err,
		)
	}
}

// traceFailures logs one line per failure of summary.
func traceFailures(jobID int64, attemptNumber int, summary *types.AttemptFailureSummary) {
	if summary == nil {
		return
	}
	for _, f := range summary.Failures {
		slog.Info("attempt failure",
			"component", "attempt",
			"action", "trace_failure",
			"job_id", jobID,
			"attempt_number", attemptNumber,
			"failure_origin", f.FailureOrigin,
			"failure_type", f.FailureType,
			"external_message", f.ExternalMessage,
		)
	}
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
