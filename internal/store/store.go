package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hyperengineering/syncplane/internal/types"
)

// Store defines the interface contract for all job, state and connection
// persistence operations.
type Store interface {
	CreateJob(ctx context.Context, scope string, cfg types.JobConfig) (*types.Job, error)
	GetJob(ctx context.Context, jobID int64) (*types.Job, error)
	CountJobs(ctx context.Context) (int64, error)
	CreateAttempt(ctx context.Context, jobID int64, logPath string) (int, error)
	FailAttempt(ctx context.Context, jobID int64, attemptNumber int) error
	SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int) error
	WriteOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error
	WriteAttemptFailureSummary(ctx context.Context, jobID int64, attemptNumber int, summary *types.AttemptFailureSummary) error
	WriteAttemptSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.AttemptSyncConfig) error
	GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error)
	GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.SyncStats, error)
	GetStreamStats(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamSyncStats, error)
	WriteStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) error

	GetCurrentState(ctx context.Context, connectionID uuid.UUID) (*types.StateWrapper, error)
	WriteState(ctx context.Context, connectionID uuid.UUID, state types.StateWrapper) error
	BulkDelete(ctx context.Context, connectionID uuid.UUID, streams types.StreamSet) error

	UpdateGenerationForStreams(ctx context.Context, connectionID uuid.UUID, jobID int64, refreshes []types.StreamRefresh, streams types.StreamSet) error
	GetCurrentGenerations(ctx context.Context, connectionID uuid.UUID) ([]types.StreamGeneration, error)

	UpsertStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) error
	GetStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamAttemptMetadata, error)

	CreateDestinationDefinition(ctx context.Context, def types.DestinationDefinition) (*types.DestinationDefinition, error)
	CreateDestination(ctx context.Context, dest types.Destination) (*types.Destination, error)
	CreateConnection(ctx context.Context, conn types.Connection) (*types.Connection, error)
	SetVersionOverride(ctx context.Context, override types.VersionOverride) error
	GetConnection(ctx context.Context, connectionID uuid.UUID) (*types.Connection, error)
	GetDestination(ctx context.Context, destinationID uuid.UUID) (*types.Destination, error)
	GetDestinationVersion(ctx context.Context, definitionID, workspaceID uuid.UUID, destinationID *uuid.UUID) (*types.DestinationVersion, error)

	// GenerateSnapshot writes a consistent copy of the database to path.
	GenerateSnapshot(ctx context.Context, path string) error

	Close() error
}
