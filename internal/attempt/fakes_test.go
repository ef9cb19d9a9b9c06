package attempt

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hyperengineering/syncplane/internal/events"
	"github.com/hyperengineering/syncplane/internal/store"
	"github.com/hyperengineering/syncplane/internal/types"
)

type bumpCall struct {
	connectionID uuid.UUID
	jobID        int64
	streams      types.StreamSet
}

// fakeDeps implements every port of the Manager and records the calls made.
type fakeDeps struct {
	mu sync.Mutex

	job       *types.Job
	getJobErr error

	createErr error
	logPaths  []string

	connection        types.Connection
	destination       types.Destination
	supportsRefreshes bool
	connErr           error
	lookups           int

	bumps   []bumpCall
	deletes []types.StreamSet

	failErr     error
	summaryErr  error
	outputErr   error
	succeedErr  error
	summaries   []*types.AttemptFailureSummary
	outputs     []types.JobOutput
	calls       []string
	attempt     *types.Attempt
	attemptErr  error
	stats       *types.SyncStats
	statsErr    error
	writeErr    error
	syncConfigs []types.AttemptSyncConfig
	metadata    [][]types.StreamAttemptMetadata
	statsWrites []types.SyncStats
}

func newFakeDeps(job *types.Job) *fakeDeps {
	destID := uuid.New()
	return &fakeDeps{
		job:        job,
		connection: types.Connection{DestinationID: destID},
		destination: types.Destination{
			ID:           destID,
			WorkspaceID:  uuid.New(),
			DefinitionID: uuid.New(),
		},
	}
}

func (f *fakeDeps) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeDeps) GetJob(ctx context.Context, jobID int64) (*types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetJob")
	if f.getJobErr != nil {
		return nil, f.getJobErr
	}
	if f.job == nil || f.job.ID != jobID {
		return nil, store.ErrNotFound
	}
	return f.job, nil
}

func (f *fakeDeps) CreateAttempt(ctx context.Context, jobID int64, logPath string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAttempt")
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.logPaths = append(f.logPaths, logPath)
	n := len(f.job.Attempts)
	f.job.Attempts = append(f.job.Attempts, types.Attempt{
		JobID:         jobID,
		AttemptNumber: n,
		Status:        types.AttemptStatusRunning,
		LogPath:       logPath,
	})
	return n, nil
}

func (f *fakeDeps) FailAttempt(ctx context.Context, jobID int64, attemptNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FailAttempt")
	if f.failErr != nil {
		return f.failErr
	}
	if f.job != nil {
		f.job.Status = types.JobStatusIncomplete
	}
	return nil
}

func (f *fakeDeps) SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SucceedAttempt")
	return f.succeedErr
}

func (f *fakeDeps) WriteOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WriteOutput")
	if f.outputErr != nil {
		return f.outputErr
	}
	f.outputs = append(f.outputs, output)
	return nil
}

func (f *fakeDeps) WriteAttemptFailureSummary(ctx context.Context, jobID int64, attemptNumber int, summary *types.AttemptFailureSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WriteAttemptFailureSummary")
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeDeps) WriteAttemptSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.AttemptSyncConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WriteAttemptSyncConfig")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.syncConfigs = append(f.syncConfigs, cfg)
	return nil
}

func (f *fakeDeps) GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error) {
	return f.attempt, f.attemptErr
}

func (f *fakeDeps) GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.SyncStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeDeps) WriteStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WriteStats")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.statsWrites = append(f.statsWrites, totals)
	return nil
}

func (f *fakeDeps) GetCurrentState(ctx context.Context, connectionID uuid.UUID) (*types.StateWrapper, error) {
	return nil, nil
}

func (f *fakeDeps) BulkDelete(ctx context.Context, connectionID uuid.UUID, streams types.StreamSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BulkDelete")
	f.deletes = append(f.deletes, streams)
	return nil
}

func (f *fakeDeps) UpdateGenerationForStreams(ctx context.Context, connectionID uuid.UUID, jobID int64, refreshes []types.StreamRefresh, streams types.StreamSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateGenerationForStreams")
	f.bumps = append(f.bumps, bumpCall{connectionID: connectionID, jobID: jobID, streams: streams})
	return nil
}

func (f *fakeDeps) GetConnection(ctx context.Context, connectionID uuid.UUID) (*types.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.connErr != nil {
		return nil, f.connErr
	}
	c := f.connection
	c.ID = connectionID
	return &c, nil
}

func (f *fakeDeps) GetDestination(ctx context.Context, destinationID uuid.UUID) (*types.Destination, error) {
	if destinationID != f.destination.ID {
		return nil, store.ErrNotFound
	}
	d := f.destination
	return &d, nil
}

func (f *fakeDeps) GetDestinationVersion(ctx context.Context, definitionID, workspaceID uuid.UUID, destinationID *uuid.UUID) (*types.DestinationVersion, error) {
	if definitionID != f.destination.DefinitionID {
		return nil, store.ErrNotFound
	}
	return &types.DestinationVersion{DefinitionID: definitionID, SupportsRefreshes: f.supportsRefreshes}, nil
}

func (f *fakeDeps) UpsertStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertStreamAttemptMetadata")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.metadata = append(f.metadata, metadata)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeArchiver struct {
	outputs []types.JobOutput
	err     error
}

func (a *fakeArchiver) ArchiveOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error {
	a.outputs = append(a.outputs, output)
	return a.err
}

func (a *fakeArchiver) UploadSnapshot(ctx context.Context, filePath string) error {
	return errors.New("not supported")
}
