package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hyperengineering/syncplane/internal/attempt"
	"github.com/hyperengineering/syncplane/internal/store"
	"github.com/hyperengineering/syncplane/internal/types"
)

const testAPIKey = "test-key"

// mockRegistry implements Registry for handler tests.
type mockRegistry struct {
	mu sync.Mutex

	jobs         map[int64]*types.Job
	nextJobID    int64
	countErr     error
	createErr    error
	definitions  []types.DestinationDefinition
	destinations []types.Destination
	connections  map[uuid.UUID]*types.Connection
	overrides    []types.VersionOverride
	states       map[uuid.UUID]*types.StateWrapper
	generations  map[uuid.UUID][]types.StreamGeneration
	streamStats  []types.StreamSyncStats
	metadata     []types.StreamAttemptMetadata
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		jobs:        make(map[int64]*types.Job),
		nextJobID:   1,
		connections: make(map[uuid.UUID]*types.Connection),
		states:      make(map[uuid.UUID]*types.StateWrapper),
		generations: make(map[uuid.UUID][]types.StreamGeneration),
	}
}

func (m *mockRegistry) CreateJob(ctx context.Context, scope string, cfg types.JobConfig) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	job := &types.Job{
		ID:         m.nextJobID,
		Scope:      scope,
		ConfigType: cfg.ConfigType(),
		Config:     cfg,
		Status:     types.JobStatusPending,
	}
	m.jobs[job.ID] = job
	m.nextJobID++
	return job, nil
}

func (m *mockRegistry) GetJob(ctx context.Context, jobID int64) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (m *mockRegistry) CountJobs(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.jobs)), m.countErr
}

func (m *mockRegistry) GetStreamStats(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamSyncStats, error) {
	return m.streamStats, nil
}

func (m *mockRegistry) GetStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamAttemptMetadata, error) {
	return m.metadata, nil
}

func (m *mockRegistry) CreateDestinationDefinition(ctx context.Context, def types.DestinationDefinition) (*types.DestinationDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	m.definitions = append(m.definitions, def)
	return &def, nil
}

func (m *mockRegistry) CreateDestination(ctx context.Context, dest types.Destination) (*types.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dest.ID == uuid.Nil {
		dest.ID = uuid.New()
	}
	m.destinations = append(m.destinations, dest)
	return &dest, nil
}

func (m *mockRegistry) CreateConnection(ctx context.Context, conn types.Connection) (*types.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	m.connections[conn.ID] = &conn
	return &conn, nil
}

func (m *mockRegistry) SetVersionOverride(ctx context.Context, o types.VersionOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, o)
	return nil
}

func (m *mockRegistry) GetConnection(ctx context.Context, connectionID uuid.UUID) (*types.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[connectionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return conn, nil
}

func (m *mockRegistry) GetCurrentState(ctx context.Context, connectionID uuid.UUID) (*types.StateWrapper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[connectionID], nil
}

func (m *mockRegistry) WriteState(ctx context.Context, connectionID uuid.UUID, state types.StateWrapper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[connectionID] = &state
	return nil
}

func (m *mockRegistry) GetCurrentGenerations(ctx context.Context, connectionID uuid.UUID) ([]types.StreamGeneration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[connectionID], nil
}

// mockAttempts implements AttemptManager for handler tests.
type mockAttempts struct {
	createNumber int
	createErr    error
	failErr      error
	succeedErr   error
	getErr       error
	statsErr     error
	saveOK       bool

	failCalls    []failCall
	succeedCalls []json.RawMessage
	savedStats   []types.SyncStats
	savedConfigs []types.SyncConfigInput
	savedMeta    [][]types.StreamAttemptMetadata
}

type failCall struct {
	jobID         int64
	attemptNumber int
	summary       json.RawMessage
	output        json.RawMessage
}

func (m *mockAttempts) CreateNewAttemptNumber(ctx context.Context, jobID int64) (int, error) {
	return m.createNumber, m.createErr
}

func (m *mockAttempts) FailAttempt(ctx context.Context, attemptNumber int, jobID int64, rawFailureSummary, rawSyncOutput json.RawMessage) error {
	m.failCalls = append(m.failCalls, failCall{jobID, attemptNumber, rawFailureSummary, rawSyncOutput})
	return m.failErr
}

func (m *mockAttempts) SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int, rawSyncOutput json.RawMessage) error {
	m.succeedCalls = append(m.succeedCalls, rawSyncOutput)
	return m.succeedErr
}

func (m *mockAttempts) GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &types.Attempt{JobID: jobID, AttemptNumber: attemptNumber, Status: types.AttemptStatusRunning}, nil
}

func (m *mockAttempts) GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.AttemptStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return &types.AttemptStats{RecordsEmitted: 10, BytesEmitted: 1024}, nil
}

func (m *mockAttempts) SaveStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) bool {
	m.savedStats = append(m.savedStats, totals)
	return m.saveOK
}

func (m *mockAttempts) SaveSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.SyncConfigInput) bool {
	m.savedConfigs = append(m.savedConfigs, cfg)
	return m.saveOK
}

func (m *mockAttempts) SaveStreamMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) bool {
	m.savedMeta = append(m.savedMeta, metadata)
	return m.saveOK
}

type testServer struct {
	registry *mockRegistry
	attempts *mockAttempts
	router   http.Handler
}

func newTestServer() *testServer {
	reg := newMockRegistry()
	att := &mockAttempts{saveOK: true}
	return &testServer{
		registry: reg,
		attempts: att,
		router:   NewRouter(NewHandler(reg, att, testAPIKey, "1.0.0")),
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedJob(t *testing.T) *types.Job {
	t.Helper()
	job, err := s.registry.CreateJob(context.Background(), uuid.NewString(), types.SyncConfig{})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

// --- Health ---

func TestHealth_ReturnsStatus(t *testing.T) {
	s := newTestServer()
	s.seedJob(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Version != "1.0.0" || resp.JobCount != 1 {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_DatabaseUnavailable(t *testing.T) {
	s := newTestServer()
	s.registry.countErr = errors.New("database is locked")

	w := s.do(http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/1/attempts", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// --- Jobs ---

func TestCreateJob_Success(t *testing.T) {
	s := newTestServer()
	scope := uuid.NewString()

	w := s.do(http.MethodPost, "/api/v1/jobs", types.CreateJobRequest{
		Scope:      scope,
		ConfigType: types.ConfigTypeSync,
		Config:     json.RawMessage(`{"configured_catalog":{"streams":[]}}`),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	var job types.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != 1 || job.Scope != scope || job.ConfigType != types.ConfigTypeSync {
		t.Errorf("job = %+v", job)
	}
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/jobs", types.CreateJobRequest{
		Scope:      "not-a-uuid",
		ConfigType: types.ConfigTypeSync,
		Config:     json.RawMessage(`{}`),
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(p.Errors) == 0 || p.Errors[0].Field != "scope" {
		t.Errorf("errors = %+v, want scope error", p.Errors)
	}
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodPost, "/api/v1/jobs", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateJob_ConfigDoesNotMatchType(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodPost, "/api/v1/jobs", types.CreateJobRequest{
		Scope:      uuid.NewString(),
		ConfigType: types.ConfigTypeSync,
		Config:     json.RawMessage(`{"configured_catalog":"users"}`),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	s := newTestServer()
	job := s.seedJob(t)

	w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", job.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = s.do(http.MethodGet, "/api/v1/jobs/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", w.Code)
	}
}

func TestJobRoutes_RejectBadIDs(t *testing.T) {
	s := newTestServer()
	for _, path := range []string{
		"/api/v1/jobs/abc",
		"/api/v1/jobs/0",
		"/api/v1/jobs/-4",
		"/api/v1/jobs/1/attempts/x",
		"/api/v1/jobs/1/attempts/-1",
	} {
		t.Run(path, func(t *testing.T) {
			w := s.do(http.MethodGet, path, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

// --- Attempts ---

func TestCreateAttempt_Success(t *testing.T) {
	s := newTestServer()
	s.attempts.createNumber = 2

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts", nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp types.CreateAttemptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != 42 || resp.AttemptNumber != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateAttempt_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown job", fmt.Errorf("%w: could not find job 42: %w", attempt.ErrNotProcessable, store.ErrNotFound), http.StatusUnprocessableEntity},
		{"refresh unsupported", attempt.ErrRefreshUnsupported, http.StatusConflict},
		{"missing catalog", fmt.Errorf("%w: missing configured catalog", attempt.ErrBadRequest), http.StatusBadRequest},
		{"terminal job", store.ErrJobTerminal, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.attempts.createErr = tt.err

			w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts", nil)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestGetAttempt(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/jobs/42/attempts/0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var a types.Attempt
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.JobID != 42 || a.AttemptNumber != 0 {
		t.Errorf("attempt = %+v", a)
	}

	s.attempts.getErr = fmt.Errorf("%w: job 42 attempt 5", attempt.ErrNotFound)
	w = s.do(http.MethodGet, "/api/v1/jobs/42/attempts/5", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetAttemptStats(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/jobs/42/attempts/1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var stats types.AttemptStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.RecordsEmitted != 10 || stats.BytesEmitted != 1024 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetAttemptStreamStats_EmptyIsArray(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/v1/jobs/42/attempts/1/stream_stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestFailAttempt_PassesRawPayloads(t *testing.T) {
	s := newTestServer()

	body := `{"failure_summary":{"failures":[{"failure_origin":"source"}]},"standard_sync_output":null}`
	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/3/fail", body)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", w.Code, w.Body.String())
	}
	if len(s.attempts.failCalls) != 1 {
		t.Fatalf("fail calls = %d, want 1", len(s.attempts.failCalls))
	}
	call := s.attempts.failCalls[0]
	if call.jobID != 42 || call.attemptNumber != 3 {
		t.Errorf("call = %+v", call)
	}
	if string(call.summary) != `{"failures":[{"failure_origin":"source"}]}` {
		t.Errorf("summary = %s", call.summary)
	}
}

func TestFailAttempt_MalformedPayloadIs400(t *testing.T) {
	s := newTestServer()
	s.attempts.failErr = fmt.Errorf("%w: unable to parse failure summary", attempt.ErrBadRequest)

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/3/fail", `{"failure_summary":123}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSucceedAttempt(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/succeed", `{"standard_sync_output":{}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(s.attempts.succeedCalls) != 1 {
		t.Errorf("succeed calls = %d, want 1", len(s.attempts.succeedCalls))
	}

	s.attempts.succeedErr = store.ErrAttemptEnded
	w = s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/succeed", `{}`)
	if w.Code != http.StatusConflict {
		t.Errorf("ended attempt status = %d, want 409", w.Code)
	}
}

func TestSaveStats(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/stats", types.SaveStatsRequest{
		ConnectionID: uuid.New(),
		Stats:        types.SyncStats{RecordsEmitted: 5},
		StreamStats: []types.StreamSyncStats{
			{StreamName: "users", Stats: types.SyncStats{RecordsEmitted: 5}},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var res types.InternalOperationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Succeeded {
		t.Error("succeeded = false, want true")
	}
	if len(s.attempts.savedStats) != 1 || s.attempts.savedStats[0].RecordsEmitted != 5 {
		t.Errorf("saved stats = %+v", s.attempts.savedStats)
	}
}

func TestSaveStats_StoreFailureReportsNotSucceeded(t *testing.T) {
	s := newTestServer()
	s.attempts.saveOK = false

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/stats", types.SaveStatsRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var res types.InternalOperationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Succeeded {
		t.Error("succeeded = true, want false")
	}
}

func TestSaveStats_NegativeCountersRejected(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/stats", types.SaveStatsRequest{
		Stats: types.SyncStats{BytesEmitted: -1},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if len(s.attempts.savedStats) != 0 {
		t.Error("stats saved despite validation failure")
	}
}

func TestSaveSyncConfig(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/sync_config", `{"sync_config":{}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(s.attempts.savedConfigs) != 1 {
		t.Errorf("saved configs = %d, want 1", len(s.attempts.savedConfigs))
	}
}

func TestStreamMetadata_SaveAndGet(t *testing.T) {
	s := newTestServer()
	s.registry.metadata = []types.StreamAttemptMetadata{{StreamName: "users", WasBackfilled: true}}

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/stream_metadata", types.SaveStreamMetadataRequest{
		StreamMetadata: []types.StreamAttemptMetadata{{StreamName: "users", WasBackfilled: true}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, want 200", w.Code)
	}
	if len(s.attempts.savedMeta) != 1 || len(s.attempts.savedMeta[0]) != 1 {
		t.Errorf("saved metadata = %+v", s.attempts.savedMeta)
	}

	w = s.do(http.MethodGet, "/api/v1/jobs/42/attempts/0/stream_metadata", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var got []types.StreamAttemptMetadata
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].StreamName != "users" || !got[0].WasBackfilled {
		t.Errorf("metadata = %+v", got)
	}
}

func TestSaveStreamMetadata_BlankNameRejected(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/jobs/42/attempts/0/stream_metadata", types.SaveStreamMetadataRequest{
		StreamMetadata: []types.StreamAttemptMetadata{{StreamName: ""}},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

// --- Registry ---

func TestRegistry_CreateChain(t *testing.T) {
	s := newTestServer()
	workspace := uuid.New()

	w := s.do(http.MethodPost, "/api/v1/destination_definitions", types.DestinationDefinition{
		Name:              "warehouse",
		DockerImageTag:    "1.2.0",
		SupportsRefreshes: true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("definition status = %d (body %s)", w.Code, w.Body.String())
	}
	var def types.DestinationDefinition
	_ = json.Unmarshal(w.Body.Bytes(), &def)

	w = s.do(http.MethodPost, "/api/v1/destinations", types.Destination{
		WorkspaceID:  workspace,
		DefinitionID: def.ID,
		Name:         "prod warehouse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("destination status = %d (body %s)", w.Code, w.Body.String())
	}
	var dest types.Destination
	_ = json.Unmarshal(w.Body.Bytes(), &dest)

	w = s.do(http.MethodPost, "/api/v1/connections", types.Connection{
		WorkspaceID:   workspace,
		DestinationID: dest.ID,
		Name:          "pg to warehouse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("connection status = %d (body %s)", w.Code, w.Body.String())
	}
	var conn types.Connection
	_ = json.Unmarshal(w.Body.Bytes(), &conn)

	w = s.do(http.MethodGet, "/api/v1/connections/"+conn.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Errorf("get connection status = %d, want 200", w.Code)
	}
}

func TestCreateDestination_MissingIDs(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/v1/destinations", types.Destination{Name: "x"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var p ProblemWithErrors
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if len(p.Errors) != 2 {
		t.Errorf("errors = %+v, want workspace_id and definition_id", p.Errors)
	}
}

func TestSetVersionOverride(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPut, "/api/v1/version_overrides", types.VersionOverride{
		DefinitionID:   uuid.New(),
		Scope:          types.OverrideScopeDestination,
		ScopeID:        uuid.New(),
		DockerImageTag: "2.0.0",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", w.Code, w.Body.String())
	}
	if len(s.registry.overrides) != 1 {
		t.Errorf("overrides = %d, want 1", len(s.registry.overrides))
	}

	w = s.do(http.MethodPut, "/api/v1/version_overrides", types.VersionOverride{
		DefinitionID:   uuid.New(),
		Scope:          "organization",
		ScopeID:        uuid.New(),
		DockerImageTag: "2.0.0",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown scope status = %d, want 422", w.Code)
	}
}

func TestConnectionState_PutThenGet(t *testing.T) {
	s := newTestServer()
	connID := uuid.New()
	path := "/api/v1/connections/" + connID.String() + "/state"

	w := s.do(http.MethodGet, path, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("empty state status = %d, want 404", w.Code)
	}

	w = s.do(http.MethodPut, path, `{"state_type":"stream","streams":[{"stream_descriptor":{"name":"users"},"stream_state":{"cursor":5}}]}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("put status = %d, want 204 (body %s)", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var got types.StateWrapper
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StateType != types.StateTypeStream || len(got.Streams) != 1 {
		t.Errorf("state = %+v", got)
	}
}

func TestConnectionState_UnknownTypeRejected(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodPut, "/api/v1/connections/"+uuid.NewString()+"/state", `{"state_type":"mystery"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestGenerations(t *testing.T) {
	s := newTestServer()
	connID := uuid.New()
	s.registry.generations[connID] = []types.StreamGeneration{{StreamName: "users", GenerationID: 2, StartJobID: 42}}

	w := s.do(http.MethodGet, "/api/v1/connections/"+connID.String()+"/generations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var gens []types.StreamGeneration
	if err := json.Unmarshal(w.Body.Bytes(), &gens); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(gens) != 1 || gens[0].GenerationID != 2 {
		t.Errorf("generations = %+v", gens)
	}
}

func TestConnectionRoutes_RejectBadUUID(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodGet, "/api/v1/connections/conn-1/state", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
