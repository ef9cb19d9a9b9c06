package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperengineering/syncplane/internal/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateJob inserts a pending job scoped to scope.
func (s *SQLiteStore) CreateJob(ctx context.Context, scope string, cfg types.JobConfig) (*types.Job, error) {
	if cfg == nil {
		return nil, errors.New("create job: config is required")
	}
	configType, data, err := types.MarshalJobConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	ts := now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (config_type, scope, config, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(configType), scope, string(data), string(types.JobStatusPending), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get job id: %w", err)
	}

	return s.GetJob(ctx, id)
}

// GetJob loads a job with its attempts ordered by attempt number.
func (s *SQLiteStore) GetJob(ctx context.Context, jobID int64) (*types.Job, error) {
	var (
		job                  types.Job
		configType, config   string
		status               string
		createdAt, updatedAt string
		startedAt            sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, config_type, scope, config, status, created_at, updated_at, started_at
		FROM jobs WHERE id = ?
	`, jobID).Scan(&job.ID, &configType, &job.Scope, &config, &status, &createdAt, &updatedAt, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	cfg, err := types.UnmarshalJobConfig(types.ConfigType(configType), []byte(config))
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", jobID, err)
	}
	job.Config = cfg
	job.ConfigType = cfg.ConfigType()
	job.Status = types.JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.StartedAt = parseNullTime(startedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, attempt_number, log_path, status, output, failure_summary,
		       attempt_sync_config, created_at, updated_at, ended_at
		FROM attempts WHERE job_id = ?
		ORDER BY attempt_number ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	job.Attempts = []types.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		job.Attempts = append(job.Attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	return &job, nil
}

func scanAttempt(row scanner) (*types.Attempt, error) {
	var (
		a                                  types.Attempt
		status                             string
		output, failureSummary, syncConfig sql.NullString
		createdAt, updatedAt               string
		endedAt                            sql.NullString
	)
	err := row.Scan(&a.JobID, &a.AttemptNumber, &a.LogPath, &status, &output, &failureSummary,
		&syncConfig, &createdAt, &updatedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	a.Status = types.AttemptStatus(status)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	a.EndedAt = parseNullTime(endedAt)

	if output.Valid {
		var o types.JobOutput
		if err := json.Unmarshal([]byte(output.String), &o); err != nil {
			return nil, fmt.Errorf("parse output JSON: %w", err)
		}
		a.Output = &o
	}
	if failureSummary.Valid {
		var f types.AttemptFailureSummary
		if err := json.Unmarshal([]byte(failureSummary.String), &f); err != nil {
			return nil, fmt.Errorf("parse failure summary JSON: %w", err)
		}
		a.FailureSummary = &f
	}
	if syncConfig.Valid {
		var c types.AttemptSyncConfig
		if err := json.Unmarshal([]byte(syncConfig.String), &c); err != nil {
			return nil, fmt.Errorf("parse sync config JSON: %w", err)
		}
		a.SyncConfig = &c
	}
	return &a, nil
}

// CreateAttempt appends a running attempt to the job and moves the job to
// running. The attempt number is the count of prior attempts.
func (s *SQLiteStore) CreateAttempt(ctx context.Context, jobID int64, logPath string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", jobID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get job status: %w", err)
	}
	if types.JobStatus(status).IsTerminal() {
		return 0, fmt.Errorf("job %d is %s: %w", jobID, status, ErrJobTerminal)
	}

	var count, running int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM attempts WHERE job_id = ?
	`, string(types.AttemptStatusRunning), jobID).Scan(&count, &running)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	if running > 0 {
		return 0, fmt.Errorf("job %d: %w", jobID, ErrAttemptRunning)
	}

	ts := now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts (job_id, attempt_number, log_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, jobID, count, logPath, string(types.AttemptStatusRunning), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, started_at = COALESCE(started_at, ?), updated_at = ?
		WHERE id = ?
	`, string(types.JobStatusRunning), ts, ts, jobID)
	if err != nil {
		return 0, fmt.Errorf("update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return count, nil
}

// FailAttempt marks the attempt failed and the job incomplete.
func (s *SQLiteStore) FailAttempt(ctx context.Context, jobID int64, attemptNumber int) error {
	return s.endAttempt(ctx, jobID, attemptNumber, types.AttemptStatusFailed, types.JobStatusIncomplete, false)
}

// SucceedAttempt marks a running attempt and its job succeeded. An attempt
// that already ended is left as is and ErrAttemptEnded is returned.
func (s *SQLiteStore) SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int) error {
	return s.endAttempt(ctx, jobID, attemptNumber, types.AttemptStatusSucceeded, types.JobStatusSucceeded, true)
}

// endAttempt moves the attempt to attemptStatus and its job to jobStatus in
// one transaction. With onlyRunning set, the attempt update matches a running
// attempt only.
func (s *SQLiteStore) endAttempt(ctx context.Context, jobID int64, attemptNumber int, attemptStatus types.AttemptStatus, jobStatus types.JobStatus, onlyRunning bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	query := `
		UPDATE attempts SET status = ?, ended_at = ?, updated_at = ?
		WHERE job_id = ? AND attempt_number = ?`
	args := []any{string(attemptStatus), ts, ts, jobID, attemptNumber}
	if onlyRunning {
		query += " AND status = ?"
		args = append(args, string(types.AttemptStatusRunning))
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if err := requireRow(result); err != nil {
		if !onlyRunning || !errors.Is(err, ErrNotFound) {
			return err
		}
		var status string
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM attempts WHERE job_id = ? AND attempt_number = ?",
			jobID, attemptNumber,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("get attempt status: %w", err)
		}
		return fmt.Errorf("attempt %d of job %d is %s: %w", attemptNumber, jobID, status, ErrAttemptEnded)
	}

	_, err = tx.ExecContext(ctx, "UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?",
		string(jobStatus), ts, jobID)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WriteOutput stores the attempt output and, when the output carries a sync
// summary with stats, the attempt's total and per-stream stats.
func (s *SQLiteStore) WriteOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	result, err := tx.ExecContext(ctx, `
		UPDATE attempts SET output = ?, updated_at = ?
		WHERE job_id = ? AND attempt_number = ?
	`, string(data), ts, jobID, attemptNumber)
	if err != nil {
		return fmt.Errorf("update output: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if output.Sync != nil && output.Sync.StandardSyncSummary != nil && output.Sync.StandardSyncSummary.TotalStats != nil {
		summary := output.Sync.StandardSyncSummary
		var scope string
		if err := tx.QueryRowContext(ctx, "SELECT scope FROM jobs WHERE id = ?", jobID).Scan(&scope); err != nil {
			return fmt.Errorf("get job scope: %w", err)
		}
		if err := writeStats(ctx, tx, jobID, attemptNumber, scope, *summary.TotalStats, summary.StreamStats); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WriteAttemptFailureSummary stores summary on the attempt. A nil summary
// clears any stored summary.
func (s *SQLiteStore) WriteAttemptFailureSummary(ctx context.Context, jobID int64, attemptNumber int, summary *types.AttemptFailureSummary) error {
	var value sql.NullString
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal failure summary: %w", err)
		}
		value = sql.NullString{String: string(data), Valid: true}
	}
	return s.updateAttemptColumn(ctx, "failure_summary", value, jobID, attemptNumber)
}

// WriteAttemptSyncConfig stores the per-attempt sync config snapshot.
func (s *SQLiteStore) WriteAttemptSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.AttemptSyncConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal sync config: %w", err)
	}
	return s.updateAttemptColumn(ctx, "attempt_sync_config", sql.NullString{String: string(data), Valid: true}, jobID, attemptNumber)
}

// updateAttemptColumn sets one of a fixed set of attempt columns.
func (s *SQLiteStore) updateAttemptColumn(ctx context.Context, column string, value sql.NullString, jobID int64, attemptNumber int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE attempts SET "+column+" = ?, updated_at = ? WHERE job_id = ? AND attempt_number = ?",
		value, now(), jobID, attemptNumber)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return requireRow(result)
}

// GetAttemptForJob returns a single attempt of a job.
func (s *SQLiteStore) GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, attempt_number, log_path, status, output, failure_summary,
		       attempt_sync_config, created_at, updated_at, ended_at
		FROM attempts WHERE job_id = ? AND attempt_number = ?
	`, jobID, attemptNumber)

	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	return a, nil
}

// GetAttemptCombinedStats returns the attempt's total stats. ErrNotFound is
// returned when no stats were ever written; zero-valued stats are returned
// as is.
func (s *SQLiteStore) GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.SyncStats, error) {
	var st types.SyncStats
	err := s.db.QueryRowContext(ctx, `
		SELECT ss.records_emitted, ss.bytes_emitted, ss.records_committed, ss.bytes_committed,
		       ss.records_rejected, ss.estimated_records, ss.estimated_bytes
		FROM sync_stats ss
		JOIN attempts a ON a.id = ss.attempt_id
		WHERE a.job_id = ? AND a.attempt_number = ?
		ORDER BY ss.id DESC LIMIT 1
	`, jobID, attemptNumber).Scan(&st.RecordsEmitted, &st.BytesEmitted, &st.RecordsCommitted,
		&st.BytesCommitted, &st.RecordsRejected, &st.EstimatedRecords, &st.EstimatedBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	return &st, nil
}

// GetStreamStats returns the per-stream stats of an attempt.
func (s *SQLiteStore) GetStreamStats(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamSyncStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.stream_name, st.stream_namespace,
		       st.records_emitted, st.bytes_emitted, st.records_committed, st.bytes_committed,
		       st.records_rejected, st.estimated_records, st.estimated_bytes
		FROM stream_stats st
		JOIN attempts a ON a.id = st.attempt_id
		WHERE a.job_id = ? AND a.attempt_number = ?
		ORDER BY st.stream_namespace, st.stream_name
	`, jobID, attemptNumber)
	if err != nil {
		return nil, fmt.Errorf("query stream stats: %w", err)
	}
	defer rows.Close()

	var out []types.StreamSyncStats
	for rows.Next() {
		var (
			ss types.StreamSyncStats
			ns sql.NullString
		)
		err := rows.Scan(&ss.StreamName, &ns,
			&ss.Stats.RecordsEmitted, &ss.Stats.BytesEmitted, &ss.Stats.RecordsCommitted,
			&ss.Stats.BytesCommitted, &ss.Stats.RecordsRejected, &ss.Stats.EstimatedRecords,
			&ss.Stats.EstimatedBytes)
		if err != nil {
			return nil, fmt.Errorf("scan stream stats: %w", err)
		}
		ss.StreamNamespace = stringPtr(ns)
		out = append(out, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream stats: %w", err)
	}
	return out, nil
}

// WriteStats replaces the attempt's total stats and upserts the given
// per-stream stats.
func (s *SQLiteStore) WriteStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeStats(ctx, tx, jobID, attemptNumber, connectionID.String(), totals, perStream); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func writeStats(ctx context.Context, q querier, jobID int64, attemptNumber int, connectionID string, totals types.SyncStats, perStream []types.StreamSyncStats) error {
	attemptID, err := attemptRowID(ctx, q, jobID, attemptNumber)
	if err != nil {
		return err
	}

	ts := now()
	if _, err := q.ExecContext(ctx, "DELETE FROM sync_stats WHERE attempt_id = ?", attemptID); err != nil {
		return fmt.Errorf("clear sync stats: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO sync_stats (attempt_id, records_emitted, bytes_emitted, records_committed,
			bytes_committed, records_rejected, estimated_records, estimated_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, attemptID, totals.RecordsEmitted, totals.BytesEmitted, totals.RecordsCommitted,
		totals.BytesCommitted, totals.RecordsRejected, totals.EstimatedRecords, totals.EstimatedBytes, ts, ts)
	if err != nil {
		return fmt.Errorf("insert sync stats: %w", err)
	}

	for _, ss := range perStream {
		ns := nullString(ss.StreamNamespace)
		_, err := q.ExecContext(ctx, `
			DELETE FROM stream_stats
			WHERE attempt_id = ? AND stream_name = ? AND stream_namespace IS ?
		`, attemptID, ss.StreamName, ns)
		if err != nil {
			return fmt.Errorf("clear stream stats for %s: %w", ss.Descriptor(), err)
		}
		st := ss.Stats
		_, err = q.ExecContext(ctx, `
			INSERT INTO stream_stats (attempt_id, connection_id, stream_name, stream_namespace,
				records_emitted, bytes_emitted, records_committed, bytes_committed,
				records_rejected, estimated_records, estimated_bytes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, attemptID, connectionID, ss.StreamName, ns,
			st.RecordsEmitted, st.BytesEmitted, st.RecordsCommitted, st.BytesCommitted,
			st.RecordsRejected, st.EstimatedRecords, st.EstimatedBytes, ts, ts)
		if err != nil {
			return fmt.Errorf("insert stream stats for %s: %w", ss.Descriptor(), err)
		}
	}
	return nil
}

func attemptRowID(ctx context.Context, q querier, jobID int64, attemptNumber int) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		"SELECT id FROM attempts WHERE job_id = ? AND attempt_number = ?",
		jobID, attemptNumber,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get attempt id: %w", err)
	}
	return id, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
