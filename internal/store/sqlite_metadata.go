package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/syncplane/internal/types"
	"github.com/oklog/ulid/v2"
)

// UpsertStreamAttemptMetadata records per-stream metadata of an attempt. An
// existing entry for the same stream is replaced.
func (s *SQLiteStore) UpsertStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) error {
	if len(metadata) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := attemptRowID(ctx, tx, jobID, attemptNumber); err != nil {
		return err
	}

	ts := now()
	for _, m := range metadata {
		ns := nullString(m.StreamNamespace)
		_, err := tx.ExecContext(ctx, `
			DELETE FROM stream_attempt_metadata
			WHERE job_id = ? AND attempt_number = ? AND stream_name = ? AND stream_namespace IS ?
		`, jobID, attemptNumber, m.StreamName, ns)
		if err != nil {
			return fmt.Errorf("clear metadata for %s: %w", m.Descriptor(), err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stream_attempt_metadata (id, job_id, attempt_number, stream_name, stream_namespace,
				was_backfilled, was_resumed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ulid.Make().String(), jobID, attemptNumber, m.StreamName, ns,
			boolInt(m.WasBackfilled), boolInt(m.WasResumed), ts, ts)
		if err != nil {
			return fmt.Errorf("insert metadata for %s: %w", m.Descriptor(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetStreamAttemptMetadata lists the per-stream metadata of an attempt.
func (s *SQLiteStore) GetStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int) ([]types.StreamAttemptMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_name, stream_namespace, was_backfilled, was_resumed
		FROM stream_attempt_metadata
		WHERE job_id = ? AND attempt_number = ?
		ORDER BY stream_namespace, stream_name
	`, jobID, attemptNumber)
	if err != nil {
		return nil, fmt.Errorf("query stream metadata: %w", err)
	}
	defer rows.Close()

	var out []types.StreamAttemptMetadata
	for rows.Next() {
		var (
			m                   types.StreamAttemptMetadata
			ns                  sql.NullString
			backfilled, resumed int
		)
		if err := rows.Scan(&m.StreamName, &ns, &backfilled, &resumed); err != nil {
			return nil, fmt.Errorf("scan stream metadata: %w", err)
		}
		m.StreamNamespace = stringPtr(ns)
		m.WasBackfilled = backfilled != 0
		m.WasResumed = resumed != 0
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream metadata: %w", err)
	}
	return out, nil
}
