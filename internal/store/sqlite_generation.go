package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperengineering/syncplane/internal/types"
	"github.com/oklog/ulid/v2"
)

// UpdateGenerationForStreams starts a new generation for every stream in
// streams and in refreshes. Each stream's generation is its previous
// generation plus one, starting at 1, tagged with jobID.
func (s *SQLiteStore) UpdateGenerationForStreams(ctx context.Context, connectionID uuid.UUID, jobID int64, refreshes []types.StreamRefresh, streams types.StreamSet) error {
	targets := types.NewStreamSet()
	targets.Union(streams)
	for _, r := range refreshes {
		targets.Add(r.StreamDescriptor)
	}
	if len(targets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	for _, d := range targets.Sorted() {
		ns := nullString(d.Namespace)
		var current int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(generation_id), 0) FROM stream_generation
			WHERE connection_id = ? AND stream_name = ? AND stream_namespace IS ?
		`, connectionID.String(), d.Name, ns).Scan(&current)
		if err != nil {
			return fmt.Errorf("get generation for %s: %w", d, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stream_generation (id, connection_id, stream_name, stream_namespace, generation_id, start_job_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, ulid.Make().String(), connectionID.String(), d.Name, ns, current+1, jobID, ts)
		if err != nil {
			return fmt.Errorf("insert generation for %s: %w", d, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetCurrentGenerations returns the latest generation of each stream of the
// connection.
func (s *SQLiteStore) GetCurrentGenerations(ctx context.Context, connectionID uuid.UUID) ([]types.StreamGeneration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.stream_name, g.stream_namespace, g.generation_id, g.start_job_id
		FROM stream_generation g
		WHERE g.connection_id = ?
		  AND g.generation_id = (
			SELECT MAX(generation_id) FROM stream_generation
			WHERE connection_id = g.connection_id
			  AND stream_name = g.stream_name
			  AND stream_namespace IS g.stream_namespace
		  )
		ORDER BY g.stream_namespace, g.stream_name
	`, connectionID.String())
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var out []types.StreamGeneration
	for rows.Next() {
		var (
			g  types.StreamGeneration
			ns sql.NullString
		)
		if err := rows.Scan(&g.StreamName, &ns, &g.GenerationID, &g.StartJobID); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.StreamNamespace = stringPtr(ns)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}
