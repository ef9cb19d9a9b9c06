package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperengineering/syncplane/internal/types"
)

// State rows: a legacy state is one row without a stream name, a global
// state is one shared row without a stream name plus one row per stream, and
// a stream state is one row per stream.

// GetCurrentState returns the connection's state, or nil when none is stored.
func (s *SQLiteStore) GetCurrentState(ctx context.Context, connectionID uuid.UUID) (*types.StateWrapper, error) {
	return currentState(ctx, s.db, connectionID)
}

func currentState(ctx context.Context, q querier, connectionID uuid.UUID) (*types.StateWrapper, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT stream_name, namespace, type, state
		FROM state WHERE connection_id = ?
		ORDER BY id ASC
	`, connectionID.String())
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	var (
		w     *types.StateWrapper
		count int
	)
	for rows.Next() {
		var (
			name, ns, blob sql.NullString
			stateType      string
		)
		if err := rows.Scan(&name, &ns, &stateType, &blob); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		count++
		if w == nil {
			w = &types.StateWrapper{StateType: types.StateType(stateType)}
			if w.StateType == types.StateTypeGlobal {
				w.Global = &types.GlobalState{StreamStates: []types.StreamState{}}
			}
		}

		var raw json.RawMessage
		if blob.Valid {
			raw = json.RawMessage(blob.String)
		}

		switch w.StateType {
		case types.StateTypeLegacy:
			w.LegacyState = raw
		case types.StateTypeGlobal:
			if !name.Valid {
				w.Global.SharedState = raw
				continue
			}
			w.Global.StreamStates = append(w.Global.StreamStates, types.StreamState{
				StreamDescriptor: types.StreamDescriptor{Name: name.String, Namespace: stringPtr(ns)},
				StreamState:      raw,
			})
		case types.StateTypeStream:
			w.Streams = append(w.Streams, types.StreamState{
				StreamDescriptor: types.StreamDescriptor{Name: name.String, Namespace: stringPtr(ns)},
				StreamState:      raw,
			})
		default:
			return nil, fmt.Errorf("unknown state type %q for connection %s", stateType, connectionID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	return w, nil
}

// WriteState replaces the connection's state.
func (s *SQLiteStore) WriteState(ctx context.Context, connectionID uuid.UUID, state types.StateWrapper) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM state WHERE connection_id = ?", connectionID.String()); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}

	ts := now()
	insert := func(name sql.NullString, ns sql.NullString, blob json.RawMessage) error {
		var value sql.NullString
		if len(blob) > 0 {
			value = sql.NullString{String: string(blob), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO state (connection_id, stream_name, namespace, type, state, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, connectionID.String(), name, ns, string(state.StateType), value, ts, ts)
		return err
	}

	switch state.StateType {
	case types.StateTypeLegacy:
		if err := insert(sql.NullString{}, sql.NullString{}, state.LegacyState); err != nil {
			return fmt.Errorf("insert legacy state: %w", err)
		}
	case types.StateTypeGlobal:
		if state.Global == nil {
			return fmt.Errorf("global state for connection %s has no global section", connectionID)
		}
		if err := insert(sql.NullString{}, sql.NullString{}, state.Global.SharedState); err != nil {
			return fmt.Errorf("insert shared state: %w", err)
		}
		for _, ss := range state.Global.StreamStates {
			d := ss.StreamDescriptor
			if err := insert(sql.NullString{String: d.Name, Valid: true}, nullString(d.Namespace), ss.StreamState); err != nil {
				return fmt.Errorf("insert state for %s: %w", d, err)
			}
		}
	case types.StateTypeStream:
		for _, ss := range state.Streams {
			d := ss.StreamDescriptor
			if err := insert(sql.NullString{String: d.Name, Valid: true}, nullString(d.Namespace), ss.StreamState); err != nil {
				return fmt.Errorf("insert state for %s: %w", d, err)
			}
		}
	default:
		return fmt.Errorf("unknown state type %q", state.StateType)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// BulkDelete removes the state of the given streams. It is a no-op for an
// empty set or a connection without state. When the set covers every stream
// in the state, the whole connection state is erased, including any shared
// global state. Legacy state has no per-stream entries and is always erased.
func (s *SQLiteStore) BulkDelete(ctx context.Context, connectionID uuid.UUID, streams types.StreamSet) error {
	if len(streams) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentState(ctx, tx, connectionID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	if current.StateType == types.StateTypeLegacy || current.StreamsInState().Equal(streams) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM state WHERE connection_id = ?", connectionID.String()); err != nil {
			return fmt.Errorf("erase state: %w", err)
		}
	} else {
		for _, d := range streams.Sorted() {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM state
				WHERE connection_id = ? AND stream_name = ? AND namespace IS ?
			`, connectionID.String(), d.Name, nullString(d.Namespace))
			if err != nil {
				return fmt.Errorf("delete state for %s: %w", d, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
