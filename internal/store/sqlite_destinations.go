package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperengineering/syncplane/internal/types"
)

// CreateDestinationDefinition registers a destination connector. A nil id is
// replaced with a random one.
func (s *SQLiteStore) CreateDestinationDefinition(ctx context.Context, def types.DestinationDefinition) (*types.DestinationDefinition, error) {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO destination_definitions (id, name, docker_image_tag, supports_refreshes, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, def.ID.String(), def.Name, def.DockerImageTag, boolInt(def.SupportsRefreshes), ts)
	if err != nil {
		return nil, fmt.Errorf("insert destination definition: %w", err)
	}
	def.CreatedAt = parseTime(ts)
	return &def, nil
}

// CreateDestination registers a destination of an existing definition.
func (s *SQLiteStore) CreateDestination(ctx context.Context, dest types.Destination) (*types.Destination, error) {
	if dest.ID == uuid.Nil {
		dest.ID = uuid.New()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO destinations (id, workspace_id, definition_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, dest.ID.String(), dest.WorkspaceID.String(), dest.DefinitionID.String(), dest.Name, ts)
	if err != nil {
		return nil, fmt.Errorf("insert destination: %w", err)
	}
	dest.CreatedAt = parseTime(ts)
	return &dest, nil
}

// CreateConnection registers a connection to an existing destination.
func (s *SQLiteStore) CreateConnection(ctx context.Context, conn types.Connection) (*types.Connection, error) {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (id, workspace_id, destination_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conn.ID.String(), conn.WorkspaceID.String(), conn.DestinationID.String(), conn.Name, ts)
	if err != nil {
		return nil, fmt.Errorf("insert connection: %w", err)
	}
	conn.CreatedAt = parseTime(ts)
	return &conn, nil
}

// SetVersionOverride pins a definition version for a workspace or a
// destination, replacing any existing override at the same scope.
func (s *SQLiteStore) SetVersionOverride(ctx context.Context, o types.VersionOverride) error {
	switch o.Scope {
	case types.OverrideScopeWorkspace, types.OverrideScopeDestination:
	default:
		return fmt.Errorf("unknown override scope %q", o.Scope)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO destination_version_overrides (definition_id, scope_type, scope_id, docker_image_tag, supports_refreshes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (definition_id, scope_type, scope_id) DO UPDATE SET
			docker_image_tag = excluded.docker_image_tag,
			supports_refreshes = excluded.supports_refreshes
	`, o.DefinitionID.String(), string(o.Scope), o.ScopeID.String(), o.DockerImageTag, boolInt(o.SupportsRefreshes), now())
	if err != nil {
		return fmt.Errorf("upsert version override: %w", err)
	}
	return nil
}

// GetConnection looks up a connection by id.
func (s *SQLiteStore) GetConnection(ctx context.Context, connectionID uuid.UUID) (*types.Connection, error) {
	var (
		c                                  types.Connection
		id, workspaceID, destID, createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, destination_id, name, created_at
		FROM connections WHERE id = ?
	`, connectionID.String()).Scan(&id, &workspaceID, &destID, &c.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse connection id: %w", err)
	}
	if c.WorkspaceID, err = uuid.Parse(workspaceID); err != nil {
		return nil, fmt.Errorf("parse workspace id: %w", err)
	}
	if c.DestinationID, err = uuid.Parse(destID); err != nil {
		return nil, fmt.Errorf("parse destination id: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// GetDestination looks up a destination by id.
func (s *SQLiteStore) GetDestination(ctx context.Context, destinationID uuid.UUID) (*types.Destination, error) {
	var (
		d                                 types.Destination
		id, workspaceID, defID, createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, definition_id, name, created_at
		FROM destinations WHERE id = ?
	`, destinationID.String()).Scan(&id, &workspaceID, &defID, &d.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan destination: %w", err)
	}
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse destination id: %w", err)
	}
	if d.WorkspaceID, err = uuid.Parse(workspaceID); err != nil {
		return nil, fmt.Errorf("parse workspace id: %w", err)
	}
	if d.DefinitionID, err = uuid.Parse(defID); err != nil {
		return nil, fmt.Errorf("parse definition id: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

// GetDestinationVersion resolves the version a destination runs. A
// destination override wins over a workspace override, which wins over the
// definition default. destinationID may be nil.
func (s *SQLiteStore) GetDestinationVersion(ctx context.Context, definitionID, workspaceID uuid.UUID, destinationID *uuid.UUID) (*types.DestinationVersion, error) {
	v := types.DestinationVersion{DefinitionID: definitionID}
	var supports int

	if destinationID != nil {
		found, err := s.lookupOverride(ctx, definitionID, types.OverrideScopeDestination, *destinationID, &v)
		if err != nil || found {
			return resolved(&v, err)
		}
	}
	found, err := s.lookupOverride(ctx, definitionID, types.OverrideScopeWorkspace, workspaceID, &v)
	if err != nil || found {
		return resolved(&v, err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT docker_image_tag, supports_refreshes FROM destination_definitions WHERE id = ?
	`, definitionID.String()).Scan(&v.DockerImageTag, &supports)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan destination definition: %w", err)
	}
	v.SupportsRefreshes = supports != 0
	return &v, nil
}

func (s *SQLiteStore) lookupOverride(ctx context.Context, definitionID uuid.UUID, scope types.OverrideScope, scopeID uuid.UUID, v *types.DestinationVersion) (bool, error) {
	var supports int
	err := s.db.QueryRowContext(ctx, `
		SELECT docker_image_tag, supports_refreshes FROM destination_version_overrides
		WHERE definition_id = ? AND scope_type = ? AND scope_id = ?
	`, definitionID.String(), string(scope), scopeID.String()).Scan(&v.DockerImageTag, &supports)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scan %s override: %w", scope, err)
	}
	v.SupportsRefreshes = supports != 0
	return true, nil
}

func resolved(v *types.DestinationVersion, err error) (*types.DestinationVersion, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
