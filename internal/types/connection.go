package types

import (
	"time"

	"github.com/google/uuid"
)

// Connection links a workspace's source to a destination. Jobs are scoped to
// a connection by id.
type Connection struct {
	ID            uuid.UUID `json:"id"`
	WorkspaceID   uuid.UUID `json:"workspace_id"`
	DestinationID uuid.UUID `json:"destination_id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Destination is a configured instance of a destination definition.
type Destination struct {
	ID           uuid.UUID `json:"id"`
	WorkspaceID  uuid.UUID `json:"workspace_id"`
	DefinitionID uuid.UUID `json:"definition_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// DestinationDefinition is a destination connector and its default version.
type DestinationDefinition struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	DockerImageTag    string    `json:"docker_image_tag"`
	SupportsRefreshes bool      `json:"supports_refreshes"`
	CreatedAt         time.Time `json:"created_at"`
}

// OverrideScope is the level a version override is pinned at
type OverrideScope string

const (
	OverrideScopeWorkspace   OverrideScope = "workspace"
	OverrideScopeDestination OverrideScope = "destination"
)

// VersionOverride pins a definition to a specific version for a workspace or
// a single destination.
type VersionOverride struct {
	DefinitionID      uuid.UUID     `json:"definition_id"`
	Scope             OverrideScope `json:"scope"`
	ScopeID           uuid.UUID     `json:"scope_id"`
	DockerImageTag    string        `json:"docker_image_tag"`
	SupportsRefreshes bool          `json:"supports_refreshes"`
}

// DestinationVersion is the resolved connector version used by a destination.
type DestinationVersion struct {
	DefinitionID      uuid.UUID `json:"definition_id"`
	DockerImageTag    string    `json:"docker_image_tag"`
	SupportsRefreshes bool      `json:"supports_refreshes"`
}

// StreamGeneration is the current generation of one stream of a connection.
type StreamGeneration struct {
	StreamName      string  `json:"stream_name"`
	StreamNamespace *string `json:"stream_namespace,omitempty"`
	GenerationID    int64   `json:"generation_id"`
	StartJobID      int64   `json:"start_job_id"`
}
