package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SyncMode is how a source reads a stream
type SyncMode string

const (
	SyncModeFullRefresh SyncMode = "full_refresh"
	SyncModeIncremental SyncMode = "incremental"
)

// DestinationSyncMode is how a destination writes a stream
type DestinationSyncMode string

const (
	DestinationSyncAppend         DestinationSyncMode = "append"
	DestinationSyncOverwrite      DestinationSyncMode = "overwrite"
	DestinationSyncAppendDedup    DestinationSyncMode = "append_dedup"
	DestinationSyncOverwriteDedup DestinationSyncMode = "overwrite_dedup"
)

// Stream is a stream as advertised by a source
type Stream struct {
	Name               string          `json:"name"`
	Namespace          *string         `json:"namespace,omitempty"`
	JSONSchema         json.RawMessage `json:"json_schema,omitempty"`
	SupportedSyncModes []SyncMode      `json:"supported_sync_modes,omitempty"`
	IsResumable        *bool           `json:"is_resumable,omitempty"`
}

// ConfiguredStream is a stream selected for a connection with its sync modes.
type ConfiguredStream struct {
	Stream              Stream              `json:"stream"`
	SyncMode            SyncMode            `json:"sync_mode"`
	DestinationSyncMode DestinationSyncMode `json:"destination_sync_mode"`
	CursorField         []string            `json:"cursor_field,omitempty"`
	PrimaryKey          [][]string          `json:"primary_key,omitempty"`
}

// Descriptor returns the (name, namespace) identity of the stream.
func (s ConfiguredStream) Descriptor() StreamDescriptor {
	return StreamDescriptor{Name: s.Stream.Name, Namespace: s.Stream.Namespace}
}

// IsResumable reports whether the source marked the stream resumable.
// An unset flag means not resumable.
func (s ConfiguredStream) IsResumable() bool {
	return s.Stream.IsResumable != nil && *s.Stream.IsResumable
}

// IsFullRefresh reports whether the stream is read with full refresh.
func (s ConfiguredStream) IsFullRefresh() bool {
	return s.SyncMode == SyncModeFullRefresh
}

// ConfiguredCatalog is the set of streams a job replicates
type ConfiguredCatalog struct {
	Streams []ConfiguredStream `json:"streams"`
}

// ConfigType names the variant of a JobConfig
type ConfigType string

const (
	ConfigTypeSync            ConfigType = "sync"
	ConfigTypeClear           ConfigType = "clear"
	ConfigTypeResetConnection ConfigType = "reset_connection"
	ConfigTypeRefresh         ConfigType = "refresh"
	ConfigTypeCheckConnection ConfigType = "check_connection"
)

// JobConfig is the closed set of job configurations. The variants are
// SyncConfig, ResetConfig, RefreshConfig and CheckConnectionConfig.
type JobConfig interface {
	ConfigType() ConfigType
	// Catalog returns the configured catalog of the job, or nil when the
	// variant carries none.
	Catalog() *ConfiguredCatalog
	isJobConfig()
}

// SyncConfig configures a regular sync job.
type SyncConfig struct {
	WorkspaceID       uuid.UUID          `json:"workspace_id"`
	ConfiguredCatalog *ConfiguredCatalog `json:"configured_catalog"`
}

func (SyncConfig) ConfigType() ConfigType { return ConfigTypeSync }

func (c SyncConfig) Catalog() *ConfiguredCatalog { return c.ConfiguredCatalog }

func (SyncConfig) isJobConfig() {}

// ResetConfig configures a clear job that wipes the listed streams.
type ResetConfig struct {
	WorkspaceID       uuid.UUID          `json:"workspace_id"`
	ConfiguredCatalog *ConfiguredCatalog `json:"configured_catalog"`
	StreamsToReset    []StreamDescriptor `json:"streams_to_reset"`
}

func (ResetConfig) ConfigType() ConfigType { return ConfigTypeClear }

func (c ResetConfig) Catalog() *ConfiguredCatalog { return c.ConfiguredCatalog }

func (ResetConfig) isJobConfig() {}

// RefreshType selects how a refreshed stream's existing data is handled
type RefreshType string

const (
	RefreshTypeTruncate RefreshType = "truncate"
	RefreshTypeMerge    RefreshType = "merge"
)

// StreamRefresh targets a single stream in a refresh job.
type StreamRefresh struct {
	StreamDescriptor StreamDescriptor `json:"stream_descriptor"`
	RefreshType      RefreshType      `json:"refresh_type"`
}

// RefreshConfig configures a refresh job over a subset of streams.
type RefreshConfig struct {
	WorkspaceID       uuid.UUID          `json:"workspace_id"`
	ConfiguredCatalog *ConfiguredCatalog `json:"configured_catalog"`
	StreamsToRefresh  []StreamRefresh    `json:"streams_to_refresh"`
}

func (RefreshConfig) ConfigType() ConfigType { return ConfigTypeRefresh }

func (c RefreshConfig) Catalog() *ConfiguredCatalog { return c.ConfiguredCatalog }

func (RefreshConfig) isJobConfig() {}

// CheckConnectionConfig configures a connection check against an actor.
type CheckConnectionConfig struct {
	ActorID uuid.UUID `json:"actor_id"`
}

func (CheckConnectionConfig) ConfigType() ConfigType { return ConfigTypeCheckConnection }

func (CheckConnectionConfig) Catalog() *ConfiguredCatalog { return nil }

func (CheckConnectionConfig) isJobConfig() {}

// MarshalJobConfig encodes cfg and returns its config type.
func MarshalJobConfig(cfg JobConfig) (ConfigType, []byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s config: %w", cfg.ConfigType(), err)
	}
	return cfg.ConfigType(), data, nil
}

// UnmarshalJobConfig decodes data into the variant named by t.
// reset_connection is accepted as a legacy name for clear.
func UnmarshalJobConfig(t ConfigType, data []byte) (JobConfig, error) {
	switch t {
	case ConfigTypeSync:
		var c SyncConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal sync config: %w", err)
		}
		return c, nil
	case ConfigTypeClear, ConfigTypeResetConnection:
		var c ResetConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal clear config: %w", err)
		}
		return c, nil
	case ConfigTypeRefresh:
		var c RefreshConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal refresh config: %w", err)
		}
		return c, nil
	case ConfigTypeCheckConnection:
		var c CheckConnectionConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal check connection config: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown job config type %q", t)
	}
}
