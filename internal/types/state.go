package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// StateType is the shape of a connection's persisted state
type StateType string

const (
	StateTypeStream StateType = "stream"
	StateTypeGlobal StateType = "global"
	StateTypeLegacy StateType = "legacy"
)

// StreamState is the opaque state blob of one stream.
type StreamState struct {
	StreamDescriptor StreamDescriptor `json:"stream_descriptor"`
	StreamState      json.RawMessage  `json:"stream_state,omitempty"`
}

// GlobalState is state shared across streams plus per-stream state.
type GlobalState struct {
	SharedState  json.RawMessage `json:"shared_state,omitempty"`
	StreamStates []StreamState   `json:"stream_states"`
}

// StateWrapper is the internal representation of a connection's state.
type StateWrapper struct {
	StateType   StateType       `json:"state_type"`
	LegacyState json.RawMessage `json:"legacy_state,omitempty"`
	Streams     []StreamState   `json:"streams,omitempty"`
	Global      *GlobalState    `json:"global,omitempty"`
}

// StreamsInState returns the streams the state holds an entry for.
func (w *StateWrapper) StreamsInState() StreamSet {
	set := NewStreamSet()
	if w == nil {
		return set
	}
	switch w.StateType {
	case StateTypeGlobal:
		if w.Global != nil {
			for _, s := range w.Global.StreamStates {
				set.Add(s.StreamDescriptor)
			}
		}
	case StateTypeStream:
		for _, s := range w.Streams {
			set.Add(s.StreamDescriptor)
		}
	}
	return set
}

// ConnectionState is the API shape of connection state submitted with an
// attempt's sync config.
type ConnectionState struct {
	StateType    StateType       `json:"state_type"`
	ConnectionID uuid.UUID       `json:"connection_id"`
	State        json.RawMessage `json:"state,omitempty"`
	StreamState  []StreamState   `json:"stream_state,omitempty"`
	GlobalState  *GlobalState    `json:"global_state,omitempty"`
}

// ToInternal converts the API state into a StateWrapper.
// A nil receiver converts to nil.
func (c *ConnectionState) ToInternal() *StateWrapper {
	if c == nil {
		return nil
	}
	switch c.StateType {
	case StateTypeGlobal:
		return &StateWrapper{StateType: StateTypeGlobal, Global: c.GlobalState}
	case StateTypeStream:
		return &StateWrapper{StateType: StateTypeStream, Streams: c.StreamState}
	case StateTypeLegacy:
		return &StateWrapper{StateType: StateTypeLegacy, LegacyState: c.State}
	default:
		return nil
	}
}

// SyncConfigInput is the API shape of an attempt sync config.
type SyncConfigInput struct {
	SourceConfiguration      json.RawMessage  `json:"source_configuration,omitempty"`
	DestinationConfiguration json.RawMessage  `json:"destination_configuration,omitempty"`
	State                    *ConnectionState `json:"state,omitempty"`
}

// ToInternal converts the API sync config into an AttemptSyncConfig.
func (in SyncConfigInput) ToInternal() AttemptSyncConfig {
	return AttemptSyncConfig{
		SourceConfiguration:      in.SourceConfiguration,
		DestinationConfiguration: in.DestinationConfiguration,
		State:                    in.State.ToInternal(),
	}
}
