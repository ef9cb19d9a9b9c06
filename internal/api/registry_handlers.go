package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hyperengineering/syncplane/internal/store"
	"github.com/hyperengineering/syncplane/internal/types"
	"github.com/hyperengineering/syncplane/internal/validation"
)

var overrideScopes = []string{
	string(types.OverrideScopeWorkspace),
	string(types.OverrideScopeDestination),
}

// CreateDestinationDefinition handles POST /api/v1/destination_definitions
func (h *Handler) CreateDestinationDefinition(w http.ResponseWriter, r *http.Request) {
	var def types.DestinationDefinition
	if !decodeJSON(w, r, &def) {
		return
	}

	c := &validation.Collector{}
	c.Add(validation.ValidateRequired("name", def.Name))
	c.Add(validation.ValidateRequired("docker_image_tag", def.DockerImageTag))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	created, err := h.registry.CreateDestinationDefinition(r.Context(), def)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// CreateDestination handles POST /api/v1/destinations
func (h *Handler) CreateDestination(w http.ResponseWriter, r *http.Request) {
	var dest types.Destination
	if !decodeJSON(w, r, &dest) {
		return
	}

	c := &validation.Collector{}
	c.Add(validation.ValidateRequired("name", dest.Name))
	c.Add(requireID("workspace_id", dest.WorkspaceID))
	c.Add(requireID("definition_id", dest.DefinitionID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	created, err := h.registry.CreateDestination(r.Context(), dest)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// CreateConnection handles POST /api/v1/connections
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var conn types.Connection
	if !decodeJSON(w, r, &conn) {
		return
	}

	c := &validation.Collector{}
	c.Add(validation.ValidateRequired("name", conn.Name))
	c.Add(requireID("workspace_id", conn.WorkspaceID))
	c.Add(requireID("destination_id", conn.DestinationID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	created, err := h.registry.CreateConnection(r.Context(), conn)
	if err != nil {
		MapError(w, r, err)
		return
	}
	slog.Info("connection created",
		"component", "api",
		"action", "create_connection",
		"connection_id", created.ID,
		"destination_id", created.DestinationID,
	)
	writeJSON(w, http.StatusCreated, created)
}

// SetVersionOverride handles PUT /api/v1/version_overrides
func (h *Handler) SetVersionOverride(w http.ResponseWriter, r *http.Request) {
	var o types.VersionOverride
	if !decodeJSON(w, r, &o) {
		return
	}

	c := &validation.Collector{}
	c.Add(requireID("definition_id", o.DefinitionID))
	c.Add(requireID("scope_id", o.ScopeID))
	c.Add(validation.ValidateEnum("scope", string(o.Scope), overrideScopes))
	c.Add(validation.ValidateRequired("docker_image_tag", o.DockerImageTag))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.registry.SetVersionOverride(r.Context(), o); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetConnection handles GET /api/v1/connections/{connection_id}
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionIDParam(w, r)
	if !ok {
		return
	}

	conn, err := h.registry.GetConnection(r.Context(), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// GetState handles GET /api/v1/connections/{connection_id}/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionIDParam(w, r)
	if !ok {
		return
	}

	state, err := h.registry.GetCurrentState(r.Context(), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if state == nil {
		MapError(w, r, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// PutState handles PUT /api/v1/connections/{connection_id}/state
func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionIDParam(w, r)
	if !ok {
		return
	}

	var state types.StateWrapper
	if !decodeJSON(w, r, &state) {
		return
	}
	stateTypes := []string{
		string(types.StateTypeStream),
		string(types.StateTypeGlobal),
		string(types.StateTypeLegacy),
	}
	if verr := validation.ValidateEnum("state_type", string(state.StateType), stateTypes); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	if err := h.registry.WriteState(r.Context(), id, state); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGenerations handles GET /api/v1/connections/{connection_id}/generations
func (h *Handler) GetGenerations(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionIDParam(w, r)
	if !ok {
		return
	}

	gens, err := h.registry.GetCurrentGenerations(r.Context(), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if gens == nil {
		gens = []types.StreamGeneration{}
	}
	writeJSON(w, http.StatusOK, gens)
}

func connectionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "connection_id")
	if verr := validation.ValidateUUID("connection_id", raw); verr != nil {
		WriteProblem(w, r, http.StatusBadRequest, verr.Message)
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}

func requireID(field string, id uuid.UUID) *validation.ValidationError {
	if id == uuid.Nil {
		return &validation.ValidationError{Field: field, Message: "is required"}
	}
	return nil
}
