// Package featureflag evaluates boolean feature flags against an explicit
// evaluation context. There is no global client: callers pass a Client and
// a Context into every evaluation.
package featureflag

import "github.com/google/uuid"

// Flag is a named boolean flag with the value served when no source
// configures it.
type Flag struct {
	Name    string
	Default bool
}

// EnableResumableFullRefresh gates keeping the state of resumable
// full-refresh streams on retried attempts.
var EnableResumableFullRefresh = Flag{Name: "platform.enable-resumable-full-refresh", Default: false}

// ContextType is the kind of entity a flag is evaluated for
type ContextType string

const (
	ContextConnection ContextType = "connection"
	ContextWorkspace  ContextType = "workspace"
)

// Context identifies the entity a flag is evaluated for.
type Context struct {
	Type ContextType
	Key  string
}

// Connection returns the evaluation context of a connection.
func Connection(id uuid.UUID) Context {
	return Context{Type: ContextConnection, Key: id.String()}
}

// Workspace returns the evaluation context of a workspace.
func Workspace(id uuid.UUID) Context {
	return Context{Type: ContextWorkspace, Key: id.String()}
}

// Client evaluates flags.
type Client interface {
	BoolVariation(flag Flag, ctx Context) bool
}

// StaticClient serves fixed values by flag name, falling back to the flag
// default.
type StaticClient struct {
	values map[string]bool
}

// NewStaticClient returns a client serving values. A nil map serves every
// flag's default.
func NewStaticClient(values map[string]bool) *StaticClient {
	return &StaticClient{values: values}
}

// BoolVariation returns the configured value of flag, ignoring ctx.
func (c *StaticClient) BoolVariation(flag Flag, _ Context) bool {
	if v, ok := c.values[flag.Name]; ok {
		return v
	}
	return flag.Default
}
