package featureflag

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileFlags is the on-disk layout of a flag file:
//
//	flags:
//	  - name: platform.enable-resumable-full-refresh
//	    serve: false
//	    context:
//	      - type: connection
//	        include: ["7d0f...", "..."]
//	        serve: true
type fileFlags struct {
	Flags []fileFlag `yaml:"flags"`
}

type fileFlag struct {
	Name    string        `yaml:"name"`
	Serve   bool          `yaml:"serve"`
	Context []fileContext `yaml:"context"`
}

type fileContext struct {
	Type    ContextType `yaml:"type"`
	Include []string    `yaml:"include"`
	Serve   bool        `yaml:"serve"`
}

// FileClient serves flags from a YAML file. Context rules are checked in
// file order and the first rule including the evaluated context wins.
type FileClient struct {
	path string

	mu    sync.RWMutex
	flags map[string]fileFlag
}

// NewFileClient loads the flag file at path.
func NewFileClient(path string) (*FileClient, error) {
	c := &FileClient{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the flag file. On error the previous flags stay in effect.
func (c *FileClient) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read flag file: %w", err)
	}

	var parsed fileFlags
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse flag file: %w", err)
	}

	flags := make(map[string]fileFlag, len(parsed.Flags))
	for _, f := range parsed.Flags {
		if f.Name == "" {
			return fmt.Errorf("parse flag file: flag without name")
		}
		for _, rule := range f.Context {
			switch rule.Type {
			case ContextConnection, ContextWorkspace:
			default:
				return fmt.Errorf("parse flag file: flag %q has unknown context type %q", f.Name, rule.Type)
			}
		}
		flags[f.Name] = f
	}

	c.mu.Lock()
	c.flags = flags
	c.mu.Unlock()
	return nil
}

// BoolVariation evaluates flag for ctx.
func (c *FileClient) BoolVariation(flag Flag, ctx Context) bool {
	c.mu.RLock()
	f, ok := c.flags[flag.Name]
	c.mu.RUnlock()
	if !ok {
		return flag.Default
	}

	for _, rule := range f.Context {
		if rule.Type != ctx.Type {
			continue
		}
		for _, key := range rule.Include {
			if key == ctx.Key {
				return rule.Serve
			}
		}
	}
	return f.Serve
}
