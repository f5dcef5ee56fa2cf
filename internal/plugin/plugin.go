// Package plugin defines the closed set of controller plugins and the
// registry that dispatches classified events to them. The set is a
// registration table keyed by stable string id; only two concrete plugins
// exist (the OBS integration and the built-in system actions).
package plugin

import (
	"fmt"

	"github.com/padbridge/padctl/internal/classify"
	"github.com/padbridge/padctl/internal/midimsg"
)

// Target is one mappable action exposed by a plugin
type Target struct {
	ID    string
	Title string
}

// Plugin is a controller integration. Trigger receives fully classified
// events; the mode tells continuous handlers whether the value is an
// absolute position or a relative delta stream.
type Plugin interface {
	ID() string
	Title() string
	Targets() []Target
	Trigger(targetID string, ev midimsg.Event, mode classify.Mode) error
}

// ValueReporter is the optional capability of plugins whose targets carry a
// current normalized value (volume faders and the like)
type ValueReporter interface {
	ValueFor(targetID string) (float64, bool)
}

// StatusReporter is the optional capability of plugins that expose a short
// status line per target
type StatusReporter interface {
	StatusFor(targetID string) string
}

// TargetValidator is the optional capability of plugins that can reject
// persisted target identifiers from superseded schemes
type TargetValidator interface {
	ValidTarget(targetID string) bool
}

// Registry holds the registered plugins in registration order. The first
// registered plugin is the default for synthesized mappings.
type Registry struct {
	order   []string
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin, replacing any previous one with the same id
func (r *Registry) Register(p Plugin) {
	if _, exists := r.plugins[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.plugins[p.ID()] = p
}

// Get returns a plugin by id
func (r *Registry) Get(id string) (Plugin, bool) {
	p, ok := r.plugins[id]
	return p, ok
}

// Default returns the first registered plugin, or nil if none
func (r *Registry) Default() Plugin {
	if len(r.order) == 0 {
		return nil
	}
	return r.plugins[r.order[0]]
}

// Dispatch routes an event to the plugin and target of a mapping
func (r *Registry) Dispatch(pluginID, targetID string, ev midimsg.Event, mode classify.Mode) error {
	p, ok := r.plugins[pluginID]
	if !ok {
		return fmt.Errorf("unknown plugin: %s", pluginID)
	}
	return p.Trigger(targetID, ev, mode)
}

// TargetTitle resolves the display title of a plugin target, falling back to
// the raw id when the plugin no longer lists it
func (r *Registry) TargetTitle(pluginID, targetID string) string {
	p, ok := r.plugins[pluginID]
	if !ok {
		return targetID
	}
	for _, t := range p.Targets() {
		if t.ID == targetID {
			return t.Title
		}
	}
	return targetID
}

// Valid reports whether a persisted mapping still references a usable
// plugin and target-identifier scheme
func (r *Registry) Valid(pluginID, targetID string) bool {
	p, ok := r.plugins[pluginID]
	if !ok {
		return false
	}
	if v, ok := p.(TargetValidator); ok {
		return v.ValidTarget(targetID)
	}
	return true
}
