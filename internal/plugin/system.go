package plugin

import (
	"fmt"

	"github.com/padbridge/padctl/internal/classify"
	"github.com/padbridge/padctl/internal/midimsg"
	"github.com/padbridge/padctl/internal/obs"
)

// System plugin target identifiers
const (
	SystemPluginID      = "system"
	TargetPreviousScene = "scene.previous"
	TargetNextScene     = "scene.next"
	TargetRefresh       = "refresh"
)

// SystemPlugin exposes the built-in navigation actions. The same targets
// back the gateway's system commands.
type SystemPlugin struct {
	client *obs.Client
}

// NewSystemPlugin creates the built-in plugin
func NewSystemPlugin(client *obs.Client) *SystemPlugin {
	return &SystemPlugin{client: client}
}

func (p *SystemPlugin) ID() string    { return SystemPluginID }
func (p *SystemPlugin) Title() string { return "System" }

func (p *SystemPlugin) Targets() []Target {
	return []Target{
		{ID: TargetPreviousScene, Title: "Previous Scene"},
		{ID: TargetNextScene, Title: "Next Scene"},
		{ID: TargetRefresh, Title: "Refresh"},
	}
}

func (p *SystemPlugin) Trigger(targetID string, _ midimsg.Event, _ classify.Mode) error {
	switch targetID {
	case TargetPreviousScene:
		return p.client.StepScene(-1)
	case TargetNextScene:
		return p.client.StepScene(1)
	case TargetRefresh:
		return p.client.RefreshCatalog()
	}
	return fmt.Errorf("system: unknown target %q", targetID)
}
