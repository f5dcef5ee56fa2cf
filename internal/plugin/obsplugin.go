package plugin

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/padbridge/padctl/internal/classify"
	"github.com/padbridge/padctl/internal/midimsg"
	"github.com/padbridge/padctl/internal/obs"
)

// OBS plugin target identifiers. Scene targets carry the scene UUID; the
// old name-based scheme is rejected by ValidTarget so stale persisted
// mappings are dropped on load instead of misfiring.
const (
	OBSPluginID        = "obs"
	TargetToggleRecord = "record.toggle"
	scenePrefix        = "scene:"
	volumePrefix       = "volume:"
	mutePrefix         = "mute:"
)

// OBSPlugin maps classified control events to OBS commands. Its target list
// is dynamic: it reflects the bridge's cached catalog.
type OBSPlugin struct {
	client *obs.Client
}

// NewOBSPlugin wraps a bridge client as a controller plugin
func NewOBSPlugin(client *obs.Client) *OBSPlugin {
	return &OBSPlugin{client: client}
}

func (p *OBSPlugin) ID() string    { return OBSPluginID }
func (p *OBSPlugin) Title() string { return "OBS Studio" }

// Targets lists scene switches, the record toggle, and volume/mute controls
// for every cached input
func (p *OBSPlugin) Targets() []Target {
	targets := []Target{{ID: TargetToggleRecord, Title: "Toggle Recording"}}
	for _, scene := range p.client.Scenes() {
		targets = append(targets, Target{
			ID:    scenePrefix + scene.UUID,
			Title: "Scene: " + scene.Name,
		})
	}
	for _, input := range p.client.Inputs() {
		targets = append(targets,
			Target{ID: volumePrefix + input.Name, Title: "Volume: " + input.Name},
			Target{ID: mutePrefix + input.Name, Title: "Mute: " + input.Name},
		)
	}
	return targets
}

// Trigger dispatches one event. Volume targets honor the classified mode:
// absolute positions travel the dB curve, relative streams apply deltas.
// Mackie V-Pots use the 6-bit sign-magnitude delta encoding here; generic
// CC encoders use the signed-bit encoding. The two differ numerically.
func (p *OBSPlugin) Trigger(targetID string, ev midimsg.Event, mode classify.Mode) error {
	switch {
	case targetID == TargetToggleRecord:
		return p.client.ToggleRecording()

	case strings.HasPrefix(targetID, scenePrefix):
		return p.client.SetSceneByUUID(strings.TrimPrefix(targetID, scenePrefix))

	case strings.HasPrefix(targetID, mutePrefix):
		return p.client.ToggleMute(strings.TrimPrefix(targetID, mutePrefix))

	case strings.HasPrefix(targetID, volumePrefix):
		input := strings.TrimPrefix(targetID, volumePrefix)
		if mode == classify.ModeRelative && ev.Value <= 127 {
			delta := classify.SignedBitDelta(uint8(ev.Value))
			if ev.Trigger.Kind == midimsg.TriggerMackieVPot {
				delta = classify.MackieDelta(uint8(ev.Value))
			}
			return p.client.AdjustVolume(input, delta)
		}
		return p.client.SetVolumeNormalized(input, ev.Normalized())
	}
	return fmt.Errorf("obs: unknown target %q", targetID)
}

// ValueFor reports the normalized fader position of volume targets
func (p *OBSPlugin) ValueFor(targetID string) (float64, bool) {
	if strings.HasPrefix(targetID, volumePrefix) {
		return p.client.VolumeNormalized(strings.TrimPrefix(targetID, volumePrefix)), true
	}
	return 0, false
}

// StatusFor returns a short status line for snapshot pads
func (p *OBSPlugin) StatusFor(targetID string) string {
	switch {
	case targetID == TargetToggleRecord:
		if p.client.Recording() {
			return "recording"
		}
		return ""
	case strings.HasPrefix(targetID, scenePrefix):
		if strings.TrimPrefix(targetID, scenePrefix) == p.client.CurrentScene().UUID {
			return "live"
		}
		return ""
	case strings.HasPrefix(targetID, mutePrefix):
		if p.client.Muted(strings.TrimPrefix(targetID, mutePrefix)) {
			return "muted"
		}
		return ""
	}
	return ""
}

// ValidTarget rejects scene references that are not UUID-based; those come
// from the superseded name-keyed persistence scheme
func (p *OBSPlugin) ValidTarget(targetID string) bool {
	if strings.HasPrefix(targetID, scenePrefix) {
		_, err := uuid.Parse(strings.TrimPrefix(targetID, scenePrefix))
		return err == nil
	}
	return true
}
