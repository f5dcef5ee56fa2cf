package obs

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Response shapes for the catalog-seeding requests

type sceneListResponse struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
	CurrentProgramSceneUUID string `json:"currentProgramSceneUuid"`
	Scenes                  []struct {
		SceneName  string `json:"sceneName"`
		SceneUUID  string `json:"sceneUuid"`
		SceneIndex int    `json:"sceneIndex"`
	} `json:"scenes"`
}

type inputListResponse struct {
	Inputs []struct {
		InputName string `json:"inputName"`
		InputUUID string `json:"inputUuid"`
	} `json:"inputs"`
}

type recordStatusResponse struct {
	OutputActive bool `json:"outputActive"`
}

type volumeResponse struct {
	InputVolumeMul float64 `json:"inputVolumeMul"`
}

type muteResponse struct {
	InputMuted bool `json:"inputMuted"`
}

func (c *Client) seedScenes(resp responseEnvelope) {
	var list sceneListResponse
	if err := json.Unmarshal(resp.ResponseData, &list); err != nil {
		c.log.Warn("obs: malformed scene list", zap.Error(err))
		return
	}
	// OBS reports scenes in reverse display order
	scenes := make([]Scene, 0, len(list.Scenes))
	for i := len(list.Scenes) - 1; i >= 0; i-- {
		scenes = append(scenes, Scene{Name: list.Scenes[i].SceneName, UUID: list.Scenes[i].SceneUUID})
	}
	c.scenes = scenes
	c.currentScene = Scene{Name: list.CurrentProgramSceneName, UUID: list.CurrentProgramSceneUUID}
	c.notifyCatalogLocked()
}

func (c *Client) seedInputs(resp responseEnvelope) {
	var list inputListResponse
	if err := json.Unmarshal(resp.ResponseData, &list); err != nil {
		c.log.Warn("obs: malformed input list", zap.Error(err))
		return
	}
	inputs := make([]Input, 0, len(list.Inputs))
	for _, in := range list.Inputs {
		inputs = append(inputs, Input{Name: in.InputName, UUID: in.InputUUID})
		name := in.InputName
		c.requestLocked("GetInputVolume", map[string]any{"inputName": name},
			pendingRequest{quiet: true, handle: func(resp responseEnvelope) {
				var vol volumeResponse
				if json.Unmarshal(resp.ResponseData, &vol) == nil {
					c.volumeMul[name] = vol.InputVolumeMul
				}
			}})
		c.requestLocked("GetInputMute", map[string]any{"inputName": name},
			pendingRequest{quiet: true, handle: func(resp responseEnvelope) {
				var mute muteResponse
				if json.Unmarshal(resp.ResponseData, &mute) == nil {
					c.muted[name] = mute.InputMuted
				}
			}})
	}
	c.inputs = inputs
	c.notifyCatalogLocked()
}

func (c *Client) seedRecordStatus(resp responseEnvelope) {
	var status recordStatusResponse
	if err := json.Unmarshal(resp.ResponseData, &status); err != nil {
		return
	}
	c.setRecordingLocked(status.OutputActive)
}

// setRecordingLocked updates the flag and notifies only on an actual change
func (c *Client) setRecordingLocked(active bool) {
	if c.recording == active {
		return
	}
	c.recording = active
	if c.cb.OnRecording != nil {
		c.notify.emit(func() { c.cb.OnRecording(active) })
	}
}

func (c *Client) notifyCatalogLocked() {
	if c.cb.OnCatalogChanged != nil {
		c.notify.emit(c.cb.OnCatalogChanged)
	}
}

// Event payload shapes

type sceneChangedEvent struct {
	SceneName string `json:"sceneName"`
	SceneUUID string `json:"sceneUuid"`
}

type muteChangedEvent struct {
	InputName  string `json:"inputName"`
	InputMuted bool   `json:"inputMuted"`
}

type volumeChangedEvent struct {
	InputName      string  `json:"inputName"`
	InputVolumeMul float64 `json:"inputVolumeMul"`
}

type recordChangedEvent struct {
	OutputActive bool `json:"outputActive"`
}

// handleEventLocked applies an asynchronous push notification to the cache.
// Re-announcements of unchanged values do not re-notify.
func (c *Client) handleEventLocked(data json.RawMessage) {
	var ev eventEnvelope
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn("obs: malformed event", zap.Error(err))
		return
	}

	switch ev.EventType {
	case "CurrentProgramSceneChanged":
		var scene sceneChangedEvent
		if json.Unmarshal(ev.EventData, &scene) != nil {
			return
		}
		next := Scene{Name: scene.SceneName, UUID: scene.SceneUUID}
		if c.currentScene != next {
			c.currentScene = next
			c.notifyCatalogLocked()
		}

	case "SceneListChanged", "SceneCreated", "SceneRemoved", "SceneNameChanged":
		c.requestLocked("GetSceneList", nil, pendingRequest{quiet: true, handle: c.seedScenes})

	case "InputCreated", "InputRemoved", "InputNameChanged":
		c.requestLocked("GetInputList", nil, pendingRequest{quiet: true, handle: c.seedInputs})

	case "InputMuteStateChanged":
		var mute muteChangedEvent
		if json.Unmarshal(ev.EventData, &mute) != nil {
			return
		}
		if prev, known := c.muted[mute.InputName]; !known || prev != mute.InputMuted {
			c.muted[mute.InputName] = mute.InputMuted
			if c.cb.OnMute != nil {
				c.notify.emit(func() { c.cb.OnMute(mute.InputName, mute.InputMuted) })
			}
		}

	case "InputVolumeChanged":
		var vol volumeChangedEvent
		if json.Unmarshal(ev.EventData, &vol) != nil {
			return
		}
		c.volumeMul[vol.InputName] = vol.InputVolumeMul

	case "RecordStateChanged":
		var rec recordChangedEvent
		if json.Unmarshal(ev.EventData, &rec) != nil {
			return
		}
		c.setRecordingLocked(rec.OutputActive)

	case "SceneItemEnableStateChanged":
		c.notifyCatalogLocked()
	}
}

// Cache reads. Each takes the mutex briefly and copies out.

// Scenes returns the cached scene list in display order
func (c *Client) Scenes() []Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Scene, len(c.scenes))
	copy(out, c.scenes)
	return out
}

// CurrentScene returns the cached program scene
func (c *Client) CurrentScene() Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentScene
}

// Inputs returns the cached input list
func (c *Client) Inputs() []Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Input, len(c.inputs))
	copy(out, c.inputs)
	return out
}

// Recording returns the cached recording flag
func (c *Client) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Muted returns the cached mute flag for an input
func (c *Client) Muted(input string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted[input]
}
