package obs

// SetSceneByUUID switches the program scene
func (c *Client) SetSceneByUUID(sceneUUID string) error {
	return c.submit("SetCurrentProgramScene", map[string]any{"sceneUuid": sceneUUID}, pendingRequest{})
}

// StepScene moves the program scene by an offset within the cached scene
// list, clamped at the ends
func (c *Client) StepScene(offset int) error {
	c.mu.Lock()
	idx := -1
	for i, s := range c.scenes {
		if s.UUID == c.currentScene.UUID {
			idx = i
			break
		}
	}
	next := idx + offset
	if next < 0 {
		next = 0
	}
	if next >= len(c.scenes) {
		next = len(c.scenes) - 1
	}
	var target string
	if next >= 0 && next < len(c.scenes) && next != idx {
		target = c.scenes[next].UUID
	}
	c.mu.Unlock()

	if target == "" {
		return nil
	}
	return c.SetSceneByUUID(target)
}

// ToggleRecording flips the remote recording state
func (c *Client) ToggleRecording() error {
	return c.submit("ToggleRecord", nil, pendingRequest{})
}

// RefreshCatalog re-requests the full remote catalog
func (c *Client) RefreshCatalog() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disconnected {
		// the catalog refresh rides on the Identified transition
		c.connectLocked()
		return nil
	}
	c.refreshCatalogLocked()
	return nil
}
