package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/padbridge/padctl/internal/deck"
)

// OBSSettings is the control-plane connection record
type OBSSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
}

// GatewaySettings configures the companion remote gateway
type GatewaySettings struct {
	PreferredPort int `json:"preferred_port"`
}

// Tunables collects the timing constants that are configuration, not law
type Tunables struct {
	DebounceWindowMS  int `json:"debounce_window_ms"`
	ValueThrottleMS   int `json:"value_throttle_ms"`
	EmptyRetryCount   int `json:"empty_retry_count"`
	EmptyRetryDelayMS int `json:"empty_retry_delay_ms"`
}

// Config holds application configuration
type Config struct {
	OBS      OBSSettings        `json:"obs"`
	Gateway  GatewaySettings    `json:"gateway"`
	Tunables Tunables           `json:"tunables"`
	Devices  []string           `json:"devices"` // input port names; empty = listen on all
	Bindings []deck.CellBinding `json:"bindings"`
}

func defaults() *Config {
	return &Config{
		OBS:     OBSSettings{Host: "localhost", Port: 4455},
		Gateway: GatewaySettings{PreferredPort: 9916},
		Tunables: Tunables{
			DebounceWindowMS:  180,
			ValueThrottleMS:   80,
			EmptyRetryCount:   3,
			EmptyRetryDelayMS: 250,
		},
		Devices: []string{},
	}
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "padctl"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, returning defaults if not found
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Devices == nil {
		cfg.Devices = []string{}
	}
	if cfg.Tunables.DebounceWindowMS <= 0 {
		cfg.Tunables.DebounceWindowMS = 180
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
