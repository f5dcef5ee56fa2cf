package config

import (
	"os"
	"testing"

	"github.com/padbridge/padctl/internal/deck"
	"github.com/padbridge/padctl/internal/midimsg"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OBS.Host != "localhost" || cfg.OBS.Port != 4455 {
		t.Errorf("obs defaults: %+v", cfg.OBS)
	}
	if cfg.Gateway.PreferredPort != 9916 {
		t.Errorf("gateway default port: %d", cfg.Gateway.PreferredPort)
	}
	if cfg.Tunables.DebounceWindowMS != 180 || cfg.Tunables.ValueThrottleMS != 80 {
		t.Errorf("tunable defaults: %+v", cfg.Tunables)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	trig := midimsg.Trigger{Kind: midimsg.TriggerNote, Channel: 1, Number: 36}
	srcID := 2
	cfg := defaults()
	cfg.OBS.Password = "hunter2"
	cfg.Devices = []string{"Launchpad Mini"}
	cfg.Bindings = []deck.CellBinding{
		{
			Trigger:    &trig,
			SourceID:   &srcID,
			SourceName: "Launchpad Mini",
			Mapping:    &deck.ControlMapping{PluginID: "obs", TargetID: "record.toggle"},
		},
	}
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.OBS.Password != "hunter2" {
		t.Errorf("password lost: %q", loaded.OBS.Password)
	}
	if len(loaded.Devices) != 1 || loaded.Devices[0] != "Launchpad Mini" {
		t.Errorf("devices: %v", loaded.Devices)
	}
	if len(loaded.Bindings) != 1 {
		t.Fatalf("bindings: %d", len(loaded.Bindings))
	}
	b := loaded.Bindings[0]
	if b.Trigger == nil || *b.Trigger != trig {
		t.Errorf("trigger: %+v", b.Trigger)
	}
	if b.SourceID == nil || *b.SourceID != 2 || b.SourceName != "Launchpad Mini" {
		t.Errorf("source identity: %+v %q", b.SourceID, b.SourceName)
	}
	if b.Mapping == nil || b.Mapping.TargetID != "record.toggle" {
		t.Errorf("mapping: %+v", b.Mapping)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := defaults().Save(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("corrupt config accepted")
	}
}
