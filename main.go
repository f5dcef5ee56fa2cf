package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/padbridge/padctl/internal/classify"
	"github.com/padbridge/padctl/internal/config"
	"github.com/padbridge/padctl/internal/deck"
	"github.com/padbridge/padctl/internal/devices"
	"github.com/padbridge/padctl/internal/engine"
	"github.com/padbridge/padctl/internal/gateway"
	"github.com/padbridge/padctl/internal/midimsg"
	"github.com/padbridge/padctl/internal/obs"
	"github.com/padbridge/padctl/internal/plugin"
)

const appName = "padctl"

func main() {
	debug := flag.Bool("debug", false, "verbose logging")
	listPorts := flag.Bool("list-ports", false, "list MIDI input ports and exit")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Control-plane bridge; callbacks are wired to the engine below
	var eng *engine.Engine
	obsClient := obs.New(obs.Config{
		Host:     cfg.OBS.Host,
		Port:     cfg.OBS.Port,
		Password: cfg.OBS.Password,
	}, obs.Callbacks{
		OnRecording: func(active bool) {
			logger.Info("recording state changed", zap.Bool("active", active))
		},
		OnDisconnected: func() {
			if eng != nil {
				eng.ResetClassifier()
			}
		},
	}, logger.Named("obs"))

	// Closed plugin set; OBS registers first and is the default for
	// synthesized mappings
	registry := plugin.NewRegistry()
	registry.Register(plugin.NewOBSPlugin(obsClient))
	registry.Register(plugin.NewSystemPlugin(obsClient))

	grid := deck.New(func(t midimsg.Trigger) *deck.ControlMapping {
		// a learned Mackie record button defaults to toggling recording
		if t.Kind == midimsg.TriggerMackieTransport && t.Action == midimsg.TransportRecord {
			return &deck.ControlMapping{PluginID: plugin.OBSPluginID, TargetID: plugin.TargetToggleRecord}
		}
		p := registry.Default()
		if p == nil {
			return nil
		}
		targets := p.Targets()
		if len(targets) == 0 {
			return nil
		}
		return &deck.ControlMapping{PluginID: p.ID(), TargetID: targets[0].ID}
	})

	// Restore persisted bindings, dropping mappings from superseded target
	// schemes and re-saving the cleaned state once
	dropped := grid.Restore(cfg.Bindings, func(m deck.ControlMapping) bool {
		return registry.Valid(m.PluginID, m.TargetID)
	})
	if dropped > 0 {
		logger.Warn("dropped mappings using an outdated target scheme; re-learn them",
			zap.Int("count", dropped))
		cfg.Bindings = grid.Bindings()
		if err := cfg.Save(); err != nil {
			logger.Warn("failed to save cleaned config", zap.Error(err))
		}
	}

	classifier := classify.New()
	debouncer := deck.NewDebouncer(time.Duration(cfg.Tunables.DebounceWindowMS) * time.Millisecond)
	eng = engine.New(grid, classifier, debouncer, registry, obsClient, logger.Named("engine"))

	// MIDI devices feed the pipeline; a disconnect invalidates the source's
	// classifier evidence
	manager := devices.NewManager(eng.Deliver, eng.ResetSource, logger.Named("devices"))
	defer manager.Close()

	if *listPorts {
		for _, name := range manager.ListInPorts() {
			log.Println(name)
		}
		return
	}

	if len(cfg.Devices) > 0 {
		for _, name := range cfg.Devices {
			if _, err := manager.Listen(name); err != nil {
				logger.Warn("configured device unavailable", zap.String("port", name), zap.Error(err))
			}
		}
	} else {
		manager.ListenAll()
	}

	// Companion remote gateway
	server := gateway.NewServer(appName, eng, logger.Named("gateway"))
	if err := server.Start(cfg.Gateway.PreferredPort); err != nil {
		logger.Error("gateway unavailable", zap.Error(err))
	}
	defer server.Close()

	// Seed the OBS catalog; the bridge reconnects lazily on demand after
	// any failure
	if err := obsClient.RefreshCatalog(); err != nil {
		logger.Warn("obs not reachable yet", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	cancel()
	eng.Wait()
	obsClient.Disconnect()

	cfg.Bindings = eng.Bindings()
	if err := cfg.Save(); err != nil {
		logger.Warn("failed to save config", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
