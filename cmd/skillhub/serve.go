package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/skillhub-ai/skillhub/internal/config"
	"github.com/skillhub-ai/skillhub/internal/registry"
	"github.com/skillhub-ai/skillhub/internal/runtime"
	"github.com/skillhub-ai/skillhub/internal/server"
	"github.com/skillhub-ai/skillhub/internal/session"
)

// ServeCmd starts the agent HTTP server.
type ServeCmd struct {
	Addr         string `help:"Listen address (overrides config)."`
	Skills       string `help:"Skills directory (overrides config)." type:"path"`
	AgentsConfig string `name:"agents-config" help:"Agents YAML path (overrides config)." type:"path"`
	DefaultModel string `name:"default-model" help:"Default model (overrides config)."`
	Watch        bool   `help:"Reload agents when skill files change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	log := logging.New().WithComponent("serve")

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)

	telem := setupTelemetry(cfg)
	defer telem.Close()

	reg, err := registry.LoadAll(cfg.Agents.ConfigPath, nil)
	if err != nil {
		return err
	}
	telem.LogEvent("registry_loaded", map[string]interface{}{"agents": len(reg.Names())})

	factory := runtime.NewProviderFactory(runtime.FactoryConfig{
		MaxTokens: cfg.LLM.MaxTokens,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.GetAPIKey,
	})
	runner := runtime.NewRunner(factory)

	var store session.Store
	if cfg.Sessions.Path != "" {
		store, err = session.NewSQLiteStore(cfg.Sessions.Path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	srv := server.New(reg, runner, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down", map[string]interface{}{})
		cancel()
	}()

	if c.Watch || cfg.Skills.Watch {
		stop, err := watchSkills(cfg, srv, log)
		if err != nil {
			log.Warn("file watching disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer stop()
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("listening", map[string]interface{}{
		"addr":   cfg.Server.Addr,
		"agents": len(reg.Names()),
	})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (c *ServeCmd) applyOverrides(cfg *config.Config) {
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Skills != "" {
		cfg.Skills.Path = c.Skills
	}
	if c.AgentsConfig != "" {
		cfg.Agents.ConfigPath = c.AgentsConfig
	}
	if c.DefaultModel != "" {
		cfg.Agents.DefaultModel = c.DefaultModel
	}
}

func setupTelemetry(cfg *config.Config) telemetry.Exporter {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint != "" {
		telem, err := telemetry.NewExporter(cfg.Telemetry.Protocol, cfg.Telemetry.Endpoint)
		if err == nil {
			return telem
		}
	}
	return telemetry.NewNoopExporter()
}

// watchSkills reloads the registry when files under the skills tree or
// the agents config change. Reloads are debounced since editors emit
// several events per save.
func watchSkills(cfg *config.Config, srv *server.Server, log *logging.Logger) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addRecursive(watcher, cfg.Skills.Path); err != nil {
		watcher.Close()
		return nil, err
	}
	if dir := filepath.Dir(cfg.Agents.ConfigPath); dir != "" {
		watcher.Add(dir)
	}

	done := make(chan struct{})
	go func() {
		var pending <-chan time.Time
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						watcher.Add(event.Name)
					}
				}
				pending = time.After(500 * time.Millisecond)
			case <-pending:
				pending = nil
				reg, err := registry.LoadAll(cfg.Agents.ConfigPath, nil)
				if err != nil {
					log.Error("reload failed", map[string]interface{}{"error": err.Error()})
					continue
				}
				srv.SetRegistry(reg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", map[string]interface{}{"error": err.Error()})
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			return watcher.Add(path)
		}
		return nil
	})
}
