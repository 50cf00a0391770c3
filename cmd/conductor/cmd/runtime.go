package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/scscodes/conductor/internal/agent"
	"github.com/scscodes/conductor/internal/config"
	"github.com/scscodes/conductor/internal/engine"
	"github.com/scscodes/conductor/internal/events"
	"github.com/scscodes/conductor/internal/lifecycle"
	"github.com/scscodes/conductor/internal/logging"
	"github.com/scscodes/conductor/internal/store"
	"github.com/scscodes/conductor/internal/template"
)

// Runtime holds every long-lived resource a command needs, built once
// per invocation. No module-level singletons.
type Runtime struct {
	Config *config.Config
	Logger *logging.Logger

	Store      *store.Store
	Executions *store.ExecutionStore
	Steps      *store.StepStore
	Artifacts  *store.ArtifactStore
	Findings   *store.FindingStore
	AuditLog   *store.ExecutionLogStore
	Projects   *store.ProjectStore

	Bus       *events.Bus
	Registry  *agent.Registry
	Lifecycle *lifecycle.Manager
	Templates *template.Provider
	Engine    *engine.Engine
}

// runtimeOptions tweaks what the builder wires up.
type runtimeOptions struct {
	watchTemplates bool
}

// buildRuntime loads configuration and wires the full engine stack.
// Callers must Close the runtime when done.
func buildRuntime(opts runtimeOptions) (*Runtime, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Executions: store.NewExecutionStore(st),
		Steps:      store.NewStepStore(st),
		Artifacts:  store.NewArtifactStore(st),
		Findings:   store.NewFindingStore(st),
		AuditLog:   store.NewExecutionLogStore(st),
		Projects:   store.NewProjectStore(st),
		Bus:        events.NewBus(cfg.Engine.EventBufferSize),
		Registry:   agent.NewRegistry(),
	}

	for _, name := range cfg.Agents.Stubs {
		if err := rt.Registry.Register(agent.NewStubAgent(name)); err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.Templates, err = template.New(cfg.Templates.Dir, logger.Logger, template.Options{
		Watch: opts.watchTemplates && cfg.Templates.Watch,
		Seed:  true,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Lifecycle = lifecycle.NewManager(rt.Executions, rt.Steps, logger.Logger)
	executor := agent.NewTaskExecutor(rt.Registry, rt.Bus)
	orch := engine.NewOrchestrator(rt.Lifecycle, executor, rt.Artifacts, rt.Findings, rt.Bus, logger.Logger)
	rt.Engine = engine.New(rt.Templates, rt.Projects, rt.Lifecycle, orch, rt.AuditLog, rt.Bus, logger.Logger)

	return rt, nil
}

// Close releases runtime resources in reverse dependency order.
func (rt *Runtime) Close() {
	if rt.Templates != nil {
		_ = rt.Templates.Close()
	}
	if rt.Bus != nil {
		rt.Bus.Close()
	}
	if rt.Store != nil {
		_ = rt.Store.Close()
	}
}
