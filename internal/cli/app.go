package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/agentplay/internal/agent"
	"github.com/soyeahso/agentplay/internal/config"
	"github.com/soyeahso/agentplay/internal/hooks"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/soyeahso/agentplay/internal/plugin"
	"github.com/soyeahso/agentplay/internal/registry"
	"github.com/soyeahso/agentplay/internal/session"
	"github.com/soyeahso/agentplay/internal/store"
)

// app holds the components shared by the REPL and the one-shot commands.
type app struct {
	hooks        *hooks.Manager
	plugins      *plugin.Registry
	files        *store.AgentFiles
	registry     *registry.Registry
	providers    *llm.Registry
	runner       *agent.Runner
	observer     *observe.Observer
	db           *store.DB
	observations *store.ObservationStore
	interactions io.Closer
}

// newApp builds every component from the loaded config.
func newApp() (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating %s: %w", paths.Base, err)
	}
	a := &app{}

	// Hooks and the agent registry
	a.hooks = hooks.NewManager(log)
	a.files = store.NewAgentFiles(paths.Agents)
	a.registry = registry.New(a.files, a.hooks, log)
	if err := a.registry.RegisterBuiltins(); err != nil {
		return nil, err
	}
	loaded, err := a.registry.LoadAll()
	if err != nil {
		log.Warn().Err(err).Str("dir", paths.Agents).Msg("could not list saved agents")
	} else if len(loaded) > 0 {
		log.Info().Strs("agents", loaded).Msg("loaded saved agents")
	}

	// Providers and the execution engine
	a.providers = llm.NewRegistryFromConfig(cfg, log)
	a.runner = agent.NewRunner(a.providers, agent.Options{
		DefaultModel: cfg.DefaultModel,
		MaxTokens:    cfg.Agents.MaxTokens,
		Temperature:  cfg.Agents.Temperature,
	}, log)

	// Observation store (SQLite or in-memory only)
	var sink observe.Sink
	if cfg.Observer.Store == "sqlite" {
		a.db, err = store.Open(paths.ObservationsDB(), log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.observations = store.NewObservationStore(a.db)
		sink = a.observations
		log.Debug().Str("path", paths.ObservationsDB()).Msg("using SQLite observation store")
	}

	// Interaction log
	iw, err := logging.NewFileWriter(paths.InteractionLog(), cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening interaction log: %w", err)
	}
	a.interactions = iw
	a.observer = observe.New(iw, sink, log)

	a.plugins = plugin.NewRegistry(a.hooks, log)
	if err := a.plugins.Register(plugin.NewActivity()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newSession creates a session manager over the app's components.
func (a *app) newSession() *session.Manager {
	return session.New(a.registry, a.runner, a.observer, a.hooks, session.Options{
		MaxHistory:      cfg.Session.MaxHistory,
		ContextMessages: cfg.Session.ContextMessages,
		DefaultAgent:    cfg.DefaultAgent,
	}, log)
}

// startPlugins initializes the registered plugins, adding auto-export for
// sess when the config asks for it.
func (a *app) startPlugins(ctx context.Context, sess *session.Manager, out io.Writer) error {
	if cfg.Session.AutoExport {
		export := func() (string, error) { return sess.WriteExport(paths.Conversations) }
		if err := a.plugins.Register(plugin.NewAutoExport(export, out)); err != nil {
			return err
		}
	}
	return a.plugins.InitAll(ctx)
}

// checkCredentials fails when the provider behind the agent's model has
// no credentials.
func (a *app) checkCredentials(agentName string) error {
	def, err := a.registry.Get(agentName)
	if err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}
	model := a.runner.ModelFor(def)
	if err := config.CheckCredentials(&cfg, model); err != nil {
		return fmt.Errorf("%w\nset it in the environment or %s, or pick an offline model such as echo:echo", err, paths.Env)
	}
	return nil
}

// Close releases the database and log files.
func (a *app) Close() error {
	var errs []error
	if a.plugins != nil {
		a.plugins.CloseAll()
	}
	if a.interactions != nil {
		errs = append(errs, a.interactions.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
