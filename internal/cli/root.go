package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/agentplay/internal/config"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/playground"
	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"
)

var (
	cfgFile     string
	logLevel    string
	autoRestart bool

	// loaded at init time
	paths     config.Paths
	cfg       config.Config
	issues    []config.ValidationIssue
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	var (
		agentName string
		observe   bool
		stream    bool
	)

	cmd := &cobra.Command{
		Use:   "agentplay",
		Short: "Interactive AI agent playground",
		Long: "agentplay is an interactive playground for AI agents. Switch between built-in agents,\n" +
			"create your own, and watch how they work.",
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireValidConfig(); err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if agentName == "" {
				agentName = cfg.DefaultAgent
			}
			if err := a.checkCredentials(agentName); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess := a.newSession()
			sess.SetObserve(observe)
			if err := a.startPlugins(ctx, sess, cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := sess.Begin(ctx, agentName); err != nil {
				return err
			}
			defer sess.End(context.Background())

			pg := playground.New(sess, a.registry, a.observer, a.files, playground.Options{
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
				ExportDir: paths.Conversations,
				Stream:    stream,
			}, log)
			return pg.Run(ctx)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.agentplay/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().BoolVar(&autoRestart, "autorestart", false, "restart the process when its binary changes (development)")

	cmd.Flags().StringVar(&agentName, "agent", "", "agent to start with (default from config)")
	cmd.Flags().BoolVar(&observe, "observe", false, "start with observation mode on")
	cmd.Flags().BoolVar(&stream, "stream", false, "print replies as they are generated")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMessageCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newObservationsCmd())

	return cmd
}

// setup resolves paths, loads .env files and the config, and builds the
// root logger.
func setup() error {
	var err error
	paths, err = config.ResolvePaths()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		paths.Config = cfgFile
	}
	if autoRestart {
		go autorestart.RestartOnChange()
	}

	if err := config.LoadDotEnv(".env", paths.Env); err != nil {
		return err
	}
	cfg, err = config.Load(paths.Config)
	if err != nil {
		return err
	}
	issues = config.Validate(&cfg)

	lc := cfg.Logging
	consoleLevel := lc.ConsoleLevel
	if logLevel != "" {
		lc.Level = logLevel
		consoleLevel = logLevel
	}
	log, logCloser, err = logging.NewWithOptions(logging.Options{
		Console:      os.Stderr,
		ConsoleLevel: consoleLevel,
		ConsoleStyle: lc.ConsoleStyle,
		File:         paths.LogFile(lc),
		FileLevel:    lc.Level,
		MaxSizeMB:    lc.MaxSizeMB,
		MaxBackups:   lc.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	return nil
}

// requireValidConfig fails when the loaded config has validation issues.
func requireValidConfig() error {
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = "  - " + issue.String()
	}
	return &config.ConfigError{Message: fmt.Sprintf("%s has %d issue(s):\n%s", paths.Config, len(issues), strings.Join(lines, "\n"))}
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
