package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/agentplay/internal/config"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/store"
	"github.com/soyeahso/agentplay/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agentplay status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentplay %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:        %s\n", paths.Config)
			fmt.Fprintf(out, "Agents:        %s\n", paths.Agents)
			fmt.Fprintf(out, "Conversations: %s\n", paths.Conversations)
			fmt.Fprintf(out, "Logs:          %s\n", paths.Logs)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Default agent: %s\n", cfg.DefaultAgent)
			fmt.Fprintf(out, "Default model: %s\n", cfg.DefaultModel)
			fmt.Fprintf(out, "Session:       maxHistory=%d contextMessages=%d autoExport=%v\n",
				cfg.Session.MaxHistory, cfg.Session.ContextMessages, cfg.Session.AutoExport)

			// LLM providers
			providers := llm.NewRegistryFromConfig(cfg, log).List()
			fmt.Fprintf(out, "LLM:           %s\n", strings.Join(providers, ", "))
			if err := config.CheckCredentials(&cfg, cfg.DefaultModel); err != nil {
				fmt.Fprintf(out, "               %v\n", err)
			}

			// Saved agents
			names, err := store.NewAgentFiles(paths.Agents).List()
			if err != nil {
				fmt.Fprintf(out, "Saved agents:  error: %v\n", err)
			} else if len(names) == 0 {
				fmt.Fprintln(out, "Saved agents:  (none)")
			} else {
				fmt.Fprintf(out, "Saved agents:  %s\n", strings.Join(names, ", "))
			}

			// Observations
			fmt.Fprintf(out, "Observer:      store=%s", cfg.Observer.Store)
			if cfg.Observer.Store == "sqlite" {
				if n, err := countObservations(); err != nil {
					fmt.Fprintf(out, " (error: %v)", err)
				} else {
					fmt.Fprintf(out, " observations=%d", n)
				}
			}
			fmt.Fprintln(out)

			// Validation
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func countObservations() (int, error) {
	db, err := store.Open(paths.ObservationsDB(), log)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return store.NewObservationStore(db).Count()
}
