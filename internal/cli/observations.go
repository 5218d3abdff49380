package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/spf13/cobra"
)

func newObservationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "observations",
		Aliases: []string{"obs"},
		Short:   "Inspect recorded agent observations",
	}

	cmd.AddCommand(newObservationsListCmd())
	cmd.AddCommand(newObservationsToolsCmd())
	return cmd
}

func newObservationsListCmd() *cobra.Command {
	var (
		agentName string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.observations == nil {
				return fmt.Errorf("observations are not persisted (observer.store=%s)", cfg.Observer.Store)
			}

			var list []observe.Observation
			if agentName != "" {
				list, err = a.observations.ListByAgent(agentName, limit)
			} else {
				list, err = a.observations.Recent(limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No observations recorded yet.")
				return nil
			}
			for _, obs := range list {
				fmt.Fprintf(out, "%s  %-24s %-12s %-9s %6.2fs  %d steps  %d tools\n",
					obs.Start.Local().Format("2006-01-02 15:04:05"), obs.ID, obs.Agent, obs.Status,
					obs.Elapsed.Seconds(), len(obs.Steps), len(obs.Tools))
				if obs.Error != "" {
					fmt.Fprintf(out, "    error: %s\n", obs.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "only this agent")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of observations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newObservationsToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools [agent]",
		Short: "Show tool usage counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.observations == nil {
				return fmt.Errorf("observations are not persisted (observer.store=%s)", cfg.Observer.Store)
			}

			agentName := ""
			if len(args) > 0 {
				agentName = args[0]
			}
			counts, err := a.observations.ToolCounts(agentName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(counts) == 0 {
				fmt.Fprintln(out, "No tools used yet.")
				return nil
			}
			width := 0
			for _, tc := range counts {
				width = max(width, len(tc.Tool))
			}
			for _, tc := range counts {
				fmt.Fprintf(out, "  %s%s  %4d calls  %.3fs total\n",
					tc.Tool, strings.Repeat(" ", width-len(tc.Tool)), tc.Count, tc.Total.Seconds())
			}
			return nil
		},
	}
}
