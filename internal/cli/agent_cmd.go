package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentInfoCmd())
	cmd.AddCommand(newAgentDeleteCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and saved agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, def := range a.registry.Definitions() {
				kind := "custom"
				if def.BuiltIn {
					kind = "built-in"
				}
				mark := ""
				if def.Config.Name == cfg.DefaultAgent {
					mark = " (default)"
				}
				fmt.Fprintf(out, "  %-16s %-9s model=%s tools=%d%s\n",
					def.Config.Name, kind, a.runner.ModelFor(def), def.Tools.Len(), mark)
			}
			return nil
		},
	}
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [name]",
		Short: "Show details about an agent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			name := cfg.DefaultAgent
			if len(args) > 0 {
				name = args[0]
			}
			def, err := a.registry.Get(name)
			if err != nil {
				return err
			}

			c := def.Config
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent: %s\n", c.Name)
			fmt.Fprintf(out, "  Built-in:     %v\n", def.BuiltIn)
			fmt.Fprintf(out, "  Model:        %s\n", a.runner.ModelFor(def))
			fmt.Fprintf(out, "  Dependencies: %s\n", c.DepsType)
			fmt.Fprintf(out, "  Output:       %s\n", c.OutputType)
			if c.Description != "" {
				fmt.Fprintf(out, "  Description:  %s\n", c.Description)
			}
			if c.Template != "" {
				fmt.Fprintf(out, "  Template:     %s\n", c.Template)
			}
			if c.CreatedAt != "" {
				fmt.Fprintf(out, "  Created:      %s\n", c.CreatedAt)
			}
			if !def.BuiltIn {
				fmt.Fprintf(out, "  File:         %s\n", a.files.Path(c.Name))
			}
			for _, t := range c.Tools {
				fmt.Fprintf(out, "  Tool:         %s (%s) %s\n", t.Name, t.Kind.Normalized(), t.Description)
			}
			fmt.Fprintf(out, "  Instructions:\n    %s\n", strings.ReplaceAll(c.Instructions, "\n", "\n    "))
			return nil
		},
	}
}

func newAgentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved custom agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.registry.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted agent %s\n", args[0])
			return nil
		},
	}
}
