package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send one-off messages",
	}

	cmd.AddCommand(newMessageSendCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		agentName string
		stream    bool
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to an agent and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireValidConfig(); err != nil {
				return err
			}
			message := strings.Join(args, " ")

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
			if err := a.startPlugins(ctx, sess, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if err := sess.Begin(ctx, agentName); err != nil {
				return err
			}
			defer sess.End(context.Background())

			out := cmd.OutOrStdout()
			var entry domain.ConversationEntry
			if stream {
				entry, err = sess.SendStream(ctx, message, func(evt llm.StreamEvent) {
					if evt.Type == "delta" {
						fmt.Fprint(out, evt.Content)
					}
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
			} else {
				entry, err = sess.Send(ctx, message)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, entry.Text)
			}

			if m := entry.Meta; m != nil && m.Model != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[model=%s tokens=%d+%d]\n",
					m.Model, m.InputTokens, m.OutputTokens)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent to send to (default from config)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the response")

	return cmd
}
