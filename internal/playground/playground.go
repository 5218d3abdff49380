// Package playground is the interactive REPL: plain lines go to the active
// agent, lines starting with a slash are commands.
package playground

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/soyeahso/agentplay/internal/registry"
	"github.com/soyeahso/agentplay/internal/session"
	"github.com/soyeahso/agentplay/internal/store"
)

// DefaultModels are offered by the creation wizard, first is the default.
var DefaultModels = []string{
	"openai:gpt-4o",
	"openai:gpt-4o-mini",
	"anthropic:claude-3-5-sonnet",
	"ollama:llama3",
	"echo:echo",
}

var rule = strings.Repeat("-", 60)

// Options configure a Playground.
type Options struct {
	In        io.Reader
	Out       io.Writer
	ExportDir string   // where /export writes conversations
	Models    []string // wizard model menu, defaults to DefaultModels
	Stream    bool     // print replies as they are generated
}

// Playground drives one interactive session.
type Playground struct {
	session  *session.Manager
	registry *registry.Registry
	observer *observe.Observer
	files    *store.AgentFiles

	in        io.Reader
	out       io.Writer
	exportDir string
	models    []string
	stream    bool

	startReader sync.Once
	stopReader  sync.Once
	lines       chan string
	done        chan struct{}

	reportedFailures int
	log              *logging.Logger
}

// New creates a playground over an existing session. observer and files
// may be nil.
func New(sess *session.Manager, reg *registry.Registry, observer *observe.Observer, files *store.AgentFiles, opts Options, log *logging.Logger) *Playground {
	models := opts.Models
	if len(models) == 0 {
		models = DefaultModels
	}
	return &Playground{
		session:   sess,
		registry:  reg,
		observer:  observer,
		files:     files,
		in:        opts.In,
		out:       opts.Out,
		exportDir: opts.ExportDir,
		models:    models,
		stream:    opts.Stream,
		done:      make(chan struct{}),
		log:       log.Sub("playground"),
	}
}

// Run reads lines until /quit, end of input or ctx is cancelled.
func (p *Playground) Run(ctx context.Context) error {
	defer p.stop()
	if p.session.Observing() {
		p.tap(true)
	}

	fmt.Fprintln(p.out, "🚀 Agent Playground Started")
	fmt.Fprintf(p.out, "Session ID: %s\n", p.session.ID())
	fmt.Fprintf(p.out, "Conversation ID: %s\n", p.session.ConversationID())
	fmt.Fprintln(p.out, strings.Repeat("=", 60))
	fmt.Fprintln(p.out, "🎮 Agent Playground Ready!")
	fmt.Fprintln(p.out, "Type /help for commands, or start chatting with your agents.")
	fmt.Fprintln(p.out, strings.Repeat("=", 60))

	for {
		line, err := p.readLine(ctx, fmt.Sprintf("\n[%s] > ", p.activeLabel()))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				fmt.Fprintln(p.out, "\n\n👋 Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if p.Execute(ctx, line) {
			fmt.Fprintln(p.out, "👋 Goodbye!")
			return nil
		}
	}
}

func (p *Playground) activeLabel() string {
	if a := p.session.Active(); a != "" {
		return a
	}
	return "no agent"
}

// Execute handles one input line and reports whether the user asked to quit.
func (p *Playground) Execute(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		p.send(ctx, line)
		return false
	}

	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}
	p.log.Debug().Str("command", command).Msg("command")

	switch command {
	case "/help", "/h":
		p.printHelp()
	case "/agents", "/a":
		p.listAgents()
	case "/switch":
		if p.requireArg(arg, "/switch <agent_name>") {
			p.switchAgent(arg)
		}
	case "/history", "/hist":
		p.showHistory()
	case "/clear":
		fmt.Fprintf(p.out, "🗑️  Cleared %d messages from history\n", p.session.Clear())
	case "/info":
		p.showAgentInfo(p.session.Active())
	case "/observe", "/obs":
		on := p.session.ToggleObserve()
		p.tap(on)
		fmt.Fprintf(p.out, "🔍 Observation mode: %s\n", onOff(on))
	case "/profile":
		p.showProfile()
	case "/report":
		p.showReport()
	case "/export":
		p.export()
	case "/create":
		p.createAgent(ctx)
	case "/templates":
		p.showTemplates()
	case "/created":
		p.showCreated()
	case "/load":
		if p.requireArg(arg, "/load <agent_name>") {
			p.loadAgent(ctx, arg)
		}
	case "/delete":
		if p.requireArg(arg, "/delete <agent_name>") {
			p.deleteAgent(ctx, arg)
		}
	case "/agent-info":
		if p.requireArg(arg, "/agent-info <agent_name>") {
			p.showAgentDetails(arg)
		}
	case "/quit", "/q":
		return true
	default:
		fmt.Fprintf(p.out, "Unknown command: %s\n", command)
		fmt.Fprintln(p.out, "Type /help for available commands.")
	}
	return false
}

func (p *Playground) requireArg(arg, usage string) bool {
	if arg == "" {
		fmt.Fprintf(p.out, "Usage: %s\n", usage)
		return false
	}
	return true
}

// send forwards text to the active agent and prints the reply.
func (p *Playground) send(ctx context.Context, text string) {
	if p.stream && p.session.Active() != "" {
		fmt.Fprintf(p.out, "\n🤖 %s: ", p.session.Active())
		_, err := p.session.SendStream(ctx, text, func(evt llm.StreamEvent) {
			switch evt.Type {
			case "delta":
				fmt.Fprint(p.out, evt.Content)
			case "tool_start", "tool_result", "tool_error":
				if p.session.Observing() {
					fmt.Fprintf(p.out, "\n🔧 %s\n", evt.Content)
				}
			}
		})
		fmt.Fprintln(p.out)
		if err != nil {
			p.printError(err)
		}
	} else {
		entry, err := p.session.Send(ctx, text)
		if err != nil {
			p.printError(err)
		} else {
			fmt.Fprintf(p.out, "\n🤖 %s: %s\n", entry.Agent, entry.Text)
			if p.session.Observing() && entry.Meta != nil {
				fmt.Fprintf(p.out, "🔍 [OBSERVE] Model: %s | Tokens: %d in / %d out | Tools: %d\n",
					entry.Meta.Model, entry.Meta.InputTokens, entry.Meta.OutputTokens, entry.Meta.ToolCalls)
			}
		}
	}
	p.checkLogging()
}

// checkLogging reports interaction log failures that happened since the
// last check.
func (p *Playground) checkLogging() {
	if p.observer == nil {
		return
	}
	n := p.observer.Failures()
	if n <= p.reportedFailures {
		return
	}
	fmt.Fprintf(p.out, "⚠️  Interaction logging failed (%d total): %v\n", n, p.observer.LastError())
	p.reportedFailures = n
}

// printError renders an error for the user.
func (p *Playground) printError(err error) {
	var (
		engine    *domain.EngineError
		notFound  *domain.NotFoundError
		protected *domain.ProtectedEntryError
		dup       *domain.DuplicateNameError
		invalid   *domain.ValidationError
	)
	switch {
	case errors.Is(err, domain.ErrNoActiveAgent):
		fmt.Fprintln(p.out, "❌ No active agent. Use /switch <agent_name> or /create first.")
	case errors.As(err, &engine):
		fmt.Fprintf(p.out, "❌ Error: %v\n", engine.Err)
	case errors.As(err, &notFound):
		fmt.Fprintf(p.out, "❌ Agent '%s' not found\n", notFound.Name)
	case errors.As(err, &protected):
		fmt.Fprintf(p.out, "❌ Cannot delete built-in agent '%s'\n", protected.Name)
	case errors.As(err, &dup):
		fmt.Fprintf(p.out, "❌ Agent '%s' already exists\n", dup.Name)
	case errors.As(err, &invalid):
		fmt.Fprintf(p.out, "❌ Invalid %s: %s\n", invalid.Field, invalid.Message)
	default:
		fmt.Fprintf(p.out, "❌ %v\n", err)
	}
	p.log.Debug().Err(err).Msg("command failed")
}

func (p *Playground) tap(on bool) {
	if p.observer == nil {
		return
	}
	if on {
		p.observer.Tap(p.out)
	} else {
		p.observer.Tap(nil)
	}
}

// readLine prints prompt and waits for the next input line. Input is read
// on a separate goroutine so a cancelled ctx ends the wait.
func (p *Playground) readLine(ctx context.Context, prompt string) (string, error) {
	p.startReader.Do(func() {
		p.lines = make(chan string)
		go p.scan()
	})

	fmt.Fprint(p.out, prompt)
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// scan feeds input lines to readLine until input ends or the playground
// stops.
func (p *Playground) scan() {
	defer close(p.lines)
	sc := bufio.NewScanner(p.in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case p.lines <- sc.Text():
		case <-p.done:
			return
		}
	}
}

// stop releases the input goroutine once Run is over.
func (p *Playground) stop() {
	p.stopReader.Do(func() { close(p.done) })
}

// confirm asks a y/n question; anything but "y" is no.
func (p *Playground) confirm(ctx context.Context, question string) bool {
	answer, err := p.readLine(ctx, question+" (y/n): ")
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
