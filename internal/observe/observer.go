// Package observe records what happens during each agent call: the steps
// the engine takes, the tools it invokes and how long everything took.
// Records are kept in memory for summaries and appended to an interaction
// log whose write failures never reach the caller.
package observe

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/soyeahso/agentplay/internal/logging"
)

// Status is the lifecycle state of an observation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Step is one recorded engine step.
type Step struct {
	Kind    string        `json:"type"`
	Detail  string        `json:"description"`
	At      time.Time     `json:"timestamp"`
	Elapsed time.Duration `json:"elapsed"`
}

// ToolUsage is one recorded tool invocation.
type ToolUsage struct {
	Tool    string        `json:"tool_name"`
	Input   string        `json:"input_data"`
	Output  string        `json:"output_data"`
	Elapsed time.Duration `json:"execution_time"`
	At      time.Time     `json:"timestamp"`
}

// Observation covers a single engine call.
type Observation struct {
	ID      string        `json:"id"`
	Agent   string        `json:"agent_name"`
	Prompt  string        `json:"prompt"`
	Start   time.Time     `json:"start_time"`
	End     time.Time     `json:"end_time,omitzero"`
	Steps   []Step        `json:"steps"`
	Tools   []ToolUsage   `json:"tools_used"`
	Status  Status        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"total_execution_time"`
}

// Recorder is the subset of Observer the execution engine writes to.
type Recorder interface {
	LogStep(kind, detail string)
	LogToolUsage(tool, input, output string, elapsed time.Duration)
}

// Sink persists finished observations.
type Sink interface {
	Save(obs Observation) error
}

// Observer collects observations for one playground session.
type Observer struct {
	mu      sync.Mutex
	out     *guardedWriter
	text    *logging.Logger
	log     *logging.Logger
	sink    Sink
	tap     io.Writer
	current *Observation
	done    []Observation
	now     func() time.Time
}

// New creates an observer writing its interaction log to w. w and sink may
// be nil.
func New(w io.Writer, sink Sink, log *logging.Logger) *Observer {
	out := &guardedWriter{w: w}
	console := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	return &Observer{
		out:  out,
		text: logging.New(console, "debug"),
		log:  log.Sub("observe"),
		sink: sink,
		now:  time.Now,
	}
}

// Tap mirrors step and tool records to w as they happen. A nil writer
// turns the mirror off.
func (o *Observer) Tap(w io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tap = w
}

// Start opens an observation for a call to agent. An observation still
// open from an earlier call is closed as failed.
func (o *Observer) Start(agent, prompt string) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.finishLocked(fmt.Errorf("superseded by a new observation"))
	}

	obs := &Observation{
		ID:     "obs_" + xid.New().String(),
		Agent:  agent,
		Prompt: prompt,
		Start:  o.now(),
		Status: StatusRunning,
	}
	o.current = obs

	o.text.Info().Str("id", obs.ID).Str("agent", agent).Int("prompt_chars", len(prompt)).Msg("observation started")
	o.mirror("Sending to %s agent (%d characters)", agent, len(prompt))
	return obs.ID
}

// LogStep appends a step to the open observation. Without one only the
// interaction log is written.
func (o *Observer) LogStep(kind, detail string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.current != nil {
		o.current.Steps = append(o.current.Steps, Step{
			Kind:    kind,
			Detail:  detail,
			At:      now,
			Elapsed: now.Sub(o.current.Start),
		})
	}
	o.text.Debug().Str("step", kind).Msg(detail)
	o.mirror("Step [%s]: %s", kind, detail)
}

// LogToolUsage appends a tool invocation to the open observation.
func (o *Observer) LogToolUsage(tool, input, output string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.current.Tools = append(o.current.Tools, ToolUsage{
			Tool:    tool,
			Input:   input,
			Output:  output,
			Elapsed: elapsed,
			At:      o.now(),
		})
	}
	o.text.Info().
		Str("tool", tool).
		Str("input", input).
		Str("output", output).
		Dur("elapsed", elapsed).
		Msg("tool used")
	o.mirror("Tool used: %s (%.3fs)", tool, elapsed.Seconds())
}

// End closes the open observation, marking it failed when err is non-nil,
// and returns a copy of it. The second result is false if nothing was open.
func (o *Observer) End(err error) (Observation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Observation{}, false
	}
	return o.finishLocked(err), true
}

func (o *Observer) finishLocked(err error) Observation {
	obs := o.current
	o.current = nil

	obs.End = o.now()
	obs.Elapsed = obs.End.Sub(obs.Start)
	obs.Status = StatusCompleted
	if err != nil {
		obs.Status = StatusError
		obs.Error = err.Error()
	}
	o.done = append(o.done, *obs)

	ev := o.text.Info()
	if err != nil {
		ev = o.text.Error().Err(err)
	}
	ev.Str("id", obs.ID).
		Str("agent", obs.Agent).
		Str("status", string(obs.Status)).
		Int("steps", len(obs.Steps)).
		Int("tools", len(obs.Tools)).
		Dur("elapsed", obs.Elapsed).
		Msg("observation finished")
	o.mirror("Response received in %.2fs", obs.Elapsed.Seconds())

	if o.sink != nil {
		if serr := o.sink.Save(*obs); serr != nil {
			o.out.record("persist", serr)
			o.log.Warn().Err(serr).Str("id", obs.ID).Msg("failed to persist observation")
		}
	}
	return *obs
}

// Observations returns a copy of every finished observation, oldest first.
func (o *Observer) Observations() []Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Observation, len(o.done))
	copy(out, o.done)
	return out
}

// Failures returns how many interaction log or persistence writes failed.
func (o *Observer) Failures() int { return o.out.failures() }

// LastError returns the most recent logging failure, or nil.
func (o *Observer) LastError() error { return o.out.lastError() }

func (o *Observer) mirror(format string, args ...any) {
	if o.tap == nil {
		return
	}
	fmt.Fprintf(o.tap, "🔍 [OBSERVE] "+format+"\n", args...)
}
