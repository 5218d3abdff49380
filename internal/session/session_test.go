package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/soyeahso/agentplay/internal/agent"
	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/hooks"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/soyeahso/agentplay/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeEngine replies with a canned function and records what it saw.
type fakeEngine struct {
	reply   func(prompt string) (*agent.Reply, error)
	history [][]domain.ConversationEntry
}

func (f *fakeEngine) ModelFor(def *registry.Definition) string { return "fake:model" }

func (f *fakeEngine) Run(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry) (*agent.Reply, error) {
	f.history = append(f.history, history)
	observe.RecorderFrom(ctx).LogStep("fake", "running "+def.Config.Name)
	if f.reply != nil {
		return f.reply(prompt)
	}
	return &agent.Reply{Text: "You said: " + prompt, Model: "fake:model", Usage: llm.Usage{InputTokens: 3, OutputTokens: 4}}, nil
}

func (f *fakeEngine) RunStream(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry, cb agent.StreamCallback) (*agent.Reply, error) {
	cb(llm.StreamEvent{Type: "delta", Content: "You said: "})
	cb(llm.StreamEvent{Type: "delta", Content: prompt})
	return f.Run(ctx, def, prompt, history)
}

type fixture struct {
	mgr      *Manager
	reg      *registry.Registry
	engine   *fakeEngine
	observer *observe.Observer
	hooks    *hooks.Manager
	clock    time.Time
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		reg:    registry.New(nil, nil, silentLog()),
		engine: &fakeEngine{},
		hooks:  hooks.NewManager(silentLog()),
		clock:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.reg.RegisterBuiltins())
	_, err := f.reg.Register(domain.AgentConfig{Name: "echo", Instructions: "Repeat.", Model: "echo:echo"})
	require.NoError(t, err)

	f.observer = observe.New(nil, nil, silentLog())
	f.mgr = New(f.reg, f.engine, f.observer, f.hooks, opts, silentLog())
	f.mgr.now = func() time.Time {
		f.clock = f.clock.Add(250 * time.Millisecond)
		return f.clock
	}
	return f
}

func TestNewIDs(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Regexp(t, regexp.MustCompile(`^conv_\d{8}_\d{6}_[0-9a-f]{8}$`), f.mgr.ConversationID())
	assert.Len(t, f.mgr.ID(), 36)
	assert.Empty(t, f.mgr.Active())
	assert.False(t, f.mgr.Observing())
}

func TestSendWithoutActiveAgent(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.mgr.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrNoActiveAgent)
	assert.Empty(t, f.mgr.History())
	assert.Empty(t, f.engine.history)
}

func TestRegisterSwitchSend(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("echo"))

	reply, err := f.mgr.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "You said: hi", reply.Text)

	history := f.mgr.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, "echo", history[0].Agent)
	assert.Equal(t, domain.RoleAgent, history[1].Role)
	assert.Equal(t, "You said: hi", history[1].Text)
	assert.Equal(t, 250*time.Millisecond, history[1].ResponseTime)
	require.NotNil(t, history[1].Meta)
	assert.InDelta(t, 0.25, history[1].Meta.ExecutionTime, 1e-9)
	assert.Equal(t, "fake:model", history[1].Meta.Model)
	assert.Equal(t, 3, history[1].Meta.InputTokens)
}

func TestSendPassesPriorHistory(t *testing.T) {
	f := newFixture(t, Options{ContextMessages: 2})
	require.NoError(t, f.mgr.SwitchTo("echo"))

	for _, msg := range []string{"one", "two", "three"} {
		_, err := f.mgr.Send(context.Background(), msg)
		require.NoError(t, err)
	}

	require.Len(t, f.engine.history, 3)
	assert.Empty(t, f.engine.history[0])
	assert.Len(t, f.engine.history[1], 2)
	last := f.engine.history[2]
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Text)
	assert.Len(t, f.mgr.History(), 6)
}

func TestHistoryGrowsAndIsCapped(t *testing.T) {
	f := newFixture(t, Options{MaxHistory: 4})
	require.NoError(t, f.mgr.SwitchTo("echo"))

	for i, msg := range []string{"a", "b", "c"} {
		_, err := f.mgr.Send(context.Background(), msg)
		require.NoError(t, err)
		assert.Len(t, f.mgr.History(), min(2*(i+1), 4))
	}
	history := f.mgr.History()
	assert.Equal(t, "b", history[0].Text)
	assert.Equal(t, "You said: c", history[3].Text)
}

func TestEngineFailureLeavesHistory(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("echo"))
	_, err := f.mgr.Send(context.Background(), "ok")
	require.NoError(t, err)

	cause := &llm.ProviderError{Provider: "fake", Message: "boom", Code: 500}
	f.engine.reply = func(string) (*agent.Reply, error) { return nil, cause }

	_, err = f.mgr.Send(context.Background(), "fail")
	var ee *domain.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "echo", ee.Agent)
	assert.Equal(t, "fake:model", ee.Model)
	assert.True(t, errors.Is(err, cause))
	assert.Len(t, f.mgr.History(), 2)

	obs := f.observer.Observations()
	require.Len(t, obs, 2)
	assert.Equal(t, observe.StatusCompleted, obs[0].Status)
	assert.Equal(t, observe.StatusError, obs[1].Status)
}

func TestSendRecordsObservation(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("echo"))
	_, err := f.mgr.Send(context.Background(), "watch me")
	require.NoError(t, err)

	obs := f.observer.Observations()
	require.Len(t, obs, 1)
	assert.Equal(t, "echo", obs[0].Agent)
	assert.Equal(t, "watch me", obs[0].Prompt)
	require.Len(t, obs[0].Steps, 1)
	assert.Equal(t, "fake", obs[0].Steps[0].Kind)
}

func TestSendStream(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("echo"))

	var out bytes.Buffer
	reply, err := f.mgr.SendStream(context.Background(), "hey", func(evt llm.StreamEvent) {
		out.WriteString(evt.Content)
	})
	require.NoError(t, err)
	assert.Equal(t, "You said: hey", out.String())
	assert.Equal(t, "You said: hey", reply.Text)
	assert.Len(t, f.mgr.History(), 2)
}

func TestSwitchToUnknownKeepsActive(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("chat"))

	err := f.mgr.SwitchTo("nonexistent")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "chat", f.mgr.Active())
}

func TestSwitchKeepsHistoryAndEmits(t *testing.T) {
	f := newFixture(t, Options{})
	var switched []string
	f.hooks.On(hooks.EventAgentSwitched, "test", func(_ context.Context, p hooks.Payload) error {
		switched = append(switched, p.Str("from")+">"+p.Str("agent"))
		return nil
	})

	require.NoError(t, f.mgr.Begin(context.Background(), "echo"))
	_, err := f.mgr.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.NoError(t, f.mgr.SwitchTo("chat"))

	assert.Len(t, f.mgr.History(), 2)
	assert.Equal(t, []string{">echo", "echo>chat"}, switched)
}

func TestBeginUnknownAgent(t *testing.T) {
	f := newFixture(t, Options{})
	var nf *domain.NotFoundError
	require.ErrorAs(t, f.mgr.Begin(context.Background(), "ghost"), &nf)
	assert.Empty(t, f.mgr.Active())
}

func TestForget(t *testing.T) {
	f := newFixture(t, Options{DefaultAgent: "chat"})
	require.NoError(t, f.mgr.SwitchTo("echo"))

	f.mgr.Forget("research")
	assert.Equal(t, "echo", f.mgr.Active())

	f.mgr.Forget("echo")
	assert.Equal(t, "chat", f.mgr.Active())

	noDefault := newFixture(t, Options{})
	require.NoError(t, noDefault.mgr.SwitchTo("echo"))
	noDefault.mgr.Forget("echo")
	assert.Empty(t, noDefault.mgr.Active())
}

func TestClear(t *testing.T) {
	f := newFixture(t, Options{})
	cleared := 0
	f.hooks.On(hooks.EventHistoryCleared, "test", func(_ context.Context, p hooks.Payload) error {
		cleared = p.Data["count"].(int)
		return nil
	})
	require.NoError(t, f.mgr.SwitchTo("echo"))
	_, err := f.mgr.Send(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, 2, f.mgr.Clear())
	assert.Equal(t, 2, cleared)
	assert.Empty(t, f.mgr.History())
	assert.Equal(t, 0, f.mgr.Clear())
}

func TestHistoryIsCopy(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("echo"))
	_, err := f.mgr.Send(context.Background(), "hi")
	require.NoError(t, err)

	h := f.mgr.History()
	h[0].Text = "changed"
	assert.Equal(t, "hi", f.mgr.History()[0].Text)
}

func TestToggleObserve(t *testing.T) {
	f := newFixture(t, Options{})
	assert.True(t, f.mgr.ToggleObserve())
	assert.True(t, f.mgr.Observing())
	assert.False(t, f.mgr.ToggleObserve())
	f.mgr.SetObserve(true)
	assert.True(t, f.mgr.Observing())
}

func TestExportHistoryDeterministic(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.mgr.SwitchTo("echo"))

	empty, err := f.mgr.ExportHistory()
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"messages": []`)
	assert.Contains(t, string(empty), `"message_count": 0`)

	_, err = f.mgr.Send(context.Background(), "hi")
	require.NoError(t, err)

	first, err := f.mgr.ExportHistory()
	require.NoError(t, err)
	second, err := f.mgr.ExportHistory()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"session_id": "`+f.mgr.ID()+`"`)
	assert.Contains(t, string(first), `"conversation_id": "`+f.mgr.ConversationID()+`"`)
	assert.Contains(t, string(first), `"message_count": 2`)
	assert.Contains(t, string(first), `"content": "You said: hi"`)
	assert.Contains(t, string(first), `"execution_time": 0.25`)
}

func TestWriteExport(t *testing.T) {
	f := newFixture(t, Options{})
	var exported string
	f.hooks.On(hooks.EventHistoryExported, "test", func(_ context.Context, p hooks.Payload) error {
		exported = p.Str("path")
		return nil
	})
	require.NoError(t, f.mgr.SwitchTo("echo"))
	_, err := f.mgr.Send(context.Background(), "hi")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "conversations")
	path, err := f.mgr.WriteExport(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `conversation_\d{8}_\d{6}\.json$`, path)
	assert.Equal(t, path, exported)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := f.mgr.ExportHistory()
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestProfile(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Zero(t, f.mgr.Profile("echo").Messages)

	require.NoError(t, f.mgr.SwitchTo("echo"))
	for _, msg := range []string{"a", "b"} {
		_, err := f.mgr.Send(context.Background(), msg)
		require.NoError(t, err)
	}
	require.NoError(t, f.mgr.SwitchTo("chat"))
	_, err := f.mgr.Send(context.Background(), "c")
	require.NoError(t, err)

	p := f.mgr.Profile("echo")
	assert.Equal(t, 2, p.Messages)
	assert.Equal(t, 250*time.Millisecond, p.AvgResponse)
	assert.Equal(t, 6, p.InputTokens)
	assert.Equal(t, 8, p.OutputTokens)
	assert.Equal(t, 1, f.mgr.Profile("chat").Messages)
}
