// Package session tracks one playground conversation: the active agent,
// the ordered history and the observation toggle. A Manager is not safe
// for concurrent use.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentplay/internal/agent"
	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/hooks"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/soyeahso/agentplay/internal/registry"
)

// Engine runs an agent definition against a prompt.
type Engine interface {
	ModelFor(def *registry.Definition) string
	Run(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry) (*agent.Reply, error)
	RunStream(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry, cb agent.StreamCallback) (*agent.Reply, error)
}

// Options control history handling.
type Options struct {
	MaxHistory      int    // entries kept, 0 = unlimited
	ContextMessages int    // recent entries passed to the engine, 0 = all
	DefaultAgent    string // fallback when the active agent is deleted
}

// Manager owns the state of one session.
type Manager struct {
	id             string
	conversationID string
	startedAt      time.Time

	active    string
	history   []domain.ConversationEntry
	observing bool

	registry *registry.Registry
	engine   Engine
	observer *observe.Observer
	hooks    *hooks.Manager
	opts     Options
	now      func() time.Time
	log      *logging.Logger
}

// New creates a session with no active agent. observer and hm may be nil.
func New(reg *registry.Registry, engine Engine, observer *observe.Observer, hm *hooks.Manager, opts Options, log *logging.Logger) *Manager {
	now := time.Now()
	m := &Manager{
		id:             uuid.NewString(),
		conversationID: newConversationID(now),
		startedAt:      now,
		registry:       reg,
		engine:         engine,
		observer:       observer,
		hooks:          hm,
		opts:           opts,
		now:            time.Now,
	}
	m.log = log.Sub("session")
	return m
}

// newConversationID builds conv_<yyyymmdd_hhmmss>_<8 hex>.
func newConversationID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("conv_%s_%s", t.Format("20060102_150405"), suffix)
}

// ID returns the session id.
func (m *Manager) ID() string { return m.id }

// ConversationID returns the conversation id.
func (m *Manager) ConversationID() string { return m.conversationID }

// StartedAt returns when the session was created.
func (m *Manager) StartedAt() time.Time { return m.startedAt }

// Active returns the active agent name, or "" when none is selected.
func (m *Manager) Active() string { return m.active }

// Begin announces the session and selects the starting agent when one is
// given.
func (m *Manager) Begin(ctx context.Context, agentName string) error {
	m.hooks.Emit(ctx, hooks.EventSessionStart, map[string]any{
		"session":      m.id,
		"conversation": m.conversationID,
	})
	m.log.Info().Str("conversation", m.conversationID).Msg("session started")
	if agentName == "" {
		return nil
	}
	return m.SwitchTo(agentName)
}

// End announces the end of the session.
func (m *Manager) End(ctx context.Context) {
	m.hooks.Emit(ctx, hooks.EventSessionEnd, map[string]any{
		"session":  m.id,
		"messages": len(m.history),
	})
	m.log.Info().Int("messages", len(m.history)).Msg("session ended")
}

// SwitchTo makes name the active agent. History is kept.
func (m *Manager) SwitchTo(name string) error {
	if _, err := m.registry.Get(name); err != nil {
		return err
	}
	prev := m.active
	m.active = name
	m.log.Debug().Str("from", prev).Str("to", name).Msg("switched agent")
	m.hooks.Emit(context.Background(), hooks.EventAgentSwitched, map[string]any{
		"from":  prev,
		"agent": name,
	})
	return nil
}

// Forget handles removal of an agent from the registry: if it was active
// the session falls back to the default agent, or to none.
func (m *Manager) Forget(name string) {
	if m.active != name {
		return
	}
	m.active = ""
	if m.opts.DefaultAgent != "" && m.opts.DefaultAgent != name && m.registry.Has(m.opts.DefaultAgent) {
		m.active = m.opts.DefaultAgent
	}
	m.log.Info().Str("deleted", name).Str("active", m.active).Msg("active agent removed")
}

// Send forwards text to the active agent and records the exchange.
func (m *Manager) Send(ctx context.Context, text string) (domain.ConversationEntry, error) {
	return m.send(ctx, text, nil)
}

// SendStream is Send with the reply streamed to cb as it is generated.
func (m *Manager) SendStream(ctx context.Context, text string, cb agent.StreamCallback) (domain.ConversationEntry, error) {
	if cb == nil {
		cb = func(llm.StreamEvent) {}
	}
	return m.send(ctx, text, cb)
}

func (m *Manager) send(ctx context.Context, text string, cb agent.StreamCallback) (domain.ConversationEntry, error) {
	if m.active == "" {
		return domain.ConversationEntry{}, domain.ErrNoActiveAgent
	}
	name := m.active
	def, err := m.registry.Get(name)
	if err != nil {
		return domain.ConversationEntry{}, err
	}

	window := m.contextWindow()
	m.hooks.Emit(ctx, hooks.EventBeforeAgentRun, map[string]any{
		"agent":  name,
		"prompt": text,
	})

	if m.observer != nil {
		m.observer.Start(name, text)
		ctx = observe.WithRecorder(ctx, m.observer)
	}

	start := m.now()
	var reply *agent.Reply
	if cb != nil {
		reply, err = m.engine.RunStream(ctx, def, text, window, cb)
	} else {
		reply, err = m.engine.Run(ctx, def, text, window)
	}
	end := m.now()
	elapsed := end.Sub(start)

	if m.observer != nil {
		m.observer.End(err)
	}
	if err != nil {
		m.hooks.Emit(ctx, hooks.EventAfterAgentRun, map[string]any{
			"agent": name,
			"error": err.Error(),
		})
		m.log.Warn().Err(err).Str("agent", name).Dur("elapsed", elapsed).Msg("agent run failed")
		return domain.ConversationEntry{}, &domain.EngineError{
			Agent: name,
			Model: m.engine.ModelFor(def),
			Err:   err,
		}
	}

	user := domain.ConversationEntry{
		Role:      domain.RoleUser,
		Agent:     name,
		Text:      text,
		Timestamp: start,
	}
	answer := domain.ConversationEntry{
		Role:         domain.RoleAgent,
		Agent:        name,
		Text:         reply.Text,
		Timestamp:    end,
		ResponseTime: elapsed,
		Meta: &domain.EntryMeta{
			ExecutionTime: elapsed.Seconds(),
			Model:         reply.Model,
			InputTokens:   reply.Usage.InputTokens,
			OutputTokens:  reply.Usage.OutputTokens,
			ToolCalls:     reply.ToolCalls,
		},
	}
	m.history = append(m.history, user, answer)
	m.trim()

	m.hooks.Emit(ctx, hooks.EventAfterAgentRun, map[string]any{
		"agent":   name,
		"elapsed": elapsed.Seconds(),
	})
	m.log.Debug().
		Str("agent", name).
		Int("history", len(m.history)).
		Dur("elapsed", elapsed).
		Msg("exchange recorded")
	return answer, nil
}

// contextWindow returns a copy of the entries the engine should see.
func (m *Manager) contextWindow() []domain.ConversationEntry {
	h := m.history
	if n := m.opts.ContextMessages; n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]domain.ConversationEntry, len(h))
	copy(out, h)
	return out
}

// trim drops the oldest entries beyond MaxHistory.
func (m *Manager) trim() {
	if n := m.opts.MaxHistory; n > 0 && len(m.history) > n {
		dropped := len(m.history) - n
		m.history = append([]domain.ConversationEntry(nil), m.history[dropped:]...)
		m.log.Debug().Int("dropped", dropped).Msg("history trimmed")
	}
}

// History returns a copy of the conversation so far.
func (m *Manager) History() []domain.ConversationEntry {
	out := make([]domain.ConversationEntry, len(m.history))
	copy(out, m.history)
	return out
}

// Clear empties the history and returns how many entries were removed.
func (m *Manager) Clear() int {
	n := len(m.history)
	m.history = nil
	m.hooks.Emit(context.Background(), hooks.EventHistoryCleared, map[string]any{"count": n})
	return n
}

// ToggleObserve flips observation mode and returns the new state.
func (m *Manager) ToggleObserve() bool {
	m.observing = !m.observing
	return m.observing
}

// SetObserve sets observation mode.
func (m *Manager) SetObserve(on bool) { m.observing = on }

// Observing reports whether observation mode is on.
func (m *Manager) Observing() bool { return m.observing }

// Export is the document written by ExportHistory.
type Export struct {
	SessionID      string                     `json:"session_id"`
	ConversationID string                     `json:"conversation_id"`
	StartedAt      time.Time                  `json:"started_at"`
	MessageCount   int                        `json:"message_count"`
	Messages       []domain.ConversationEntry `json:"messages"`
}

// ExportHistory renders the session as indented JSON. The output depends
// only on session state.
func (m *Manager) ExportHistory() ([]byte, error) {
	doc := Export{
		SessionID:      m.id,
		ConversationID: m.conversationID,
		StartedAt:      m.startedAt.UTC(),
		MessageCount:   len(m.history),
		Messages:       m.History(),
	}
	if doc.Messages == nil {
		doc.Messages = []domain.ConversationEntry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding conversation: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport writes the export to dir/conversation_<timestamp>.json and
// returns the file path.
func (m *Manager) WriteExport(dir string) (string, error) {
	data, err := m.ExportHistory()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("conversation_%s.json", m.now().Format("20060102_150405")))
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(dir, fmt.Sprintf("conversation_%s.json", m.now().Format("20060102_150405.000")))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}

	m.log.Info().Str("path", path).Int("messages", len(m.history)).Msg("conversation exported")
	m.hooks.Emit(context.Background(), hooks.EventHistoryExported, map[string]any{"path": path})
	return path, nil
}
