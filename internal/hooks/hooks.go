// Package hooks lets components react to playground lifecycle events
// without knowing about each other. The registry and session emit; the
// observer and the REPL subscribe.
package hooks

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/agentplay/internal/logging"
)

// Event names.
const (
	EventSessionStart    = "session_start"
	EventSessionEnd      = "session_end"
	EventAgentCreated    = "agent_created"
	EventAgentDeleted    = "agent_deleted"
	EventAgentLoaded     = "agent_loaded"
	EventAgentSwitched   = "agent_switched"
	EventBeforeAgentRun  = "before_agent_run"
	EventAfterAgentRun   = "after_agent_run"
	EventHistoryCleared  = "history_cleared"
	EventHistoryExported = "history_exported"
)

// AllEvents lists all known event names.
var AllEvents = []string{
	EventSessionStart,
	EventSessionEnd,
	EventAgentCreated,
	EventAgentDeleted,
	EventAgentLoaded,
	EventAgentSwitched,
	EventBeforeAgentRun,
	EventAfterAgentRun,
	EventHistoryCleared,
	EventHistoryExported,
}

// Payload carries event data to handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Str returns a string field of the payload, or "".
func (p Payload) Str(key string) string {
	s, _ := p.Data[key].(string)
	return s
}

// Handler handles one event. A returned error is logged and does not stop
// later handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager holds handler registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for event under name.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes every handler registered under name for event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

// Emit calls the handlers of event in registration order. A nil Manager
// is a no-op so components can run without hooks.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[event])
	m.mu.RUnlock()

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// Count returns the number of handlers registered for event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler, sorted.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}
