package session

import (
	"time"

	"github.com/soyeahso/agentplay/internal/domain"
)

// Profile summarizes one agent's replies in the current history.
type Profile struct {
	Agent        string
	Messages     int
	AvgResponse  time.Duration
	MaxResponse  time.Duration
	InputTokens  int
	OutputTokens int
	ToolCalls    int
}

// Profile computes reply statistics for agent from the history.
func (m *Manager) Profile(agent string) Profile {
	p := Profile{Agent: agent}
	var total time.Duration
	for _, e := range m.history {
		if e.Role != domain.RoleAgent || e.Agent != agent {
			continue
		}
		p.Messages++
		total += e.ResponseTime
		p.MaxResponse = max(p.MaxResponse, e.ResponseTime)
		if e.Meta != nil {
			p.InputTokens += e.Meta.InputTokens
			p.OutputTokens += e.Meta.OutputTokens
			p.ToolCalls += e.Meta.ToolCalls
		}
	}
	if p.Messages > 0 {
		p.AvgResponse = total / time.Duration(p.Messages)
	}
	return p
}
