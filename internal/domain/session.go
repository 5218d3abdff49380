package domain

import "time"

// Role identifies who produced a conversation entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ConversationEntry is a single turn in a session's history.
type ConversationEntry struct {
	Role         Role          `json:"role"`
	Agent        string        `json:"agent"`
	Text         string        `json:"content"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"-"`
	Meta         *EntryMeta    `json:"metadata,omitempty"`
}

// EntryMeta carries per-reply execution details for agent entries.
type EntryMeta struct {
	ExecutionTime float64 `json:"execution_time"` // seconds
	Model         string  `json:"model,omitempty"`
	InputTokens   int     `json:"input_tokens,omitempty"`
	OutputTokens  int     `json:"output_tokens,omitempty"`
	ToolCalls     int     `json:"tool_calls,omitempty"`
}
