package tools

import (
	"context"

	"github.com/soyeahso/agentplay/internal/domain"
)

type historyKey struct{}

// WithHistory attaches the session's conversation history to ctx so
// history-aware tools can read it during a run.
func WithHistory(ctx context.Context, history []domain.ConversationEntry) context.Context {
	return context.WithValue(ctx, historyKey{}, history)
}

// HistoryFrom returns the history attached by WithHistory, if any.
func HistoryFrom(ctx context.Context) []domain.ConversationEntry {
	h, _ := ctx.Value(historyKey{}).([]domain.ConversationEntry)
	return h
}
