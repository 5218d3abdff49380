// Package plugin provides optional playground extensions that react to
// session hook events.
package plugin

import (
	"context"

	"github.com/soyeahso/agentplay/internal/hooks"
	"github.com/soyeahso/agentplay/internal/logging"
)

// Plugin is the interface that all playground extensions implement.
type Plugin interface {
	// ID returns a unique identifier for the plugin (e.g., "activity").
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Init subscribes the plugin to the events it needs.
	Init(ctx context.Context, api API) error

	// Close unsubscribes the plugin and releases resources.
	Close() error
}

// API is what a plugin gets to work with.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}
