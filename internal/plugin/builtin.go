package plugin

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/soyeahso/agentplay/internal/hooks"
	"github.com/soyeahso/agentplay/internal/logging"
)

// Activity writes every session event to the application log.
type Activity struct {
	hooks *hooks.Manager
}

// NewActivity creates the activity log plugin.
func NewActivity() *Activity { return &Activity{} }

func (a *Activity) ID() string   { return "activity" }
func (a *Activity) Name() string { return "Activity log" }

func (a *Activity) Init(_ context.Context, api API) error {
	a.hooks = api.Hooks
	log := api.Log
	for _, event := range hooks.AllEvents {
		api.Hooks.On(event, a.ID(), func(_ context.Context, p hooks.Payload) error {
			logEvent(log, p)
			return nil
		})
	}
	return nil
}

func (a *Activity) Close() error {
	if a.hooks == nil {
		return nil
	}
	for _, event := range hooks.AllEvents {
		a.hooks.Off(event, a.ID())
	}
	return nil
}

func logEvent(log *logging.Logger, p hooks.Payload) {
	ev := log.Info().Str("event", p.Event)
	for _, k := range slices.Sorted(maps.Keys(p.Data)) {
		ev = ev.Interface(k, p.Data[k])
	}
	ev.Msg("session event")
}

// ExportFunc writes the current conversation and returns the file path.
type ExportFunc func() (string, error)

// AutoExport saves the conversation when a session with messages ends.
type AutoExport struct {
	export ExportFunc
	out    io.Writer
	hooks  *hooks.Manager
}

// NewAutoExport creates the auto-export plugin. The written path is
// reported on out when it is non-nil.
func NewAutoExport(export ExportFunc, out io.Writer) *AutoExport {
	return &AutoExport{export: export, out: out}
}

func (a *AutoExport) ID() string   { return "autoexport" }
func (a *AutoExport) Name() string { return "Conversation auto-export" }

func (a *AutoExport) Init(_ context.Context, api API) error {
	if a.export == nil {
		return fmt.Errorf("no export function")
	}
	a.hooks = api.Hooks
	log := api.Log
	api.Hooks.On(hooks.EventSessionEnd, a.ID(), func(_ context.Context, p hooks.Payload) error {
		if n, _ := p.Data["messages"].(int); n == 0 {
			return nil
		}
		path, err := a.export()
		if err != nil {
			return fmt.Errorf("auto-export: %w", err)
		}
		log.Info().Str("path", path).Msg("conversation exported")
		if a.out != nil {
			fmt.Fprintf(a.out, "💾 Conversation saved to %s\n", path)
		}
		return nil
	})
	return nil
}

func (a *AutoExport) Close() error {
	if a.hooks != nil {
		a.hooks.Off(hooks.EventSessionEnd, a.ID())
	}
	return nil
}
