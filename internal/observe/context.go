package observe

import (
	"context"
	"time"
)

type recorderKey struct{}

// WithRecorder attaches rec to ctx so the execution engine can report
// steps and tool usage for the call in flight.
func WithRecorder(ctx context.Context, rec Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFrom returns the recorder attached to ctx, or one that discards
// everything.
func RecorderFrom(ctx context.Context) Recorder {
	if rec, ok := ctx.Value(recorderKey{}).(Recorder); ok && rec != nil {
		return rec
	}
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) LogStep(string, string)                             {}
func (nopRecorder) LogToolUsage(string, string, string, time.Duration) {}
