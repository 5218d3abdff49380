package observe

import (
	"io"
	"sync"

	"github.com/soyeahso/agentplay/internal/domain"
)

// guardedWriter never reports a write failure to its caller. Failures are
// counted and the last one is kept for the REPL to show.
type guardedWriter struct {
	mu    sync.Mutex
	w     io.Writer
	count int
	last  *domain.LoggingError
}

func (g *guardedWriter) Write(p []byte) (int, error) {
	g.mu.Lock()
	w := g.w
	g.mu.Unlock()

	if w == nil {
		return len(p), nil
	}
	if _, err := w.Write(p); err != nil {
		g.record("write", err)
	}
	return len(p), nil
}

func (g *guardedWriter) record(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	g.last = &domain.LoggingError{Op: op, Err: err}
}

func (g *guardedWriter) failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func (g *guardedWriter) lastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return nil
	}
	return g.last
}
