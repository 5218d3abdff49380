package agent

import "strings"

const (
	toolFenceOpen  = "```tool_call"
	toolFenceClose = "```"
)

// fenceFilter drops ```tool_call blocks from streamed text so callers only
// see what will remain after stripToolCalls. Text that might be the start
// of a fence is held back until the next chunk decides it.
type fenceFilter struct {
	emit    func(string)
	pending string
	inFence bool
}

func (f *fenceFilter) write(chunk string) {
	buf := f.pending + chunk
	f.pending = ""
	for {
		if f.inFence {
			idx := strings.Index(buf, toolFenceClose)
			if idx < 0 {
				f.pending = partialSuffix(buf, toolFenceClose)
				return
			}
			buf = buf[idx+len(toolFenceClose):]
			f.inFence = false
			continue
		}

		idx := strings.Index(buf, toolFenceOpen)
		if idx < 0 {
			keep := partialSuffix(buf, toolFenceOpen)
			f.send(buf[:len(buf)-len(keep)])
			f.pending = keep
			return
		}
		f.send(buf[:idx])
		buf = buf[idx+len(toolFenceOpen):]
		f.inFence = true
	}
}

// flush releases held-back text at the end of a round. An unterminated
// fence is dropped.
func (f *fenceFilter) flush() {
	if !f.inFence {
		f.send(f.pending)
	}
	f.pending = ""
	f.inFence = false
}

func (f *fenceFilter) send(s string) {
	if s != "" {
		f.emit(s)
	}
}

// partialSuffix returns the longest suffix of s that is a proper prefix of
// marker.
func partialSuffix(s, marker string) string {
	for n := min(len(s), len(marker)-1); n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return s[len(s)-n:]
		}
	}
	return ""
}
