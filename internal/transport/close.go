package transport

import "github.com/streamrelay/mcpstream/pkg/jsonrpc"

// Close implements spec.md §4.6.6: cancels every keep-alive timer,
// snapshots the set of open sinks, closes each exactly once, clears all
// mappings, and fires OnClose. Idempotent.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	snapshot := make([]*stream, 0, len(t.streams))
	for _, st := range t.streams {
		snapshot = append(snapshot, st)
	}
	t.streams = make(map[string]*stream)
	t.requestToStream = make(map[jsonrpc.ID]string)
	t.standaloneStream = ""
	t.mu.Unlock()

	t.session.Close()
	if t.idle != nil {
		t.idle.Stop()
	}

	for _, st := range snapshot {
		t.decActiveStreams()
		st.stopKeepAlive()
		st.markDone()
		st.resp.Close()
	}

	if t.opts.OnClose != nil {
		t.opts.OnClose()
	}
}
