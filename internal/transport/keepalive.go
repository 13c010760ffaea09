package transport

import (
	"time"

	"github.com/streamrelay/mcpstream/internal/httpadapter"
)

// armKeepAlive implements spec.md §4.6.5: a periodic timer writes a
// keep-alive comment until the stream completes, is dropped, or the
// interval is disabled (<=0).
func (t *Transport) armKeepAlive(st *stream) {
	interval := t.opts.KeepAliveInterval
	if interval <= 0 {
		return
	}

	var tick func()
	tick = func() {
		t.mu.Lock()
		_, live := t.streams[st.id]
		t.mu.Unlock()
		if !live {
			return
		}

		if err := st.sseW.WriteKeepAlive(time.Now().UTC().Format(time.RFC3339)); err != nil {
			t.dropStream(st.id)
			return
		}
		t.recordKeepAlive()

		t.mu.Lock()
		st.keepAliveTimer = time.AfterFunc(interval, tick)
		t.mu.Unlock()
	}

	t.mu.Lock()
	st.keepAliveTimer = time.AfterFunc(interval, tick)
	t.mu.Unlock()
}

// watchDisconnect drops st from all mappings once the response sink's
// underlying connection goes away, or stops watching once st finishes
// through any other path (spec.md §5 "Cancellation").
func (t *Transport) watchDisconnect(st *stream, resp httpadapter.Response) {
	go func() {
		select {
		case <-resp.Done():
			t.dropStream(st.id)
		case <-st.doneCh:
		}
	}()
}
