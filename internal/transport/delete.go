package transport

import (
	"github.com/streamrelay/mcpstream/internal/httpadapter"
	"github.com/streamrelay/mcpstream/internal/telemetry"
)

// handleDelete implements spec.md §4.6.3.
func (t *Transport) handleDelete(req httpadapter.Request, resp httpadapter.Response) {
	_, span := telemetry.StartSpan(req.Context(), "mcpstream.delete", req.Header(sessionIDHeader), "")
	defer span.End()

	if err := t.session.Validate(req.Header(sessionIDHeader)); err != nil {
		t.writeSessionError(resp, err)
		return
	}
	t.Close()
	resp.SetStatus(200)
	resp.Close()
}
