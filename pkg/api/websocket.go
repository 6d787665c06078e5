package api

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

// isWebsocketUpgrade reports whether r asks for a websocket upgrade,
// letting GET /audits/{case_id}/logs serve both the poll-based `from=N`
// variant spec §6 names and a live push variant for the same route —
// grounded on the teacher's own dual HTTP+WS handling of session updates
// (pkg/api/handler_ws.go) and its choice of coder/websocket over
// gorilla/websocket for the upgrade itself.
func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// serveLogWebsocket upgrades the connection and streams every new
// LogEntry for caseID as it is appended (spec 4.H), after replaying
// anything at or after fromIndex that is already durable. The connection
// degrades gracefully to "nothing more will ever arrive" if live fan-out
// is disabled (pkg/logstream.Subscribe returns a nil channel in that
// case) — it still serves the replay.
func (s *Server) serveLogWebsocket(c *gin.Context, caseID string, fromIndex int) {
	ctx := c.Request.Context()

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	replay, err := s.logs.Read(ctx, caseID, fromIndex)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "reading log replay")
		return
	}
	for _, e := range replay {
		if writeErr := wsjson.Write(ctx, conn, toLogEntryResponse(e)); writeErr != nil {
			return
		}
	}

	live, unsubscribe, err := s.logs.Subscribe(ctx, caseID)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribing to live log")
		return
	}
	if live == nil {
		conn.Close(websocket.StatusNormalClosure, "no live fan-out configured")
		return
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-live:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			if err := wsjson.Write(ctx, conn, toLogEntryResponse(entry)); err != nil {
				return
			}
		}
	}
}
