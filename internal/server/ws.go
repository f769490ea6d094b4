package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The connection is already authenticated by the API-key middleware;
	// browser origins play no role for this machine-facing stream.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamLogs upgrades the connection and relays create/delete events as JSON
// frames, in publication order. An optional schema_id parameter narrows the
// stream. When the subscriber's buffer overflowed, a gap event reporting the
// number of lost events precedes the next delivery.
func (s *Server) streamLogs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		return
	}
	defer conn.Close()

	sub, err := s.events.Subscribe(c.Query("schema_id"))
	if err != nil {
		s.log.Warn("subscribe failed", zap.Error(err))
		return
	}
	defer sub.Close()

	// Reader goroutine: we expect no frames from the client, but reading
	// is how close frames and dead peers are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if n := sub.TakeDropped(); n > 0 {
				if writeEvent(conn, types.GapEvent(n)) != nil {
					return
				}
			}
			if writeEvent(conn, ev) != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev types.LogEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}
