package livehttp

import (
	"net/http"
	"time"

	"tradewatch/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same process; operators on other hosts
	// reach it through a reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStream pushes the status snapshot on every stream tick until the client
// goes away or the server shuts down.
func (r *Router) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("http: stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reads only detect the close frame; clients never send payloads.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(r.streamInterval)
	defer ticker.Stop()
	for {
		if err := r.pushSnapshot(conn); err != nil {
			logger.Debugf("http: stream closed: %v", err)
			return
		}
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-r.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (r *Router) pushSnapshot(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(r.deps.State.Snapshot())
}
