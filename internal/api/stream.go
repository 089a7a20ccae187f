package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The stream is only reachable from inside the container network.
		return true
	},
}

// HandleStream upgrades to a websocket and forwards supervisor state
// transitions until the client disconnects.
func (s *Server) HandleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{
		"type":      "snapshot",
		"processes": s.sup.Status(),
	}); err != nil {
		return
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-s.sup.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(gin.H{"type": "event", "event": ev}); err != nil {
				return
			}
		}
	}
}
