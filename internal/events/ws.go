package events

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades the request and keeps the subscriber until it hangs up.
func WSHandler(hub *Hub) gin.HandlerFunc {
	logger := hub.logger.With(slog.String("transport", "websocket"))
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.Any("error", err))
			return
		}

		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = ws.WriteMessage(websocket.TextMessage, welcome("websocket", hub.Stats().WSClients+1))
		hub.AddWS(ws)
		logger.Info("subscriber connected", slog.String("remote", c.Request.RemoteAddr))

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		logger.Info("subscriber disconnected", slog.String("remote", c.Request.RemoteAddr))
	}
}
