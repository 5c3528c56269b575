package api

import (
	"net/http"

	"kirana/internal/models"
	"kirana/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamNotifications pushes a user's notifications over a websocket as they
// are published. Hub callbacks must not block, so deliveries go through a
// buffered channel and a slow client simply misses events.
func (s *Server) StreamNotifications(c *gin.Context) {
	userID := c.GetString("userID")
	log := util.GetLogger()

	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("notification stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events := make(chan models.Notification, 16)
	unsubscribe := s.hub.Subscribe(userID, func(n models.Notification) {
		select {
		case events <- n:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case n := <-events:
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
