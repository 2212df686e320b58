package server

import (
	"net/http"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleChanges streams the owner's task changes over a websocket
func (s *Server) handleChanges(c echo.Context) error {
	userID, ok := ownerOf(c)
	if !ok {
		return jsonError(c, http.StatusForbidden, "user_id does not match session")
	}

	// Subscribe before the handshake completes so nothing committed after
	// the client sees the upgrade is missed.
	sub := s.hub.Subscribe(userID)
	defer s.hub.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		logger.Warn("Websocket upgrade failed", logger.F("error", err))
		return nil
	}

	logger.Info("Feed connected", logger.F("user_id", userID), logger.F("remote", c.Request().RemoteAddr))
	serveFeed(conn, sub)
	logger.Info("Feed disconnected", logger.F("user_id", userID))
	return nil
}

// serveFeed writes changes to conn until either side goes away
func serveFeed(conn *websocket.Conn, sub *Subscriber) {
	defer conn.Close()

	// The client sends nothing; reading only handles control frames and
	// notices when the peer closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-sub.Changes():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				logger.Debug("Feed write failed", logger.F("error", err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
