// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/broadcast"
	"github.com/jason-s-yu/quizlobby/internal/middleware"
	"github.com/sirupsen/logrus"
)

// LobbySubprotocol is the WebSocket subprotocol clients must request.
const LobbySubprotocol = "lobby"

const outboundBuffer = 16

// lobbyWSHandler: GET /lobbies/{lobbyID}/ws
// Streams lobby events to a participant until either side closes. Messages sent by the
// client are ignored; they only keep the read side alive.
func (s *APIServer) lobbyWSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	userID, lobbyID, err := caller(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{LobbySubprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != LobbySubprotocol {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}

	l, err := s.Lobbies.Get(r.Context(), lobbyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.Close(InvalidLobbyIDError, "lobby does not exist")
		return
	}
	if err != nil {
		s.Logger.WithField("lobby_id", lobbyID).Errorf("load lobby for websocket: %v", err)
		c.Close(websocket.StatusInternalError, "failed to load lobby")
		return
	}
	if !l.HasParticipant(userID) {
		c.Close(NotParticipantError, "user is not a participant of this lobby")
		return
	}

	conn := broadcast.NewConnection(userID, outboundBuffer)
	s.Broadcaster.Subscribe(lobbyID, conn)
	defer s.Broadcaster.Unsubscribe(lobbyID, conn)
	middleware.LogWebSocketConnect(s.Logger, remoteAddr, r.URL.Path)

	// Queue the current state so the client never starts from an empty view.
	if snap, err := s.Lobbies.Snapshot(r.Context(), l); err == nil {
		if data, err := broadcast.Encode(broadcast.LobbyUpdated{Snapshot: *snap}); err == nil {
			conn.Send(data)
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go writePump(ctx, c, conn, s.Logger.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID}))

	err = readPump(ctx, c)
	middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, r.URL.Path, err)
}

// readPump discards client messages until the connection closes. It returns nil on a
// normal close.
func readPump(ctx context.Context, c *websocket.Conn) error {
	for {
		if _, _, err := c.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// writePump forwards queued events and pings the client every 30 seconds. The stream is
// closed normally once the lobby's deletion has been forwarded.
func writePump(ctx context.Context, c *websocket.Conn, conn *broadcast.Connection, logger *logrus.Entry) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-conn.Out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket: %v", err)
				return
			}
			if lobbyDeleted(data) {
				logger.Debug("lobby deleted, closing event stream")
				c.Close(websocket.StatusNormalClosure, "lobby deleted")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("failed to ping websocket: %v, assuming disconnect", err)
				return
			}
		}
	}
}

func lobbyDeleted(data []byte) bool {
	ev, err := broadcast.Decode(data)
	if err != nil {
		return false
	}
	ended, ok := ev.(broadcast.LobbyEnded)
	return ok && ended.Reason == broadcast.ReasonDeleted
}
