// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/luxgrid/luxgrid/internal/protocol"
)

// WSHandler upgrades the connection, registers a fresh session, and runs the
// read pump until the peer goes away.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		playerID := uuid.NewString()
		sess, err := s.Sessions.Register(playerID)
		if err != nil {
			s.logger.Errorf("failed to register session: %v", err)
			c.Close(websocket.StatusInternalError, "session setup failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		peer := newPeer(playerID, cancel)
		s.addPeer(peer)

		s.logger.Infof("peer %s (%s) connected", playerID, r.RemoteAddr)
		peer.Send(protocol.New(protocol.TypeConnected, protocol.ConnectedPayload{
			PlayerID:       playerID,
			ReconnectToken: sess.ReconnectToken,
			Lobbies:        s.Lobbies.List(),
		}))

		go s.writePump(ctx, c, peer)
		s.readPump(ctx, c, peer)

		s.logger.Infof("peer %s disconnected", peer.PlayerID())
		s.handleDisconnect(peer.PlayerID())
	}
}

// readPump reads frames until the connection dies. Each frame is dispatched
// through the router; malformed JSON gets an error reply.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, peer *Peer) {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus != websocket.StatusNormalClosure &&
				closeStatus != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				s.logger.Debugf("read error for peer %s: %v", peer.PlayerID(), err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var inbound protocol.Inbound
		if err := json.Unmarshal(msg, &inbound); err != nil {
			peer.Send(protocol.Error("invalid JSON"))
			continue
		}
		s.route(peer, inbound)
	}
}

// writePump drains the peer's queue and keeps the connection alive with
// periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, peer *Peer) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-peer.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warnf("failed to marshal outgoing %s frame: %v", msg.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
