// internal/handlers/server.go

// Package handlers binds the websocket transport to the lobby, session and
// replay layers: one hub holding the peer registry and the fan-out fabric.
package handlers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/database"
	"github.com/luxgrid/luxgrid/internal/game"
	"github.com/luxgrid/luxgrid/internal/lobby"
	"github.com/luxgrid/luxgrid/internal/models"
	"github.com/luxgrid/luxgrid/internal/protocol"
	"github.com/luxgrid/luxgrid/internal/replay"
	"github.com/luxgrid/luxgrid/internal/session"
)

// Server is the websocket hub: peer registry plus the services every message
// handler needs.
type Server struct {
	logger *logrus.Logger

	Sessions *session.Store
	Lobbies  *lobby.Manager
	Replays  *replay.Store
	// Matches is optional; nil disables match history.
	Matches *database.MatchRecorder

	mu    sync.Mutex
	peers map[string]*Peer
}

// NewServer wires the hub.
func NewServer(logger *logrus.Logger, sessions *session.Store, lobbies *lobby.Manager, replays *replay.Store, matches *database.MatchRecorder) *Server {
	return &Server{
		logger:   logger,
		Sessions: sessions,
		Lobbies:  lobbies,
		Replays:  replays,
		Matches:  matches,
		peers:    make(map[string]*Peer),
	}
}

func (s *Server) addPeer(p *Peer) {
	s.mu.Lock()
	s.peers[p.PlayerID()] = p
	s.mu.Unlock()
}

func (s *Server) removePeer(playerID string) {
	s.mu.Lock()
	delete(s.peers, playerID)
	s.mu.Unlock()
}

// rebindPeer re-keys a peer under a reclaimed identity.
func (s *Server) rebindPeer(p *Peer, newPlayerID string) {
	s.mu.Lock()
	delete(s.peers, p.PlayerID())
	p.setPlayerID(newPlayerID)
	s.peers[newPlayerID] = p
	s.mu.Unlock()
}

// SendToPeer queues a frame for a single peer.
func (s *Server) SendToPeer(playerID string, msg protocol.Outbound) {
	s.mu.Lock()
	p := s.peers[playerID]
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// BroadcastToLobby fans a frame out to every peer bound to the lobby.
func (s *Server) BroadcastToLobby(lobbyID string, msg protocol.Outbound) {
	for _, p := range s.snapshotPeers() {
		sess := s.Sessions.Get(p.PlayerID())
		if sess != nil && sess.LobbyID == lobbyID {
			p.Send(msg)
		}
	}
}

// BroadcastLobbyList sends the current public list to every browsing peer.
func (s *Server) BroadcastLobbyList() {
	msg := protocol.New(protocol.TypeLobbyList, protocol.LobbyListPayload{Lobbies: s.Lobbies.List()})
	for _, p := range s.snapshotPeers() {
		sess := s.Sessions.Get(p.PlayerID())
		if sess != nil && sess.LobbyID == "" {
			p.Send(msg)
		}
	}
}

func (s *Server) snapshotPeers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// wireLobby attaches the hub's fan-out and lifecycle callbacks to a lobby.
func (s *Server) wireLobby(l *lobby.Lobby) {
	l.Broadcast = func(msg protocol.Outbound) {
		s.BroadcastToLobby(l.ID, msg)
	}
	l.OnGameEnd = func(res game.TickResult) {
		s.recordMatch(l, res)
		s.BroadcastLobbyList()
	}
	l.OnClosed = func() {
		s.Lobbies.Remove(l.ID)
	}
}

// recordMatch writes the round outcome to match history, if configured.
func (s *Server) recordMatch(l *lobby.Lobby, res game.TickResult) {
	if s.Matches == nil {
		return
	}
	l.Mu.Lock()
	result := database.MatchResult{
		LobbyID:     l.ID,
		GridSize:    l.Settings.GridSize,
		PlayerCount: len(l.Players),
		Draw:        res.Draw,
	}
	if l.Game != nil {
		result.GameID = l.Game.ID
		result.TotalTicks = l.Game.Ticks
	}
	l.Mu.Unlock()
	if res.Winner != nil {
		result.WinnerID = res.Winner.ID
		result.WinnerName = res.Winner.Name
	}
	s.Matches.RecordMatch(context.Background(), result)
}

// closeLobbyIfEmpty applies the last-human-leaves rule: a lobby with zero
// humans closes, its spectators drop back to browsing with a fresh connected
// reset, and the public list is rebroadcast.
func (s *Server) closeLobbyIfEmpty(l *lobby.Lobby) bool {
	if l.HumanCount() > 0 {
		return false
	}

	l.Mu.Lock()
	spectators := append([]*models.Spectator(nil), l.Spectators...)
	l.Mu.Unlock()

	l.Close()
	s.logger.Infof("lobby %s closed: no humans remain", l.ID)

	for _, spec := range spectators {
		s.Sessions.ClearLobby(spec.ID)
		s.SendToPeer(spec.ID, protocol.New(protocol.TypeLobbyClosed,
			protocol.MessageOnlyPayload{Message: "the lobby was closed"}))
		s.sendConnectedReset(spec.ID)
	}
	s.BroadcastLobbyList()
	return true
}

// sendConnectedReset re-sends the connected frame so the client returns to
// the browsing screen with its identity intact.
func (s *Server) sendConnectedReset(playerID string) {
	sess := s.Sessions.Get(playerID)
	if sess == nil {
		return
	}
	s.SendToPeer(playerID, protocol.New(protocol.TypeConnected, protocol.ConnectedPayload{
		PlayerID:       sess.PlayerID,
		ReconnectToken: sess.ReconnectToken,
		Lobbies:        s.Lobbies.List(),
	}))
}

// handleDisconnect archives the session and detaches the peer from its lobby.
func (s *Server) handleDisconnect(playerID string) {
	sess := s.Sessions.Get(playerID)
	if sess == nil {
		s.removePeer(playerID)
		return
	}

	name, color, avatar := "", "", ""
	if sess.LobbyID != "" {
		if l, err := s.Lobbies.Get(sess.LobbyID); err == nil {
			if sess.IsSpectator {
				l.RemoveSpectator(playerID)
			} else {
				if p := l.Player(playerID); p != nil {
					name, color, avatar = p.Name, p.Color, p.Avatar
				}
				l.RemovePlayer(playerID)
				l.BroadcastState()
			}
			if !s.closeLobbyIfEmpty(l) {
				s.BroadcastLobbyList()
			}
		}
	}

	s.Sessions.Archive(playerID, name, color, avatar)
	s.removePeer(playerID)
}
