// internal/handlers/router.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/luxgrid/luxgrid/internal/game"
	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/lobby"
	"github.com/luxgrid/luxgrid/internal/models"
	"github.com/luxgrid/luxgrid/internal/protocol"
	"github.com/luxgrid/luxgrid/internal/replay"
	"github.com/luxgrid/luxgrid/internal/session"
)

// route dispatches one inbound frame. Authorization (host checks,
// self-target checks) happens here; unknown message types are ignored.
func (s *Server) route(peer *Peer, msg protocol.Inbound) {
	switch msg.Type {
	case protocol.TypeReconnect:
		s.handleReconnect(peer, msg.Payload)
	case protocol.TypeSetUserID:
		s.handleSetUserID(peer, msg.Payload)
	case protocol.TypeGetLobbyList:
		peer.Send(protocol.New(protocol.TypeLobbyList, protocol.LobbyListPayload{Lobbies: s.Lobbies.List()}))
	case protocol.TypeCreateLobby:
		s.handleCreateLobby(peer, msg.Payload)
	case protocol.TypeJoinLobby:
		s.handleJoinLobby(peer, msg.Payload)
	case protocol.TypeJoinLobbyAsSpectator:
		s.handleJoinAsSpectator(peer, msg.Payload)
	case protocol.TypeLeaveLobby:
		s.handleLeaveLobby(peer)
	case protocol.TypeSetName:
		s.handleSetName(peer, msg.Payload)
	case protocol.TypeReady:
		s.handleReady(peer, msg.Payload)
	case protocol.TypeUpdateSettings:
		s.handleUpdateSettings(peer, msg.Payload)
	case protocol.TypeKickPlayer:
		s.handleModeration(peer, msg.Payload, false)
	case protocol.TypeBanPlayer:
		s.handleModeration(peer, msg.Payload, true)
	case protocol.TypeAddAIBot:
		s.handleAddAIBot(peer)
	case protocol.TypeRemoveAIBot:
		s.handleRemoveAIBot(peer, msg.Payload)
	case protocol.TypeMove:
		s.handleMove(peer, msg.Payload)
	case protocol.TypeBrake:
		s.handleBrake(peer, msg.Payload)
	case protocol.TypeUseTrailEraser:
		s.handleUseTrailEraser(peer)
	case protocol.TypeReturnToLobby:
		s.handleReturnToLobby(peer)
	case protocol.TypeSaveReplay:
		s.handleSaveReplay(peer)
	case protocol.TypeGetUserReplays:
		s.handleGetUserReplays(peer)
	case protocol.TypeLoadReplay:
		s.handleLoadReplay(peer, msg.Payload)
	case protocol.TypeDeleteReplay:
		s.handleDeleteReplay(peer, msg.Payload)
	default:
		s.logger.Debugf("ignoring unknown message type %q from peer %s", msg.Type, peer.PlayerID())
	}
}

// currentLobby resolves the peer's lobby, or sends the appropriate error.
func (s *Server) currentLobby(peer *Peer) (*lobby.Lobby, *session.Session) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil || sess.LobbyID == "" {
		peer.Send(protocol.Error("not in a lobby"))
		return nil, nil
	}
	l, err := s.Lobbies.Get(sess.LobbyID)
	if err != nil {
		peer.Send(protocol.Error("lobby not found"))
		return nil, nil
	}
	return l, sess
}

// currentGame additionally requires the lobby to be mid-round.
func (s *Server) currentGame(peer *Peer) *game.Game {
	l, _ := s.currentLobby(peer)
	if l == nil {
		return nil
	}
	if l.State() != lobby.StateInGame {
		return nil
	}
	l.Mu.Lock()
	g := l.Game
	l.Mu.Unlock()
	return g
}

// requireHost enforces host-only actions.
func (s *Server) requireHost(peer *Peer) (*lobby.Lobby, bool) {
	l, _ := s.currentLobby(peer)
	if l == nil {
		return nil, false
	}
	l.Mu.Lock()
	isHost := l.HostID == peer.PlayerID()
	l.Mu.Unlock()
	if !isHost {
		peer.Send(protocol.Error("only the host can do that"))
		return nil, false
	}
	return l, true
}

func joinError(err error) string {
	switch {
	case errors.Is(err, lobby.ErrLobbyFull):
		return "lobby is full"
	case errors.Is(err, lobby.ErrBanned):
		return "banned from this lobby"
	case errors.Is(err, lobby.ErrSpectatorsDisabled):
		return "spectators are disabled"
	case errors.Is(err, lobby.ErrClosed):
		return "lobby not found"
	default:
		return err.Error()
	}
}

func (s *Server) handleReconnect(peer *Peer, raw json.RawMessage) {
	var payload protocol.ReconnectPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid reconnect payload"))
		return
	}
	// A seated identity cannot be swapped out from under its lobby.
	if sess := s.Sessions.Get(peer.PlayerID()); sess != nil && sess.LobbyID != "" {
		peer.Send(protocol.Error("already in a lobby"))
		return
	}

	arch, err := s.Sessions.Reconnect(payload.ReconnectToken)
	if err != nil {
		if errors.Is(err, session.ErrWindowExpired) {
			peer.Send(protocol.Error("reconnect window expired"))
		} else {
			peer.Send(protocol.Error("reconnect failed"))
		}
		return
	}

	// Drop the throwaway identity minted on connect and adopt the old one.
	s.Sessions.Drop(peer.PlayerID())
	s.rebindPeer(peer, arch.PlayerID)
	s.logger.Infof("peer %s reconnected", arch.PlayerID)

	reconnected := protocol.ReconnectedPayload{
		PlayerID:    arch.PlayerID,
		IsSpectator: arch.IsSpectator,
	}

	var l *lobby.Lobby
	if arch.LobbyID != "" {
		if found, err := s.Lobbies.Get(arch.LobbyID); err == nil {
			l = found
		} else {
			s.Sessions.ClearLobby(arch.PlayerID)
		}
	}
	if l != nil {
		reconnected.LobbyID = arch.LobbyID
		if arch.IsSpectator {
			err = l.AddSpectator(&models.Spectator{
				ID: arch.PlayerID, Name: arch.Name, Color: arch.Color, JoinedAt: time.Now(),
			})
		} else {
			err = l.AddPlayer(&models.Player{
				ID: arch.PlayerID, Name: arch.Name, Color: arch.Color, Avatar: arch.Avatar,
			})
		}
		if err != nil {
			s.Sessions.ClearLobby(arch.PlayerID)
			reconnected.LobbyID = ""
			l = nil
		}
	}

	peer.Send(protocol.New(protocol.TypeReconnected, reconnected))
	if l != nil {
		l.BroadcastState()
	} else {
		peer.Send(protocol.New(protocol.TypeLobbyList, protocol.LobbyListPayload{Lobbies: s.Lobbies.List()}))
	}
}

func (s *Server) handleSetUserID(peer *Peer, raw json.RawMessage) {
	var payload protocol.SetUserIDPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID == "" {
		peer.Send(protocol.Error("invalid userId"))
		return
	}
	s.Sessions.SetUserID(peer.PlayerID(), payload.UserID)
}

func (s *Server) handleCreateLobby(peer *Peer, raw json.RawMessage) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil {
		return
	}
	if sess.LobbyID != "" {
		peer.Send(protocol.Error("already in a lobby"))
		return
	}
	var payload protocol.CreateLobbyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid createLobby payload"))
		return
	}

	l := s.Lobbies.CreateLobby(payload.Settings)
	s.wireLobby(l)

	p := &models.Player{
		ID:     peer.PlayerID(),
		Name:   payload.Name,
		Color:  payload.Color,
		Avatar: payload.Avatar,
	}
	if err := l.AddPlayer(p); err != nil {
		peer.Send(protocol.Error(joinError(err)))
		l.Close()
		return
	}
	s.Sessions.SetLobby(peer.PlayerID(), l.ID, false)
	s.logger.Infof("peer %s created lobby %s", peer.PlayerID(), l.ID)

	peer.Send(protocol.New(protocol.TypeLobbyJoined, protocol.LobbyJoinedPayload{
		LobbyID:  l.ID,
		Player:   &models.LobbyPlayerView{ID: p.ID, Name: p.Name, Color: p.Color},
		GridSize: l.Settings.GridSize,
	}))
	l.BroadcastState()
	s.BroadcastLobbyList()
}

func (s *Server) handleJoinLobby(peer *Peer, raw json.RawMessage) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil {
		return
	}
	if sess.LobbyID != "" {
		peer.Send(protocol.Error("already in a lobby"))
		return
	}
	var payload protocol.JoinLobbyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid joinLobby payload"))
		return
	}
	l, err := s.Lobbies.Get(payload.LobbyID)
	if err != nil {
		peer.Send(protocol.Error("lobby not found"))
		return
	}

	p := &models.Player{
		ID:     peer.PlayerID(),
		Name:   payload.Name,
		Color:  payload.Color,
		Avatar: payload.Avatar,
	}
	if err := l.AddPlayer(p); err != nil {
		peer.Send(protocol.Error(joinError(err)))
		return
	}
	s.Sessions.SetLobby(peer.PlayerID(), l.ID, false)

	peer.Send(protocol.New(protocol.TypeLobbyJoined, protocol.LobbyJoinedPayload{
		LobbyID:  l.ID,
		Player:   &models.LobbyPlayerView{ID: p.ID, Name: p.Name, Color: p.Color},
		GridSize: l.Settings.GridSize,
	}))
	l.BroadcastState()
	s.BroadcastLobbyList()
}

func (s *Server) handleJoinAsSpectator(peer *Peer, raw json.RawMessage) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil {
		return
	}
	if sess.LobbyID != "" {
		peer.Send(protocol.Error("already in a lobby"))
		return
	}
	var payload protocol.JoinLobbyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid joinLobbyAsSpectator payload"))
		return
	}
	l, err := s.Lobbies.Get(payload.LobbyID)
	if err != nil {
		peer.Send(protocol.Error("lobby not found"))
		return
	}

	spec := &models.Spectator{
		ID:       peer.PlayerID(),
		Name:     models.TruncateName(payload.Name),
		Color:    payload.Color,
		JoinedAt: time.Now(),
	}
	if err := l.AddSpectator(spec); err != nil {
		peer.Send(protocol.Error(joinError(err)))
		return
	}
	s.Sessions.SetLobby(peer.PlayerID(), l.ID, true)

	peer.Send(protocol.New(protocol.TypeLobbyJoined, protocol.LobbyJoinedPayload{
		LobbyID:     l.ID,
		Spectator:   &models.SpectatorView{ID: spec.ID, Name: spec.Name, Color: spec.Color},
		GridSize:    l.Settings.GridSize,
		IsSpectator: true,
	}))
	l.BroadcastState()
}

func (s *Server) handleLeaveLobby(peer *Peer) {
	l, sess := s.currentLobby(peer)
	if l == nil {
		return
	}
	if sess.IsSpectator {
		l.RemoveSpectator(peer.PlayerID())
	} else {
		l.RemovePlayer(peer.PlayerID())
	}
	s.Sessions.ClearLobby(peer.PlayerID())

	if !s.closeLobbyIfEmpty(l) {
		l.BroadcastState()
		s.BroadcastLobbyList()
	}
	peer.Send(protocol.New(protocol.TypeLobbyList, protocol.LobbyListPayload{Lobbies: s.Lobbies.List()}))
}

func (s *Server) handleSetName(peer *Peer, raw json.RawMessage) {
	l, sess := s.currentLobby(peer)
	if l == nil || sess.IsSpectator {
		return
	}
	var payload protocol.SetNamePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid setName payload"))
		return
	}
	if err := l.SetName(peer.PlayerID(), payload.Name); err != nil {
		if errors.Is(err, lobby.ErrRoundInProgress) {
			peer.Send(protocol.Error("cannot rename during a round"))
		} else {
			peer.Send(protocol.Error("not in a lobby"))
		}
		return
	}
	l.BroadcastState()
}

func (s *Server) handleReady(peer *Peer, raw json.RawMessage) {
	l, sess := s.currentLobby(peer)
	if l == nil || sess.IsSpectator {
		return
	}
	var payload protocol.ReadyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid ready payload"))
		return
	}
	if err := l.SetReady(peer.PlayerID(), payload.Ready); err != nil {
		return
	}
	l.BroadcastState()
}

func (s *Server) handleUpdateSettings(peer *Peer, raw json.RawMessage) {
	l, ok := s.requireHost(peer)
	if !ok {
		return
	}
	var payload protocol.UpdateSettingsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid updateSettings payload"))
		return
	}
	l.UpdateSettings(payload.Settings)
	l.BroadcastState()
	s.BroadcastLobbyList()
}

// handleModeration covers kick and ban; both are host-only and cannot target
// the host itself or a bot.
func (s *Server) handleModeration(peer *Peer, raw json.RawMessage, ban bool) {
	l, ok := s.requireHost(peer)
	if !ok {
		return
	}
	var payload protocol.TargetPlayerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid payload"))
		return
	}
	if payload.PlayerID == peer.PlayerID() {
		peer.Send(protocol.Error("cannot act on yourself"))
		return
	}
	target := l.Player(payload.PlayerID)
	if target == nil {
		peer.Send(protocol.Error("player not found"))
		return
	}
	if target.IsBot() {
		peer.Send(protocol.Error("cannot kick or ban a bot"))
		return
	}

	var err error
	if ban {
		err = l.Ban(payload.PlayerID)
	} else {
		err = l.Kick(payload.PlayerID)
	}
	if err != nil {
		peer.Send(protocol.Error("player not found"))
		return
	}

	s.Sessions.ClearLobby(payload.PlayerID)
	if ban {
		s.SendToPeer(payload.PlayerID, protocol.New(protocol.TypeBanned,
			protocol.MessageOnlyPayload{Message: "you were banned from the lobby"}))
	} else {
		s.SendToPeer(payload.PlayerID, protocol.New(protocol.TypeKicked,
			protocol.MessageOnlyPayload{Message: "you were kicked from the lobby"}))
	}
	s.sendConnectedReset(payload.PlayerID)

	l.BroadcastState()
	s.BroadcastLobbyList()
}

func (s *Server) handleAddAIBot(peer *Peer) {
	l, ok := s.requireHost(peer)
	if !ok {
		return
	}
	if _, err := l.AddAIBot(); err != nil {
		peer.Send(protocol.Error(joinError(err)))
		return
	}
	l.BroadcastState()
	s.BroadcastLobbyList()
}

func (s *Server) handleRemoveAIBot(peer *Peer, raw json.RawMessage) {
	l, ok := s.requireHost(peer)
	if !ok {
		return
	}
	var payload protocol.TargetPlayerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid payload"))
		return
	}
	if err := l.RemoveAIBot(payload.PlayerID); err != nil {
		if errors.Is(err, lobby.ErrNotABot) {
			peer.Send(protocol.Error("target is not a bot"))
		} else {
			peer.Send(protocol.Error("player not found"))
		}
		return
	}
	l.BroadcastState()
	s.BroadcastLobbyList()
}

func (s *Server) handleMove(peer *Peer, raw json.RawMessage) {
	g := s.currentGame(peer)
	if g == nil {
		return
	}
	var payload protocol.MovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	g.HandleMove(peer.PlayerID(), grid.Direction(payload.Direction))
}

func (s *Server) handleBrake(peer *Peer, raw json.RawMessage) {
	g := s.currentGame(peer)
	if g == nil {
		return
	}
	var payload protocol.BrakePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	g.HandleBrake(peer.PlayerID(), payload.Braking)
}

func (s *Server) handleUseTrailEraser(peer *Peer) {
	g := s.currentGame(peer)
	if g == nil {
		return
	}
	g.UseTrailEraser(peer.PlayerID())
}

func (s *Server) handleReturnToLobby(peer *Peer) {
	l, _ := s.currentLobby(peer)
	if l == nil {
		return
	}
	l.ReturnToLobby()
	l.BroadcastState()
}

func (s *Server) handleSaveReplay(peer *Peer) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil {
		return
	}
	if sess.UserID == "" {
		peer.Send(protocol.Error("no user id set"))
		return
	}
	l, _ := s.currentLobby(peer)
	if l == nil {
		return
	}

	l.Mu.Lock()
	rec := l.Recorder
	l.Mu.Unlock()
	if rec == nil || !rec.HasData() {
		peer.Send(protocol.Error("no replay available"))
		return
	}

	replayID := replay.NewReplayID()
	data, err := rec.Build(replayID, sess.UserID, time.Now())
	if err != nil {
		peer.Send(protocol.Error("no replay available"))
		return
	}
	if err := s.Replays.Save(context.Background(), data); err != nil {
		// The recorder survives so the user may retry.
		s.logger.Warnf("replay save failed for %s: %v", replayID, err)
		peer.Send(protocol.Error("failed to save replay"))
		return
	}

	l.Mu.Lock()
	if l.Recorder == rec {
		l.Recorder = nil
	}
	l.Mu.Unlock()

	peer.Send(protocol.New(protocol.TypeReplaySaved, protocol.ReplaySavedPayload{
		ReplayID: replayID,
		Message:  "replay saved",
	}))
}

func (s *Server) handleGetUserReplays(peer *Peer) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil || sess.UserID == "" {
		peer.Send(protocol.Error("no user id set"))
		return
	}
	entries, err := s.Replays.List(context.Background(), sess.UserID)
	if err != nil {
		peer.Send(protocol.Error("failed to load replays"))
		return
	}
	peer.Send(protocol.New(protocol.TypeUserReplays, protocol.UserReplaysPayload{Replays: entries}))
}

func (s *Server) handleLoadReplay(peer *Peer, raw json.RawMessage) {
	var payload protocol.LoadReplayPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid loadReplay payload"))
		return
	}
	data, err := s.Replays.Load(context.Background(), payload.ReplayID)
	if err != nil {
		if errors.Is(err, replay.ErrNotFound) {
			peer.Send(protocol.Error("replay not found"))
		} else {
			peer.Send(protocol.Error("failed to load replay"))
		}
		return
	}
	peer.Send(protocol.New(protocol.TypeReplayData, protocol.ReplayDataPayload{Replay: data}))
}

func (s *Server) handleDeleteReplay(peer *Peer, raw json.RawMessage) {
	sess := s.Sessions.Get(peer.PlayerID())
	if sess == nil || sess.UserID == "" {
		peer.Send(protocol.Error("no user id set"))
		return
	}
	var payload protocol.DeleteReplayPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		peer.Send(protocol.Error("invalid deleteReplay payload"))
		return
	}
	if err := s.Replays.Delete(context.Background(), sess.UserID, payload.ReplayID); err != nil {
		if errors.Is(err, replay.ErrNotFound) {
			peer.Send(protocol.Error("replay not found"))
		} else {
			peer.Send(protocol.Error("failed to delete replay"))
		}
		return
	}
	peer.Send(protocol.New(protocol.TypeReplayDeleted, protocol.ReplayDeletedPayload{
		ReplayID: payload.ReplayID,
		Message:  "replay deleted",
	}))
}
