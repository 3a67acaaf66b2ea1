// internal/protocol/messages.go
package protocol

import (
	"encoding/json"

	"github.com/luxgrid/luxgrid/internal/models"
)

// Every frame on the wire is {"type": string, "payload": object}.

// Client-to-server message types.
const (
	TypeReconnect            = "reconnect"
	TypeSetUserID            = "setUserId"
	TypeGetLobbyList         = "getLobbyList"
	TypeCreateLobby          = "createLobby"
	TypeJoinLobby            = "joinLobby"
	TypeJoinLobbyAsSpectator = "joinLobbyAsSpectator"
	TypeLeaveLobby           = "leaveLobby"
	TypeSetName              = "setName"
	TypeReady                = "ready"
	TypeUpdateSettings       = "updateSettings"
	TypeKickPlayer           = "kickPlayer"
	TypeBanPlayer            = "banPlayer"
	TypeAddAIBot             = "addAIBot"
	TypeRemoveAIBot          = "removeAIBot"
	TypeMove                 = "move"
	TypeBrake                = "brake"
	TypeUseTrailEraser       = "useTrailEraser"
	TypeReturnToLobby        = "returnToLobby"
	TypeSaveReplay           = "saveReplay"
	TypeGetUserReplays       = "getUserReplays"
	TypeLoadReplay           = "loadReplay"
	TypeDeleteReplay         = "deleteReplay"
)

// Server-to-client message types.
const (
	TypeConnected       = "connected"
	TypeReconnected     = "reconnected"
	TypeLobbyList       = "lobbyList"
	TypeLobbyJoined     = "lobbyJoined"
	TypeLobbyState      = "lobbyState"
	TypeLobbyClosed     = "lobbyClosed"
	TypeKicked          = "kicked"
	TypeBanned          = "banned"
	TypeGameState       = "gameState"
	TypePlayerCrashed   = "playerCrashed"
	TypeShieldAbsorbed  = "shieldAbsorbed"
	TypeTrailEraserUsed = "trailEraserUsed"
	TypeGameOver        = "gameOver"
	TypeUserReplays     = "userReplays"
	TypeReplayData      = "replayData"
	TypeReplaySaved     = "replaySaved"
	TypeReplayDeleted   = "replayDeleted"
	TypeError           = "error"
)

// Inbound is a raw frame read off the socket; the payload stays opaque until
// the router dispatches on Type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is a frame queued for a peer.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// New builds an outbound frame.
func New(msgType string, payload any) Outbound {
	return Outbound{Type: msgType, Payload: payload}
}

// Error builds the standard error frame.
func Error(message string) Outbound {
	return Outbound{Type: TypeError, Payload: map[string]string{"message": message}}
}

// --- Client payloads ---

type ReconnectPayload struct {
	ReconnectToken string `json:"reconnectToken"`
}

type SetUserIDPayload struct {
	UserID string `json:"userId"`
}

type CreateLobbyPayload struct {
	Name     string                      `json:"name"`
	Color    string                      `json:"color,omitempty"`
	Avatar   string                      `json:"avatar,omitempty"`
	Settings *models.LobbySettingsUpdate `json:"settings,omitempty"`
}

type JoinLobbyPayload struct {
	LobbyID string `json:"lobbyId"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

type SetNamePayload struct {
	Name string `json:"name"`
}

type ReadyPayload struct {
	Ready bool `json:"ready"`
}

type UpdateSettingsPayload struct {
	Settings models.LobbySettingsUpdate `json:"settings"`
}

// TargetPlayerPayload covers kickPlayer, banPlayer and removeAIBot.
type TargetPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type MovePayload struct {
	Direction string `json:"direction"`
}

type BrakePayload struct {
	Braking bool `json:"braking"`
}

type LoadReplayPayload struct {
	ReplayID string `json:"replayId"`
}

type DeleteReplayPayload struct {
	ReplayID string `json:"replayId"`
}

// --- Server payloads ---

type ConnectedPayload struct {
	PlayerID       string                 `json:"playerId"`
	ReconnectToken string                 `json:"reconnectToken"`
	Lobbies        []models.LobbyListItem `json:"lobbies"`
}

type ReconnectedPayload struct {
	PlayerID    string `json:"playerId"`
	LobbyID     string `json:"lobbyId,omitempty"`
	IsSpectator bool   `json:"isSpectator"`
}

type LobbyListPayload struct {
	Lobbies []models.LobbyListItem `json:"lobbies"`
}

type LobbyJoinedPayload struct {
	LobbyID     string                  `json:"lobbyId"`
	Player      *models.LobbyPlayerView `json:"player,omitempty"`
	Spectator   *models.SpectatorView   `json:"spectator,omitempty"`
	GridSize    int                     `json:"gridSize"`
	IsSpectator bool                    `json:"isSpectator,omitempty"`
}

type MessageOnlyPayload struct {
	Message string `json:"message"`
}

type PlayerEventPayload struct {
	PlayerID string `json:"playerId"`
}

type GameOverPayload struct {
	Winner          *string `json:"winner,omitempty"`
	WinnerColor     string  `json:"winnerColor,omitempty"`
	Draw            bool    `json:"draw"`
	ReplayAvailable bool    `json:"replayAvailable"`
}

type UserReplaysPayload struct {
	Replays []models.UserReplayEntry `json:"replays"`
}

type ReplayDataPayload struct {
	Replay *models.ReplayData `json:"replay"`
}

type ReplaySavedPayload struct {
	ReplayID string `json:"replayId"`
	Message  string `json:"message"`
}

type ReplayDeletedPayload struct {
	ReplayID string `json:"replayId"`
	Message  string `json:"message"`
}
