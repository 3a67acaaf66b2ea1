// internal/models/views.go
package models

import "github.com/luxgrid/luxgrid/internal/grid"

// Broadcast views are derived copies. Nothing in this file aliases live
// simulation state; the fabric only ever sees these.

// LobbyPlayerView is the compact per-player entry in a lobbyState message.
type LobbyPlayerView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	IsReady bool   `json:"isReady"`
}

// SpectatorView is the compact spectator entry in a lobbyState message.
type SpectatorView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LobbyStateView is the payload of a lobbyState broadcast.
type LobbyStateView struct {
	LobbyID            string            `json:"lobbyId"`
	State              string            `json:"state"`
	Players            []LobbyPlayerView `json:"players"`
	Spectators         []SpectatorView   `json:"spectators"`
	Settings           LobbySettings     `json:"settings"`
	HostID             string            `json:"hostId,omitempty"`
	CountdownRemaining int               `json:"countdownRemaining,omitempty"`
	RoundNumber        int               `json:"roundNumber"`
}

// LobbyListItem is one entry of a lobbyList broadcast.
type LobbyListItem struct {
	LobbyID     string `json:"lobbyId"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	GridSize    int    `json:"gridSize"`
	IsPrivate   bool   `json:"isPrivate"`
	HostName    string `json:"hostName"`
	State       string `json:"state"`
}

// GamePlayerView is one player in a gameState broadcast: a full copy of the
// body fields plus a copied trail.
type GamePlayerView struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Color           string         `json:"color"`
	Position        grid.Point     `json:"position"`
	Direction       grid.Direction `json:"direction"`
	Trail           []string       `json:"trail"`
	Speed           int            `json:"speed"`
	SpeedBoostUntil int64          `json:"speedBoostUntil,omitempty"`
	IsBraking       bool           `json:"isBraking"`
	HasShield       bool           `json:"hasShield"`
	HasTrailEraser  bool           `json:"hasTrailEraser"`
}

// GameStateView is the payload of a gameState broadcast.
type GameStateView struct {
	Players   []GamePlayerView `json:"players"`
	PowerUps  []PowerUp        `json:"powerUps"`
	Obstacles []string         `json:"obstacles"`
	GridSize  int              `json:"gridSize"`
	GameState string           `json:"gameState"`
}

// SnapshotPlayer copies the broadcast-relevant body of a player.
func SnapshotPlayer(p *Player) GamePlayerView {
	trail := make([]string, len(p.Trail))
	copy(trail, p.Trail)
	return GamePlayerView{
		ID:              p.ID,
		Name:            p.Name,
		Color:           p.Color,
		Position:        p.Position,
		Direction:       p.Direction,
		Trail:           trail,
		Speed:           p.Speed,
		SpeedBoostUntil: p.SpeedBoostUntil,
		IsBraking:       p.IsBraking,
		HasShield:       p.HasShield,
		HasTrailEraser:  p.HasTrailEraser,
	}
}
