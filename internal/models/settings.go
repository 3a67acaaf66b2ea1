// internal/models/settings.go
package models

// Grid sizes and player caps a host may choose from.
var (
	AllowedGridSizes  = []int{30, 40, 50, 60}
	AllowedMaxPlayers = []int{2, 4, 6, 8}
)

// LobbySettings are host-controlled lobby parameters.
type LobbySettings struct {
	IsPrivate       bool   `json:"isPrivate"`
	GridSize        int    `json:"gridSize"`
	MaxPlayers      int    `json:"maxPlayers"`
	AllowSpectators bool   `json:"allowSpectators"`
	LobbyName       string `json:"lobbyName,omitempty"`
}

// DefaultLobbySettings returns the settings a new lobby starts with.
func DefaultLobbySettings() LobbySettings {
	return LobbySettings{
		IsPrivate:       false,
		GridSize:        40,
		MaxPlayers:      4,
		AllowSpectators: true,
	}
}

// LobbySettingsUpdate is a partial settings change; nil fields are left
// untouched. Invalid grid sizes or player caps are ignored.
type LobbySettingsUpdate struct {
	IsPrivate       *bool   `json:"isPrivate,omitempty"`
	GridSize        *int    `json:"gridSize,omitempty"`
	MaxPlayers      *int    `json:"maxPlayers,omitempty"`
	AllowSpectators *bool   `json:"allowSpectators,omitempty"`
	LobbyName       *string `json:"lobbyName,omitempty"`
}

// Merge applies the update onto s, validating enumerated fields.
func (s *LobbySettings) Merge(u LobbySettingsUpdate) {
	if u.IsPrivate != nil {
		s.IsPrivate = *u.IsPrivate
	}
	if u.GridSize != nil && containsInt(AllowedGridSizes, *u.GridSize) {
		s.GridSize = *u.GridSize
	}
	if u.MaxPlayers != nil && containsInt(AllowedMaxPlayers, *u.MaxPlayers) {
		s.MaxPlayers = *u.MaxPlayers
	}
	if u.AllowSpectators != nil {
		s.AllowSpectators = *u.AllowSpectators
	}
	if u.LobbyName != nil {
		s.LobbyName = *u.LobbyName
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// GameSettings are the fixed simulation constants carried by a game context
// and captured into replays.
type GameSettings struct {
	TickRateMs         int `json:"tickRate"`
	SpeedBoostDuration int `json:"speedBoostDuration"`
	MaxPowerUps        int `json:"maxPowerUps"`
}

// DefaultGameSettings returns the authoritative simulation constants.
func DefaultGameSettings() GameSettings {
	return GameSettings{
		TickRateMs:         200,
		SpeedBoostDuration: 2000,
		MaxPowerUps:        5,
	}
}
