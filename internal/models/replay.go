// internal/models/replay.go
package models

import "github.com/luxgrid/luxgrid/internal/grid"

// MaxReplaysPerUser caps the per-user replay index; the oldest entries and
// their blobs are evicted beyond it.
const MaxReplaysPerUser = 50

// ReplayMetadata describes a saved replay without its tick data.
type ReplayMetadata struct {
	ReplayID    string  `json:"replayId"`
	UserID      string  `json:"userId,omitempty"`
	LobbyName   string  `json:"lobbyName"`
	CreatedAt   int64   `json:"createdAt"`
	Duration    int     `json:"duration"`
	TotalTicks  int     `json:"totalTicks"`
	Winner      *string `json:"winner,omitempty"`
	PlayerCount int     `json:"playerCount"`
	GridSize    int     `json:"gridSize"`
}

// ReplayPlayer is a participant snapshot inside a replay's initial state.
type ReplayPlayer struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Color     string         `json:"color"`
	Position  grid.Point     `json:"position"`
	Direction grid.Direction `json:"direction"`
	IsBot     bool           `json:"isBot"`
}

// ReplayInitialState captures everything needed to reconstruct tick zero.
type ReplayInitialState struct {
	GridSize  int            `json:"gridSize"`
	Players   []ReplayPlayer `json:"players"`
	Obstacles []string       `json:"obstacles"`
	Settings  GameSettings   `json:"settings"`
}

// ReplayAction is a player input recorded against a tick.
type ReplayAction struct {
	Tick      int            `json:"tick"`
	PlayerID  string         `json:"playerId"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ReplayEvent is a simulation event recorded against a tick.
type ReplayEvent struct {
	Tick      int            `json:"tick"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ReplayData is the full persisted replay blob.
type ReplayData struct {
	Metadata     ReplayMetadata     `json:"metadata"`
	InitialState ReplayInitialState `json:"initialState"`
	Actions      []ReplayAction     `json:"actions"`
	Events       []ReplayEvent      `json:"events"`
}

// UserReplayEntry is one row of a user's replay index. The embedded metadata
// copy omits the user id.
type UserReplayEntry struct {
	ReplayID string         `json:"replayId"`
	Metadata ReplayMetadata `json:"metadata"`
}

// UserReplayIndex is the per-user index blob, newest first.
type UserReplayIndex struct {
	UserID  string            `json:"userId"`
	Replays []UserReplayEntry `json:"replays"`
}
