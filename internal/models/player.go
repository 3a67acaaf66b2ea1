// internal/models/player.go
package models

import (
	"strings"
	"time"

	"github.com/luxgrid/luxgrid/internal/grid"
)

// BotIDPrefix marks AI-controlled player ids. The prefix is the
// authoritative bot discriminator across lobbies, the simulator and replays.
const BotIDPrefix = "ai-"

// MaxNameLength is the hard cap applied to player names.
const MaxNameLength = 20

// Player is a participant's in-lobby identity and in-game cycle body.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Avatar string `json:"avatar,omitempty"`

	Position  grid.Point     `json:"position"`
	Direction grid.Direction `json:"direction"`
	// Trail is the ordered list of "x,y" cells the head has entered and not
	// yet erased. Together with Position it is the cycle's occupied set.
	Trail []string `json:"trail"`

	IsReady bool `json:"isReady"`

	Speed int `json:"speed"`
	// SpeedBoostUntil is the absolute boost deadline in unix ms; 0 means no
	// active boost.
	SpeedBoostUntil int64 `json:"speedBoostUntil,omitempty"`

	IsBraking      bool  `json:"isBraking"`
	BrakeStartTime int64 `json:"brakeStartTime,omitempty"`

	HasShield      bool `json:"hasShield"`
	HasTrailEraser bool `json:"hasTrailEraser"`

	GameID string `json:"gameId,omitempty"`

	// LastDirection and LastMoveAt track the most recent accepted move input,
	// used for the double-tap trail-eraser gesture. Not serialized.
	LastDirection grid.Direction `json:"-"`
	LastMoveAt    time.Time      `json:"-"`
}

// IsBot reports whether the player id carries the AI prefix.
func (p *Player) IsBot() bool {
	return strings.HasPrefix(p.ID, BotIDPrefix)
}

// IsCrashed reports whether the cycle is out of the round.
func (p *Player) IsCrashed() bool {
	return p.Direction == grid.Crashed
}

// OccupiedCells returns the head plus trail as a key set.
func (p *Player) OccupiedCells() map[string]bool {
	cells := make(map[string]bool, len(p.Trail)+1)
	for _, c := range p.Trail {
		cells[c] = true
	}
	cells[p.Position.Key()] = true
	return cells
}

// ResetForRound clears all round-scoped state and places the cycle at the
// given spawn. A crashed direction is lifted by the reset.
func (p *Player) ResetForRound(pos grid.Point, dir grid.Direction) {
	p.Position = pos
	p.Direction = dir
	p.LastDirection = dir
	p.Trail = nil
	p.Speed = 1
	p.SpeedBoostUntil = 0
	p.IsBraking = false
	p.BrakeStartTime = 0
	p.HasShield = false
	p.HasTrailEraser = false
}

// TruncateName applies the name length cap, counting runes so a multi-byte
// name is never cut mid-character.
func TruncateName(name string) string {
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		return string(runes[:MaxNameLength])
	}
	return name
}

// Spectator watches a lobby without ever entering the simulation.
type Spectator struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joinedAt"`
}
