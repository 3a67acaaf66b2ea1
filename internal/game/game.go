// internal/game/game.go

// Package game holds the authoritative match simulation: the game state
// machine and the fixed-tick resolver for movement, collisions and
// power-ups.
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/models"
	"github.com/luxgrid/luxgrid/internal/protocol"
	"github.com/luxgrid/luxgrid/internal/replay"
)

// State is the game machine state.
type State string

const (
	StateIdle     State = "idle"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateGameOver State = "gameOver"
)

// eraserTapWindow is how quickly the held direction must be pressed again to
// trigger the trail eraser.
const eraserTapWindow = 500 * time.Millisecond

// Game is a single match instance. All mutation goes through its mutex; the
// owning lobby worker drives ticks and inputs so mutations stay totally
// ordered per lobby.
type Game struct {
	ID      string
	LobbyID string

	Players   []*models.Player
	PowerUps  []models.PowerUp
	Obstacles map[string]bool
	// obstacleKeys preserves generation order for broadcasts and replays.
	obstacleKeys []string

	Settings  models.GameSettings
	GridSize  int
	Ticks     int
	frame     int
	StartTime time.Time
	Winner    *models.Player

	state State
	rng   *rand.Rand

	// Now is the clock; tests substitute a fake.
	Now func() time.Time

	// Broadcast sends a message to every peer in the owning lobby. If nil,
	// nothing is sent.
	Broadcast func(msg protocol.Outbound)

	// Recorder receives actions and events for the replay. Owned by the
	// lobby worker; nil disables recording.
	Recorder *replay.Recorder

	Mu sync.Mutex
}

// TickResult reports what one tick resolved to.
type TickResult struct {
	Ended  bool
	Winner *models.Player
	Draw   bool
}

// NewGame builds an idle game over the given players and obstacles.
func NewGame(lobbyID string, gridSize int, players []*models.Player, obstacles []grid.Point, rng *rand.Rand) *Game {
	g := &Game{
		ID:      uuid.NewString(),
		LobbyID: lobbyID,
		// Own copy of the roster: the lobby compacts its slice when a
		// player leaves, and the round must keep resolving the leaver.
		Players:   append([]*models.Player(nil), players...),
		Obstacles: make(map[string]bool, len(obstacles)),
		Settings:  models.DefaultGameSettings(),
		GridSize:  gridSize,
		state:     StateIdle,
		rng:       rng,
		Now:       time.Now,
	}
	for _, o := range obstacles {
		key := o.Key()
		if !g.Obstacles[key] {
			g.Obstacles[key] = true
			g.obstacleKeys = append(g.obstacleKeys, key)
		}
	}
	for _, p := range players {
		p.GameID = g.ID
	}
	return g
}

// State returns the current machine state.
func (g *Game) State() State {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.state
}

// Start moves idle -> playing and records the gameStarted event.
func (g *Game) Start() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StateIdle {
		return
	}
	g.state = StatePlaying
	g.StartTime = g.Now()
	for _, p := range g.Players {
		if p.Speed == 0 {
			p.Speed = 1
		}
		p.LastDirection = p.Direction
	}
	if g.Recorder != nil {
		g.Recorder.RecordEvent(replay.EventGameStarted, nil, g.StartTime)
	}
	log.Infof("game %s started: %d players, grid %d", g.ID, len(g.Players), g.GridSize)
}

// Pause suspends the simulation; ticks are ignored while paused.
func (g *Game) Pause() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state == StatePlaying {
		g.state = StatePaused
	}
}

// Resume returns a paused game to playing.
func (g *Game) Resume() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state == StatePaused {
		g.state = StatePlaying
	}
}

// Stop force-ends the game without a winner, e.g. when the lobby closes.
func (g *Game) Stop() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StateGameOver {
		g.state = StateGameOver
	}
}

// InitialState captures the replay tick-zero snapshot.
func (g *Game) InitialState() models.ReplayInitialState {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	players := make([]models.ReplayPlayer, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, models.ReplayPlayer{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			Position:  p.Position,
			Direction: p.Direction,
			IsBot:     p.IsBot(),
		})
	}
	return models.ReplayInitialState{
		GridSize:  g.GridSize,
		Players:   players,
		Obstacles: append([]string(nil), g.obstacleKeys...),
		Settings:  g.Settings,
	}
}

// HandleMove applies a direction input from a player or bot. A 180-degree
// reversal with a non-empty trail is silently ignored; repeating the held
// direction within the tap window triggers the trail eraser.
func (g *Game) HandleMove(playerID string, dir grid.Direction) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.playerLocked(playerID)
	if p == nil {
		return
	}
	g.applyMoveLocked(p, dir, g.Now())
}

// HandleBrake toggles a player's brake.
func (g *Game) HandleBrake(playerID string, braking bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StatePlaying {
		return
	}
	p := g.playerLocked(playerID)
	if p == nil || p.IsCrashed() || p.IsBraking == braking {
		return
	}
	now := g.Now()
	p.IsBraking = braking
	if braking {
		p.BrakeStartTime = now.UnixMilli()
	} else {
		p.BrakeStartTime = 0
	}
	if g.Recorder != nil {
		g.Recorder.RecordAction(p.ID, replay.ActionBrake, map[string]any{"braking": braking}, now)
	}
}

// UseTrailEraser consumes the charge via the explicit message route. The
// double-tap gesture lands in the same place.
func (g *Game) UseTrailEraser(playerID string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StatePlaying {
		return
	}
	p := g.playerLocked(playerID)
	if p == nil || p.IsCrashed() {
		return
	}
	g.consumeTrailEraserLocked(p, g.Now())
}

// MarkCrashed takes a player out of the round, e.g. on mid-game disconnect.
func (g *Game) MarkCrashed(playerID string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.playerLocked(playerID)
	if p == nil || p.IsCrashed() {
		return
	}
	g.crashLocked(p, g.Now())
}

func (g *Game) playerLocked(playerID string) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (g *Game) applyMoveLocked(p *models.Player, dir grid.Direction, now time.Time) {
	if g.state != StatePlaying || p.IsCrashed() {
		return
	}
	switch dir {
	case grid.Up, grid.Down, grid.Left, grid.Right:
	default:
		return
	}
	// Reverse guard: cannot turn into your own neck.
	if dir == p.Direction.Opposite() && len(p.Trail) > 0 {
		return
	}
	if dir == p.Direction {
		if p.HasTrailEraser && !p.LastMoveAt.IsZero() && now.Sub(p.LastMoveAt) < eraserTapWindow {
			g.consumeTrailEraserLocked(p, now)
		}
		p.LastMoveAt = now
		return
	}
	p.Direction = dir
	p.LastDirection = dir
	p.LastMoveAt = now
	if g.Recorder != nil {
		g.Recorder.RecordAction(p.ID, replay.ActionMove, map[string]any{"direction": string(dir)}, now)
	}
}

func (g *Game) consumeTrailEraserLocked(p *models.Player, now time.Time) {
	if !p.HasTrailEraser {
		return
	}
	p.HasTrailEraser = false
	// The charge clears the oldest half of the trail.
	if n := len(p.Trail) / 2; n > 0 {
		p.Trail = append([]string(nil), p.Trail[n:]...)
	}
	if g.Recorder != nil {
		g.Recorder.RecordAction(p.ID, replay.ActionUseTrailEraser, nil, now)
	}
	g.send(protocol.New(protocol.TypeTrailEraserUsed, protocol.PlayerEventPayload{PlayerID: p.ID}))
}

func (g *Game) crashLocked(p *models.Player, now time.Time) {
	p.Direction = grid.Crashed
	p.IsBraking = false
	p.Speed = 1
	p.SpeedBoostUntil = 0
	if g.Recorder != nil {
		g.Recorder.RecordEvent(replay.EventPlayerCrashed, map[string]any{"playerId": p.ID}, now)
	}
	g.send(protocol.New(protocol.TypePlayerCrashed, protocol.PlayerEventPayload{PlayerID: p.ID}))
}

func (g *Game) send(msg protocol.Outbound) {
	if g.Broadcast != nil {
		g.Broadcast(msg)
	}
}
