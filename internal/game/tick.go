// internal/game/tick.go
package game

import (
	"time"

	"github.com/luxgrid/luxgrid/internal/ai"
	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/models"
	"github.com/luxgrid/luxgrid/internal/protocol"
	"github.com/luxgrid/luxgrid/internal/replay"
)

const (
	// powerUpSpawnChance is the per-tick probability of a spawn attempt.
	powerUpSpawnChance = 0.10
	// powerUpSpawnAttempts bounds rejection sampling for a free cell.
	powerUpSpawnAttempts = 50
)

// Tick advances the simulation by one 200 ms step: bot steering, power-up
// spawning, per-player movement in iteration order, the single gameState
// broadcast, the position snapshot, and the end-of-round check.
func (g *Game) Tick() TickResult {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StatePlaying {
		return TickResult{}
	}

	now := g.Now()
	nowMs := now.UnixMilli()
	g.frame = (g.frame + 1) % 4
	g.Ticks++
	if g.Recorder != nil {
		g.Recorder.AdvanceTick()
	}

	// Bot steering runs before movement so a bot reacts to the grid as it
	// stood at the end of the previous tick.
	for _, p := range g.Players {
		if !p.IsBot() || p.IsCrashed() {
			continue
		}
		dir := ai.ChooseDirection(p, ai.View{
			GridSize:  g.GridSize,
			Obstacles: g.Obstacles,
			PowerUps:  g.PowerUps,
			Players:   g.Players,
		})
		if dir != p.Direction {
			g.applyMoveLocked(p, dir, now)
		}
	}

	g.maybeSpawnPowerUpLocked(now)

	// Movement resolves strictly player-by-player in iteration order.
	for _, p := range g.Players {
		if p.IsCrashed() {
			continue
		}
		g.movePlayerLocked(p, now, nowMs)
	}

	g.send(protocol.New(protocol.TypeGameState, g.stateViewLocked()))

	if g.Recorder != nil {
		g.Recorder.RecordEvent(replay.EventPositionSnapshot, g.positionSnapshotLocked(), now)
	}

	return g.endCheckLocked(now)
}

// movePlayerLocked advances one cycle by its step count for this tick.
func (g *Game) movePlayerLocked(p *models.Player, now time.Time, nowMs int64) {
	if p.SpeedBoostUntil != 0 && nowMs >= p.SpeedBoostUntil {
		p.SpeedBoostUntil = 0
		p.Speed = 1
	}

	steps := 1
	switch {
	case p.IsBraking:
		// Braking moves one cell every fifth tick: 20% of normal pace.
		if g.Ticks%5 == 0 {
			steps = 1
		} else {
			steps = 0
		}
	case p.SpeedBoostUntil > nowMs:
		steps = 2
	}

	for s := 0; s < steps; s++ {
		p.Trail = append(p.Trail, p.Position.Key())
		next := p.Position.Moved(p.Direction)
		if g.collisionLocked(p, next) {
			// Undo the push so the occupied set stays head+trail exactly.
			p.Trail = p.Trail[:len(p.Trail)-1]
			if p.HasShield {
				p.HasShield = false
				g.send(protocol.New(protocol.TypeShieldAbsorbed, protocol.PlayerEventPayload{PlayerID: p.ID}))
				return
			}
			g.crashLocked(p, now)
			return
		}
		p.Position = next
		if idx := g.powerUpAtLocked(next); idx >= 0 {
			g.collectPowerUpLocked(p, idx, now, nowMs)
		}
	}
}

// collisionLocked tests the candidate head cell against walls, obstacles,
// every other cycle's occupied set, and the mover's own trail minus its
// newest cell.
func (g *Game) collisionLocked(p *models.Player, next grid.Point) bool {
	if !next.InBounds(g.GridSize) {
		return true
	}
	key := next.Key()
	if g.Obstacles[key] {
		return true
	}
	for _, o := range g.Players {
		if o.ID == p.ID {
			for i := 0; i < len(p.Trail)-1; i++ {
				if p.Trail[i] == key {
					return true
				}
			}
			continue
		}
		if o.Position.Key() == key {
			return true
		}
		for _, c := range o.Trail {
			if c == key {
				return true
			}
		}
	}
	return false
}

func (g *Game) maybeSpawnPowerUpLocked(now time.Time) {
	if g.rng.Float64() >= powerUpSpawnChance {
		return
	}
	if len(g.PowerUps) >= g.Settings.MaxPowerUps {
		return
	}
	span := g.GridSize - 2*grid.Margin
	if span <= 0 {
		return
	}
	for i := 0; i < powerUpSpawnAttempts; i++ {
		cell := grid.Point{
			X: grid.Margin + g.rng.Intn(span),
			Y: grid.Margin + g.rng.Intn(span),
		}
		if g.cellBlockedForPowerUpLocked(cell) {
			continue
		}
		typ := models.PowerUpTypes[g.rng.Intn(len(models.PowerUpTypes))]
		g.PowerUps = append(g.PowerUps, models.PowerUp{X: cell.X, Y: cell.Y, Type: typ})
		if g.Recorder != nil {
			g.Recorder.RecordEvent(replay.EventPowerUpSpawned, map[string]any{
				"x": cell.X, "y": cell.Y, "type": string(typ),
			}, now)
		}
		return
	}
}

// cellBlockedForPowerUpLocked rejects cells holding an obstacle, any trail
// cell, or another power-up.
func (g *Game) cellBlockedForPowerUpLocked(cell grid.Point) bool {
	key := cell.Key()
	if g.Obstacles[key] {
		return true
	}
	for _, p := range g.Players {
		for _, c := range p.Trail {
			if c == key {
				return true
			}
		}
	}
	for _, pu := range g.PowerUps {
		if pu.X == cell.X && pu.Y == cell.Y {
			return true
		}
	}
	return false
}

func (g *Game) powerUpAtLocked(cell grid.Point) int {
	for i, pu := range g.PowerUps {
		if pu.X == cell.X && pu.Y == cell.Y {
			return i
		}
	}
	return -1
}

func (g *Game) collectPowerUpLocked(p *models.Player, idx int, now time.Time, nowMs int64) {
	pu := g.PowerUps[idx]
	g.PowerUps = append(g.PowerUps[:idx], g.PowerUps[idx+1:]...)

	switch pu.Type {
	case models.PowerUpSpeed:
		boost := int64(g.Settings.SpeedBoostDuration)
		if p.SpeedBoostUntil > nowMs {
			// Stacked boosts extend the existing deadline.
			p.SpeedBoostUntil += boost
		} else {
			p.Speed = 2
			p.SpeedBoostUntil = nowMs + boost
		}
	case models.PowerUpShield:
		p.HasShield = true
	case models.PowerUpTrailEraser:
		p.HasTrailEraser = true
	}

	if g.Recorder != nil {
		g.Recorder.RecordEvent(replay.EventPowerUpCollected, map[string]any{
			"playerId": p.ID, "type": string(pu.Type), "x": pu.X, "y": pu.Y,
		}, now)
	}
}

// endCheckLocked applies the end condition: nobody alive, or one survivor
// in a multiplayer round.
func (g *Game) endCheckLocked(now time.Time) TickResult {
	var active []*models.Player
	for _, p := range g.Players {
		if !p.IsCrashed() {
			active = append(active, p)
		}
	}
	ended := len(active) == 0 || (len(active) == 1 && len(g.Players) > 1)
	if !ended {
		return TickResult{}
	}

	g.state = StateGameOver
	var winner *models.Player
	if len(active) == 1 {
		winner = active[0]
	}
	g.Winner = winner
	draw := winner == nil && len(g.Players) > 1

	if g.Recorder != nil {
		payload := map[string]any{"draw": draw}
		if winner != nil {
			payload["winner"] = winner.ID
		}
		g.Recorder.RecordEvent(replay.EventGameOver, payload, now)
	}
	return TickResult{Ended: true, Winner: winner, Draw: draw}
}

// stateViewLocked derives the broadcast snapshot; nothing in it aliases the
// live players.
func (g *Game) stateViewLocked() models.GameStateView {
	players := make([]models.GamePlayerView, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, models.SnapshotPlayer(p))
	}
	return models.GameStateView{
		Players:   players,
		PowerUps:  append([]models.PowerUp(nil), g.PowerUps...),
		Obstacles: append([]string(nil), g.obstacleKeys...),
		GridSize:  g.GridSize,
		GameState: string(g.state),
	}
}

func (g *Game) positionSnapshotLocked() map[string]any {
	players := make(map[string]any, len(g.Players))
	for _, p := range g.Players {
		players[p.ID] = map[string]any{
			"x":         p.Position.X,
			"y":         p.Position.Y,
			"direction": string(p.Direction),
			"trail":     append([]string(nil), p.Trail...),
		}
	}
	return map[string]any{"players": players}
}
