// internal/ai/driver.go

// Package ai selects a per-tick direction for bot cycles. The driver is a
// pure function of its inputs so bot behaviour in replays is reproducible.
package ai

import (
	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/models"
)

const (
	unsafeScore      = -1000
	lookaheadBonus   = 100
	powerUpRange     = 10
	powerUpWeight    = 5
	centerBiasWeight = 2
	reversePenalty   = 50
)

// View is the read-only game context the driver scores against.
type View struct {
	GridSize  int
	Obstacles map[string]bool
	PowerUps  []models.PowerUp
	Players   []*models.Player
}

// ChooseDirection scores the four cardinals for the bot and returns the
// highest. Ties resolve in the fixed cardinal order; an empty candidate set
// falls back to right. Power-up attraction is always computed against the
// first power-up in the list so identical inputs yield identical output.
func ChooseDirection(bot *models.Player, v View) grid.Direction {
	blocked := blockedCells(bot, v)
	center := grid.Point{X: v.GridSize / 2, Y: v.GridSize / 2}

	best := grid.Right
	bestScore := unsafeScore * 2
	for _, dir := range grid.Cardinals {
		next := bot.Position.Moved(dir)
		score := 0
		if !cellSafe(next, v.GridSize, blocked) {
			score = unsafeScore
		}
		if safeNeighbors(next, v.GridSize, blocked) >= 2 {
			score += lookaheadBonus
		}
		if len(v.PowerUps) > 0 {
			if d := next.Manhattan(v.PowerUps[0].Point()); d < powerUpRange {
				score += (powerUpRange - d) * powerUpWeight
			}
		}
		score += (v.GridSize - next.Manhattan(center)) * centerBiasWeight
		if dir == bot.Direction.Opposite() {
			score -= reversePenalty
		}
		if score > bestScore {
			bestScore = score
			best = dir
		}
	}
	return best
}

// blockedCells collects every cell deadly to the bot: obstacles, all trails,
// and the heads of the other cycles.
func blockedCells(bot *models.Player, v View) map[string]bool {
	cells := make(map[string]bool, len(v.Obstacles))
	for c := range v.Obstacles {
		cells[c] = true
	}
	for _, p := range v.Players {
		for _, c := range p.Trail {
			cells[c] = true
		}
		if p.ID != bot.ID {
			cells[p.Position.Key()] = true
		}
	}
	return cells
}

func cellSafe(p grid.Point, gridSize int, blocked map[string]bool) bool {
	return p.InBounds(gridSize) && !blocked[p.Key()]
}

func safeNeighbors(p grid.Point, gridSize int, blocked map[string]bool) int {
	n := 0
	for _, dir := range grid.Cardinals {
		if cellSafe(p.Moved(dir), gridSize, blocked) {
			n++
		}
	}
	return n
}
