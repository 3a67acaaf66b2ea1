// internal/models/powerup.go
package models

import "github.com/luxgrid/luxgrid/internal/grid"

// PowerUpType enumerates the consumable items a cycle can pick up.
type PowerUpType string

const (
	PowerUpSpeed       PowerUpType = "speed"
	PowerUpShield      PowerUpType = "shield"
	PowerUpTrailEraser PowerUpType = "trailEraser"
)

// PowerUpTypes is the uniform spawn pool, in a fixed order so seeded games
// stay reproducible.
var PowerUpTypes = [3]PowerUpType{PowerUpSpeed, PowerUpShield, PowerUpTrailEraser}

// PowerUp is a single item on the grid. At most one occupies any cell.
type PowerUp struct {
	X    int         `json:"x"`
	Y    int         `json:"y"`
	Type PowerUpType `json:"type"`
}

// Point returns the power-up cell.
func (p PowerUp) Point() grid.Point {
	return grid.Point{X: p.X, Y: p.Y}
}
