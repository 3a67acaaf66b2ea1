// internal/grid/spawn.go
package grid

import "math/rand"

// spawnAttempts bounds rejection sampling for a safe spawn cell.
const spawnAttempts = 50

// SafeSpawn picks a spawn cell inside the edge margin that is not occupied
// by any head, trail or obstacle. After the attempt budget is exhausted it
// falls back to (Margin, Margin) facing right. The returned direction is
// uniform over the four cardinals.
func SafeSpawn(gridSize int, occupied map[string]bool, rng *rand.Rand) (Point, Direction) {
	span := gridSize - 2*Margin
	if span <= 0 {
		return Point{X: 0, Y: 0}, Right
	}
	for i := 0; i < spawnAttempts; i++ {
		p := Point{
			X: Margin + rng.Intn(span),
			Y: Margin + rng.Intn(span),
		}
		if occupied[p.Key()] {
			continue
		}
		return p, Cardinals[rng.Intn(len(Cardinals))]
	}
	return Point{X: Margin, Y: Margin}, Right
}
