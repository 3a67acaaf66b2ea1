// internal/grid/obstacles.go
package grid

import (
	"math"
	"math/rand"
)

const (
	// obstacleDensity is the target obstacle fraction per quadrant.
	obstacleDensity = 0.08
	// minObstacleSpacing is the minimum Euclidean distance between obstacles.
	minObstacleSpacing = 5.0
	// obstacleAttemptsPerQuadrant bounds rejection sampling per quadrant.
	obstacleAttemptsPerQuadrant = 100
)

// GenerateObstacles places obstacles across the four grid quadrants.
// Each quadrant targets floor(quadrantSize^2 * density) obstacles, sampled
// uniformly inside the edge margin and rejected when closer than the minimum
// spacing to an already placed obstacle.
func GenerateObstacles(gridSize int, rng *rand.Rand) []Point {
	var obstacles []Point
	half := gridSize / 2
	target := int(math.Floor(float64(half*half) * obstacleDensity))

	quadrants := [4][2]int{
		{0, 0},
		{half, 0},
		{0, half},
		{half, half},
	}

	for _, q := range quadrants {
		placed := 0
		for attempt := 0; attempt < obstacleAttemptsPerQuadrant && placed < target; attempt++ {
			lowX, highX := clampRange(q[0], q[0]+half, Margin, gridSize-Margin)
			lowY, highY := clampRange(q[1], q[1]+half, Margin, gridSize-Margin)
			if highX <= lowX || highY <= lowY {
				break
			}
			p := Point{
				X: lowX + rng.Intn(highX-lowX),
				Y: lowY + rng.Intn(highY-lowY),
			}
			if tooClose(p, obstacles) {
				continue
			}
			obstacles = append(obstacles, p)
			placed++
		}
	}
	return obstacles
}

// clampRange intersects [lo, hi) with [min, max).
func clampRange(lo, hi, min, max int) (int, int) {
	if lo < min {
		lo = min
	}
	if hi > max {
		hi = max
	}
	return lo, hi
}

func tooClose(p Point, placed []Point) bool {
	for _, o := range placed {
		dx := float64(p.X - o.X)
		dy := float64(p.Y - o.Y)
		if math.Sqrt(dx*dx+dy*dy) < minObstacleSpacing {
			return true
		}
	}
	return false
}
