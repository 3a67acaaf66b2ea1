// internal/grid/grid.go
package grid

import "fmt"

// Margin is the distance from every arena edge inside which obstacles,
// spawns and power-ups are placed.
const Margin = 5

// Point is a single cell on the arena grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key returns the canonical "x,y" form used for trail and obstacle sets.
func (p Point) Key() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// InBounds reports whether the point lies inside a size x size grid.
func (p Point) InBounds(size int) bool {
	return p.X >= 0 && p.X < size && p.Y >= 0 && p.Y < size
}

// Manhattan returns the Manhattan distance to another point.
func (p Point) Manhattan(o Point) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

// Direction is a cycle heading. Crashed is an absorbing pseudo-direction;
// a crashed cycle never moves again until a full round reset.
type Direction string

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Left    Direction = "left"
	Right   Direction = "right"
	Crashed Direction = "crashed"
)

// Cardinals lists the four movement directions in the fixed evaluation
// order used by the AI driver and tests.
var Cardinals = [4]Direction{Up, Down, Left, Right}

// Delta returns the per-step cell offset for the direction.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// Opposite returns the 180-degree reversal of the direction.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return d
}

// Moved returns the cell one step from p in direction d.
func (p Point) Moved(d Direction) Point {
	dx, dy := d.Delta()
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
