// internal/grid/color.go
package grid

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
)

// hueSimilarityThreshold is the angular distance in degrees below which two
// player colors are considered indistinguishable.
const hueSimilarityThreshold = 30

var hslPattern = regexp.MustCompile(`^hsl\(\s*(\d+)\s*,\s*\d+%\s*,\s*\d+%\s*\)$`)

// ParseHue extracts the hue component from an "hsl(H, S%, L%)" string.
func ParseHue(color string) (int, bool) {
	m := hslPattern.FindStringSubmatch(color)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return h % 360, true
}

// HuesSimilar reports whether two hues are within the similarity threshold,
// accounting for hue wrap-around.
func HuesSimilar(a, b int) bool {
	d := abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d < hueSimilarityThreshold
}

// ColorsSimilar reports whether two HSL color strings have similar hues.
// Unparseable colors never collide.
func ColorsSimilar(a, b string) bool {
	ha, okA := ParseHue(a)
	hb, okB := ParseHue(b)
	if !okA || !okB {
		return false
	}
	return HuesSimilar(ha, hb)
}

// RandomDistinctColor returns an HSL color whose hue clears the similarity
// threshold against every color in taken. Gives up after a bounded number of
// draws and returns the last candidate.
func RandomDistinctColor(taken []string, rng *rand.Rand) string {
	var hue int
	for i := 0; i < 36; i++ {
		hue = rng.Intn(360)
		collides := false
		for _, c := range taken {
			if h, ok := ParseHue(c); ok && HuesSimilar(hue, h) {
				collides = true
				break
			}
		}
		if !collides {
			break
		}
	}
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue)
}
