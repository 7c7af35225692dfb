package explanation

import (
	"fmt"
	"math/rand"
	"sync"
)

// ColorGenerator produces display colors for contributing meta-paths.
type ColorGenerator interface {
	Next() string
}

type hslGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewColorGenerator returns a seeded generator of "hsl(h, 70%, 50%)" colors.
// Equal seeds yield equal sequences.
func NewColorGenerator(seed int64) ColorGenerator {
	return &hslGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *hslGenerator) Next() string {
	g.mu.Lock()
	hue := g.rng.Float64() * 255
	g.mu.Unlock()
	return fmt.Sprintf("hsl(%.2f, 70%%, 50%%)", hue)
}
