package core

import "math/rand/v2"

// RNG is a thin convenience wrapper around math/rand/v2 for deterministic seeding.
type RNG struct {
	r *rand.Rand
}

// NewRNG creates a deterministic RNG using the provided seed.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// Chance reports true with probability p.
func (r *RNG) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return r.r.Float64() < p
}

// Fill sets every cell of g alive with probability density.
func (r *RNG) Fill(g *Grid, density float64) {
	for row := range g {
		for col := range g[row] {
			g[row][col] = r.Chance(density)
		}
	}
}

// RandomGrid returns a seeded soup with the given live-cell density.
func RandomGrid(seed int64, density float64) Grid {
	var g Grid
	NewRNG(seed).Fill(&g, density)
	return g
}

// Source exposes the underlying rand.Rand for advanced use.
func (r *RNG) Source() *rand.Rand { return r.r }
