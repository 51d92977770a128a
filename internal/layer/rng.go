package layer

import (
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RNG is a seeded source used for weight initialisation and dropout masks.
type RNG struct {
	src rand.Source
	r   *rand.Rand
}

// NewRNG creates a deterministic generator.
func NewRNG(seed uint64) *RNG {
	src := rand.NewSource(seed)
	return &RNG{src: src, r: rand.New(src)}
}

// RandFloat returns a float in [0, 1).
func (g *RNG) RandFloat() float64 {
	return g.r.Float64()
}

// Uniform returns a uniform distribution over [-bound, bound) drawing from g.
func (g *RNG) Uniform(bound float64) distuv.Uniform {
	return distuv.Uniform{Min: -bound, Max: bound, Src: g.src}
}

// InitParams fills params with U(-1/sqrt(fanIn), 1/sqrt(fanIn)), where fanIn
// is the product of every weight dimension but the first. Biases use the
// fan-in of the weight registered just before them.
func InitParams(params []*Param, seed uint64) {
	g := NewRNG(seed)
	fanIn := 1
	for _, p := range params {
		if strings.HasSuffix(p.Name, "weight") && len(p.Shape) > 1 {
			fanIn = 1
			for _, d := range p.Shape[1:] {
				fanIn *= d
			}
		}
		dist := g.Uniform(1 / math.Sqrt(float64(fanIn)))
		for i := range p.Data {
			p.Data[i] = dist.Rand()
		}
	}
}
