package analysis

import (
	"errors"
	"math"
	"math/rand/v2"
)

// Map is a simulated size x size thickness map in micrometres.
type Map struct {
	Size   int         `json:"size"`
	MeanUM float64     `json:"mean_um"`
	StdUM  float64     `json:"std_um"`
	MinUM  float64     `json:"min_um"`
	MaxUM  float64     `json:"max_um"`
	Values [][]float64 `json:"values"`
}

// ThicknessMap draws a size x size grid from Normal(mean, std) using rng.
func ThicknessMap(mean, std float64, size int, rng *rand.Rand) (*Map, error) {
	if size < 1 {
		return nil, errors.New("analysis: thickness map size must be at least 1")
	}
	if !(std >= 0) {
		return nil, errors.New("analysis: thickness map std must be non-negative")
	}

	m := &Map{
		Size:   size,
		MeanUM: mean,
		StdUM:  std,
		MinUM:  math.Inf(1),
		MaxUM:  math.Inf(-1),
		Values: make([][]float64, size),
	}
	for i := range m.Values {
		row := make([]float64, size)
		for j := range row {
			v := mean + std*rng.NormFloat64()
			row[j] = v
			m.MinUM = math.Min(m.MinUM, v)
			m.MaxUM = math.Max(m.MaxUM, v)
		}
		m.Values[i] = row
	}
	return m, nil
}

// NewRand returns the generator for a thickness map. Seed 0 yields a fresh
// unseeded generator; any other seed is reproducible.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}
