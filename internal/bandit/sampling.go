package bandit

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// minShape floors Gamma shape parameters. Shapes at or below zero have
// no density; treating them as a vanishingly small shape keeps the
// sampler total without changing results for any legal input.
const minShape = 1e-12

// Sampler draws the random variates the bandit needs. It is
// self-contained (Box-Muller normals feeding a Marsaglia-Tsang Gamma
// rejection sampler) so the distributional behavior is identical across
// deployments regardless of platform math libraries.
//
// Safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler seeded from the wall clock.
func NewSampler() *Sampler {
	return NewSeededSampler(time.Now().UnixNano())
}

// NewSeededSampler returns a deterministic sampler for tests.
func NewSeededSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Normal draws a standard normal variate via Box-Muller.
func (s *Sampler) Normal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalLocked()
}

func (s *Sampler) normalLocked() float64 {
	var u1 float64
	for u1 == 0 {
		u1 = s.rng.Float64()
	}
	u2 := s.rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Gamma draws from Gamma(shape, 1) using the Marsaglia-Tsang method.
// Shapes below 1 use the boost-by-one identity:
// Gamma(a) = Gamma(a+1) * U^(1/a).
func (s *Sampler) Gamma(shape float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gammaLocked(shape)
}

func (s *Sampler) gammaLocked(shape float64) float64 {
	if shape < minShape {
		shape = minShape
	}

	if shape < 1 {
		// Boost and power-transform back down.
		g := s.gammaLocked(shape + 1)
		var u float64
		for u == 0 {
			u = s.rng.Float64()
		}
		return g * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := s.normalLocked()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta draws from Beta(a, b) as Ga/(Ga+Gb) with two independent
// Gamma(shape, 1) variates.
func (s *Sampler) Beta(a, b float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ga := s.gammaLocked(a)
	gb := s.gammaLocked(b)
	sum := ga + gb
	if sum == 0 {
		// Both shapes were so small the variates underflowed; the
		// distribution is symmetric at this point.
		return 0.5
	}
	return ga / sum
}
