// Package random provides the injectable randomness used by the simulation
// and sampling code, plus the distribution samplers built on top of it.
package random

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Source is the minimal uniform generator the samplers need.
// *rand.Rand satisfies it.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
}

// New returns a deterministic source for the given seed.
func New(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// NewTimeSeeded returns a source seeded from the wall clock.
func NewTimeSeeded() Source {
	return New(time.Now().UnixNano())
}

type lockedSource struct {
	mu  sync.Mutex
	src Source
}

// Locked wraps src so it can be shared between goroutines.
func Locked(src Source) Source {
	if _, ok := src.(*lockedSource); ok {
		return src
	}
	return &lockedSource{src: src}
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

func (l *lockedSource) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

// Fork derives an independent deterministic source from src.
func Fork(src Source) Source {
	return New(int64(src.Intn(math.MaxInt32))<<31 | int64(src.Intn(math.MaxInt32)))
}

// Normal draws a standard normal variate with the Box-Muller transform.
func Normal(src Source) float64 {
	// 1-U keeps u1 in (0, 1] so the log is finite.
	u1 := 1 - src.Float64()
	u2 := src.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Gamma draws from Gamma(shape, 1) with the Marsaglia-Tsang method.
// Shapes below 1 are boosted to shape+1 and scaled by U^(1/shape).
func Gamma(src Source, shape float64) float64 {
	if shape <= 0 || math.IsNaN(shape) {
		return 0
	}
	if shape < 1 {
		u := 1 - src.Float64()
		return Gamma(src, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := Normal(src)
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := 1 - src.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta draws from Beta(alpha, beta) as X/(X+Y) with X~Gamma(alpha), Y~Gamma(beta).
func Beta(src Source, alpha, beta float64) float64 {
	x := Gamma(src, alpha)
	y := Gamma(src, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// Shuffle permutes data in place (Fisher-Yates).
func Shuffle(src Source, data []float64) {
	for i := len(data) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		data[i], data[j] = data[j], data[i]
	}
}

// Sample picks k distinct indices from [0, n) in random order.
// k is capped at n.
func Sample(src Source, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + src.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
