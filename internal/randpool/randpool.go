// Package randpool provides the pseudo-random helpers used to compose feeds:
// inclusive integer ranges, uniform choice and Fisher-Yates shuffling.
package randpool

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrInvalidRange is returned when a range has min greater than max.
var ErrInvalidRange = errors.New("invalid range")

// Pool is a source of randomness that is safe for concurrent use.
type Pool struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a pool with a fixed seed. The same seed yields the same draws.
func New(seed int64) *Pool {
	return &Pool{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // feed composition is not security sensitive
}

// NewRandom creates a pool seeded from the current time.
func NewRandom() *Pool {
	return New(time.Now().UnixNano())
}

// Int returns a uniformly random integer in [min, max].
func (p *Pool) Int(min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("%w: min %d > max %d", ErrInvalidRange, min, max)
	}
	return min + p.intn(max-min+1), nil
}

// MustInt is Int for ranges that were validated up front.
func (p *Pool) MustInt(min, max int) int {
	n, err := p.Int(min, max)
	if err != nil {
		panic(err)
	}
	return n
}

func (p *Pool) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

// Choice returns a uniformly random element of list. The boolean is false
// when list is empty.
func Choice[T any](p *Pool, list []T) (T, bool) {
	var zero T
	if len(list) == 0 {
		return zero, false
	}
	return list[p.intn(len(list))], true
}

// Shuffle returns a uniformly permuted copy of list. The input is not modified.
func Shuffle[T any](p *Pool, list []T) []T {
	out := make([]T, len(list))
	copy(out, list)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(out) - 1; i > 0; i-- {
		j := p.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Range is an inclusive numeric range read from configuration, with an
// optional unit suffix such as "h".
type Range struct {
	Min  int    `json:"min" validate:"ltefield=Max"`
	Max  int    `json:"max"`
	Unit string `json:"unit,omitempty"`
}

// Draw returns a random value inside r.
func (r Range) Draw(p *Pool) (int, error) {
	return p.Int(r.Min, r.Max)
}
