// Package loss decides which datagrams a lossy link drops.
//
// A Policy draws one uniform value in [0, 1) per datagram from a Source
// and forwards the datagram only when the draw is strictly greater than
// the configured rate. A draw equal to the rate is a drop, so a rate of
// 1.0 drops everything and a rate of 0.0 forwards everything except a
// draw of exactly zero.
package loss

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Source produces uniform random values in [0, 1).
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a math/rand backed Source.
// A zero seed seeds from the current time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Policy applies a fixed loss rate to a stream of decisions.
type Policy struct {
	rate float64

	mu  sync.Mutex
	src Source
}

// ErrNilSource is returned by NewPolicy when no random source is given.
var ErrNilSource = errors.New("nil random source")

// ValidateRate reports whether rate is usable as a loss rate.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("loss rate %v outside [0.0, 1.0]", rate)
	}
	return nil
}

// NewPolicy creates a policy dropping roughly rate of all decisions.
func NewPolicy(rate float64, src Source) (*Policy, error) {
	if err := ValidateRate(rate); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNilSource
	}
	return &Policy{rate: rate, src: src}, nil
}

// Forward draws a fresh value and reports whether the datagram survives.
func (p *Policy) Forward() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.src.Float64() > p.rate
}
