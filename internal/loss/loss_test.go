package loss

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

// scriptedSource replays a fixed list of draws, cycling when exhausted.
type scriptedSource struct {
	draws []float64
	i     int
}

func (s *scriptedSource) Float64() float64 {
	v := s.draws[s.i%len(s.draws)]
	s.i++
	return v
}

func TestPolicy_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		draw    float64
		forward bool
	}{
		{"above threshold forwards", 0.5, 0.75, true},
		{"below threshold drops", 0.5, 0.25, false},
		{"equal to threshold drops", 0.5, 0.5, false},
		{"zero rate forwards small draw", 0.0, 0.0001, true},
		{"zero rate drops exact zero draw", 0.0, 0.0, false},
		{"full loss drops near one", 1.0, 0.9999999, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPolicy(tc.rate, &scriptedSource{draws: []float64{tc.draw}})
			if err != nil {
				t.Fatalf("NewPolicy: %v", err)
			}
			if got := p.Forward(); got != tc.forward {
				t.Errorf("Forward() with rate=%v draw=%v = %v, want %v", tc.rate, tc.draw, got, tc.forward)
			}
		})
	}
}

func TestPolicy_FreshDrawPerDecision(t *testing.T) {
	src := &scriptedSource{draws: []float64{0.9, 0.1, 0.9, 0.1}}
	p, err := NewPolicy(0.5, src)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	want := []bool{true, false, true, false}
	for i, w := range want {
		if got := p.Forward(); got != w {
			t.Errorf("decision %d = %v, want %v", i, got, w)
		}
	}
	if src.i != len(want) {
		t.Errorf("source drawn %d times, want %d", src.i, len(want))
	}
}

func TestPolicy_ZeroRateNeverDropsRandomDraws(t *testing.T) {
	p, err := NewPolicy(0.0, NewSource(42))
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	for i := 0; i < 10000; i++ {
		if !p.Forward() {
			t.Fatalf("decision %d dropped with rate 0", i)
		}
	}
}

func TestPolicy_FullRateAlwaysDrops(t *testing.T) {
	p, err := NewPolicy(1.0, NewSource(42))
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	for i := 0; i < 10000; i++ {
		if p.Forward() {
			t.Fatalf("decision %d forwarded with rate 1", i)
		}
	}
}

func TestPolicy_ApproximateRate(t *testing.T) {
	p, err := NewPolicy(0.3, NewSource(7))
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	const n = 20000
	dropped := 0
	for i := 0; i < n; i++ {
		if !p.Forward() {
			dropped++
		}
	}

	ratio := float64(dropped) / n
	if math.Abs(ratio-0.3) > 0.03 {
		t.Errorf("drop ratio = %.3f, want about 0.3", ratio)
	}
}

func TestNewPolicy_InvalidRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.01, math.NaN(), math.Inf(1)} {
		if _, err := NewPolicy(rate, NewSource(1)); err == nil {
			t.Errorf("NewPolicy(%v) succeeded, want error", rate)
		}
	}
}

func TestNewPolicy_NilSource(t *testing.T) {
	if _, err := NewPolicy(0.5, nil); !errors.Is(err, ErrNilSource) {
		t.Errorf("NewPolicy with nil source error = %v, want ErrNilSource", err)
	}
}

func TestNewSource_SeededIsReproducible(t *testing.T) {
	a, b := NewSource(99), NewSource(99)
	for i := 0; i < 10; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v != %v", i, x, y)
		}
	}
}

func TestPolicy_ConcurrentUse(t *testing.T) {
	p, err := NewPolicy(0.5, NewSource(3))
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	var forwarded, dropped atomic.Uint64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if p.Forward() {
					forwarded.Add(1)
				} else {
					dropped.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if total := forwarded.Load() + dropped.Load(); total != 4000 {
		t.Errorf("total decisions = %d, want 4000", total)
	}
	if forwarded.Load() == 0 || dropped.Load() == 0 {
		t.Errorf("forwarded=%d dropped=%d, want both non-zero at rate 0.5", forwarded.Load(), dropped.Load())
	}
}
