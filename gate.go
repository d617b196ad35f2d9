package docconv

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate sizing constants.
const (
	// DefaultGateSize is the number of simultaneous heavyweight conversions
	// allowed when nothing is configured.
	DefaultGateSize = 5

	// MinGateSize ensures at least one conversion can run.
	MinGateSize = 1
)

// Gate bounds the number of heavyweight conversions running at once.
// Waiters are served in FIFO order by the underlying semaphore.
type Gate struct {
	size int64
	sem  *semaphore.Weighted

	mu       sync.Mutex
	inFlight int
	peak     int
	waiting  int
}

// NewGate creates a gate with n slots. Values below MinGateSize are raised.
func NewGate(n int) *Gate {
	if n < MinGateSize {
		n = MinGateSize
	}
	return &Gate{size: int64(n), sem: semaphore.NewWeighted(int64(n))}
}

// ResolveGateSize determines the gate size.
// Priority: explicit value > DefaultGateSize.
func ResolveGateSize(n int) int {
	if n > 0 {
		return n
	}
	return DefaultGateSize
}

// Acquire blocks until a slot is free or ctx ends.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	g.waiting++
	g.mu.Unlock()

	err := g.sem.Acquire(ctx, 1)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiting--
	if err != nil {
		return fmt.Errorf("%w: waiting for conversion slot: %w", errCanceled, err)
	}
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	return nil
}

// Release returns a slot taken by Acquire.
func (g *Gate) Release() {
	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	g.sem.Release(1)
}

// Size returns the gate capacity.
func (g *Gate) Size() int { return int(g.size) }

// InFlight returns the number of slots currently held.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Peak returns the highest InFlight value observed.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// Waiting returns the number of callers blocked in Acquire.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting
}
