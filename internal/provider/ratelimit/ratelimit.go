package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MaxRPS is the request ceiling the wiki asks clients to respect,
// across all endpoints.
const MaxRPS = 4

// Gate enforces a minimum interval between request starts.
// Each Wait reserves the next free slot atomically, so no two callers can
// observe a gap smaller than the interval. The limiter's lock is only held
// while reserving, never while the caller sleeps or performs I/O.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewGate returns a gate admitting at most perSecond requests per second
// with no burst.
func NewGate(perSecond float64) *Gate {
	if perSecond <= 0 {
		perSecond = MaxRPS
	}
	interval := time.Duration(float64(time.Second) / perSecond)
	return &Gate{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Interval is the minimum spacing between two admitted requests.
func (g *Gate) Interval() time.Duration { return g.interval }

// Wait blocks until the caller may issue its request, or until ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	r := g.limiter.Reserve()
	if !r.OK() {
		return context.DeadlineExceeded
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		// The slot stays consumed: releasing it could admit a request
		// closer than the interval to the previous one.
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	sharedOnce sync.Once
	shared     *Gate
)

// Shared returns the process-wide gate at MaxRPS. Every wiki client uses
// it unless told otherwise, so the ceiling holds across the whole process.
func Shared() *Gate {
	sharedOnce.Do(func() { shared = NewGate(MaxRPS) })
	return shared
}
