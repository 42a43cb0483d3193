package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo holds a lazily computed value that lives until Reset.
// Concurrent first calls share a single load; whatever that load returns,
// empty or not, is what every later call sees.
type Memo[T any] struct {
	mu    sync.RWMutex
	set   bool
	value T

	// coalesce concurrent first loads
	sf singleflight.Group
}

// Get returns the memoized value, running load once if there is none yet.
func (m *Memo[T]) Get(load func() T) T {
	v, _ := m.GetContext(context.Background(), load)
	return v
}

// GetContext is Get for a caller that may stop waiting. A load, once
// started, runs to completion and is stored even if every waiter has gone;
// a caller whose ctx ends first gets the zero value and false.
func (m *Memo[T]) GetContext(ctx context.Context, load func() T) (T, bool) {
	if v, ok := m.Peek(); ok {
		return v, true
	}
	ch := m.sf.DoChan("memo", func() (any, error) {
		// A load that finished between Peek and DoChan already stored the value.
		if v, ok := m.Peek(); ok {
			return v, nil
		}
		v := load()
		m.mu.Lock()
		m.value, m.set = v, true
		m.mu.Unlock()
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val.(T), true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Peek returns the memoized value without loading it.
func (m *Memo[T]) Peek() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.set
}

// Reset drops the memoized value so the next Get loads again.
func (m *Memo[T]) Reset() {
	m.mu.Lock()
	var zero T
	m.value, m.set = zero, false
	m.mu.Unlock()
}
