package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outbound requests
type Limiter interface {
	// Wait blocks until the next request may be sent and returns how long it waited
	Wait(ctx context.Context) (time.Duration, error)
	// Record marks the moment a response was received
	Record()
	// Reset forgets the last recorded request
	Reset()
}

// MinInterval enforces a minimum gap between the end of one request and the
// start of the next. The gap is measured from the time a response arrived,
// so slow responses do not eat into the pause.
type MinInterval struct {
	interval time.Duration
	last     time.Time
	mu       sync.Mutex

	now func() time.Time
}

// NewMinInterval creates a limiter with the given gap; a zero gap never waits
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{
		interval: interval,
		now:      time.Now,
	}
}

func (m *MinInterval) Wait(ctx context.Context) (time.Duration, error) {
	m.mu.Lock()
	var wait time.Duration
	if !m.last.IsZero() {
		wait = m.interval - m.now().Sub(m.last)
	}
	m.mu.Unlock()

	if wait <= 0 {
		return 0, ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return wait, nil
	}
}

func (m *MinInterval) Record() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = m.now()
}

func (m *MinInterval) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = time.Time{}
}

// Unlimited never waits
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) (time.Duration, error) { return 0, ctx.Err() }
func (Unlimited) Record()                                         {}
func (Unlimited) Reset()                                          {}
