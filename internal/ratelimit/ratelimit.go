// Package ratelimit tracks request timestamps per caller identity
// inside a sliding time window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits or rejects a request for an identity.
type Limiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// Memory is an in-process sliding-window limiter. The quota applies to
// the last window relative to now, not to fixed-aligned buckets, so the
// oldest request expires continuously.
type Memory struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	quota  int
	clock  func() time.Time
}

func NewMemory(window time.Duration, quota int) *Memory {
	return &Memory{
		hits:   make(map[string][]time.Time),
		window: window,
		quota:  quota,
		clock:  time.Now,
	}
}

// Allow prunes timestamps older than the window, rejects without
// recording when the identity is at quota and records the request
// otherwise. It never fails.
func (m *Memory) Allow(_ context.Context, identity string) (bool, error) {
	now := m.clock()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := prune(m.hits[identity], cutoff)
	if len(recent) >= m.quota {
		m.hits[identity] = recent
		return false, nil
	}
	m.hits[identity] = append(recent, now)
	return true, nil
}

// Sweep drops identities with no activity inside the last window so the
// map does not grow forever across distinct callers.
func (m *Memory) Sweep() {
	cutoff := m.clock().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	for identity, ts := range m.hits {
		recent := prune(ts, cutoff)
		if len(recent) == 0 {
			delete(m.hits, identity)
			continue
		}
		m.hits[identity] = recent
	}
}

// StartJanitor sweeps idle identities periodically until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}

// prune returns the suffix of ts strictly newer than cutoff.
// Timestamps are appended in order, so the first kept entry bounds the rest.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
