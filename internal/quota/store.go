// Package quota admits uploads against per-user rate limits and daily quotas.
package quota

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Day is the window length that switches a Store to calendar-day buckets
// resetting at local midnight.
const Day = 24 * time.Hour

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store counts hits per key. Windows shorter than a Day are sliding,
// windows of a Day or longer reset at local midnight.
//
// Peek reports whether one more hit would be allowed without counting it.
// Check counts the hit when it is allowed.
type Store interface {
	Peek(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
	Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type limiterEntry struct {
	lim      *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

type dayEntry struct {
	day   string
	count int
}

// MemoryStore is a process-local Store. It is only correct within a single instance.
type MemoryStore struct {
	mu              sync.Mutex
	limiters        map[string]*limiterEntry
	days            map[string]*dayEntry
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.cleanupInterval = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		limiters:        make(map[string]*limiterEntry),
		days:            make(map[string]*dayEntry),
		cleanupInterval: 10 * time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastCleanup = m.now()
	return m
}

func (m *MemoryStore) Peek(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	return m.decide(key, limit, window, false), nil
}

func (m *MemoryStore) Check(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	return m.decide(key, limit, window, true), nil
}

func (m *MemoryStore) decide(key string, limit int, window time.Duration, consume bool) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeCleanup(now)
	if window >= Day {
		return m.checkDay(now, key, limit, consume)
	}
	return m.checkWindow(now, key, limit, window, consume)
}

func (m *MemoryStore) checkWindow(now time.Time, key string, limit int, window time.Duration, consume bool) Decision {
	e, ok := m.limiters[key]
	if !ok || e.window != window || e.lim.Burst() != limit {
		e = &limiterEntry{
			lim:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			window: window,
		}
		m.limiters[key] = e
	}
	e.lastSeen = now

	tokens := e.lim.TokensAt(now)
	if tokens >= 1 {
		if !consume {
			return Decision{Allowed: true, Remaining: int(tokens) - 1, ResetAt: now}
		}
		if e.lim.AllowN(now, 1) {
			return Decision{Allowed: true, Remaining: int(e.lim.TokensAt(now)), ResetAt: now}
		}
		tokens = e.lim.TokensAt(now)
	}
	wait := time.Duration((1 - tokens) / float64(e.lim.Limit()) * float64(time.Second)).Round(time.Millisecond)
	return Decision{Allowed: false, Remaining: 0, ResetAt: now.Add(wait)}
}

func (m *MemoryStore) checkDay(now time.Time, key string, limit int, consume bool) Decision {
	day := now.Format(time.DateOnly)
	reset := nextMidnight(now)
	e, ok := m.days[key]
	if !ok || e.day != day {
		e = &dayEntry{day: day}
		m.days[key] = e
	}
	if e.count >= limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: reset}
	}
	if !consume {
		return Decision{Allowed: true, Remaining: limit - e.count - 1, ResetAt: reset}
	}
	e.count++
	return Decision{Allowed: true, Remaining: limit - e.count, ResetAt: reset}
}

// maybeCleanup evicts idle limiters and past-day counters, at most once per interval.
func (m *MemoryStore) maybeCleanup(now time.Time) {
	if m.cleanupInterval <= 0 || now.Sub(m.lastCleanup) < m.cleanupInterval {
		return
	}
	m.lastCleanup = now
	day := now.Format(time.DateOnly)
	for k, e := range m.limiters {
		if now.Sub(e.lastSeen) >= e.window {
			delete(m.limiters, k)
		}
	}
	for k, e := range m.days {
		if e.day != day {
			delete(m.days, k)
		}
	}
}

// Len reports tracked entries; used to observe cleanup.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters) + len(m.days)
}

func nextMidnight(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d+1, 0, 0, 0, 0, t.Location())
}

func dayStart(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
