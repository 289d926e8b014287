package quota

import (
	"context"
	"time"

	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

// SQLStore keeps fixed-window counters in the database so several
// instances share one budget.
type SQLStore struct {
	counters repository.CounterRepository
	now      func() time.Time
}

func NewSQLStore(counters repository.CounterRepository) *SQLStore {
	return &SQLStore{counters: counters, now: time.Now}
}

func (s *SQLStore) bucket(window time.Duration) (start, reset time.Time) {
	now := s.now()
	if window >= Day {
		return dayStart(now), nextMidnight(now)
	}
	start = now.Truncate(window)
	return start, start.Add(window)
}

func (s *SQLStore) Peek(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	start, reset := s.bucket(window)
	seen, err := s.counters.Peek(ctx, key, start)
	if err != nil {
		return Decision{}, err
	}
	if seen >= limit {
		return Decision{Allowed: false, ResetAt: reset}, nil
	}
	return Decision{Allowed: true, Remaining: limit - seen - 1, ResetAt: reset}, nil
}

func (s *SQLStore) Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	d, err := s.Peek(ctx, key, limit, window)
	if err != nil || !d.Allowed || limit <= 0 {
		return d, err
	}
	start, reset := s.bucket(window)
	n, err := s.counters.Incr(ctx, key, start, reset.Sub(start))
	if err != nil {
		return Decision{}, err
	}
	if n > limit {
		return Decision{Allowed: false, ResetAt: reset}, nil
	}
	return Decision{Allowed: true, Remaining: limit - n, ResetAt: reset}, nil
}

// Purge drops expired buckets.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	return s.counters.PurgeExpired(ctx, s.now())
}
