package repository

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/pkg/errors"
)

const tableCounters = "quota_counters"

// CounterRepository backs fixed-window quota counters shared across instances.
type CounterRepository interface {
	// Incr adds one hit to key's bucket and returns the bucket's new total.
	Incr(ctx context.Context, key string, bucketStart time.Time, ttl time.Duration) (int, error)
	// Peek returns the current total without counting a hit.
	Peek(ctx context.Context, key string, bucketStart time.Time) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type counterRepo struct {
	db *DB
}

func NewCounterRepository(db *DB) CounterRepository {
	return &counterRepo{db: db}
}

func (r *counterRepo) Incr(ctx context.Context, key string, bucketStart time.Time, ttl time.Duration) (int, error) {
	q := r.db.builder().Insert(tableCounters).
		Columns("counter_key", "bucket_start", "hits", "expires_at").
		Values(key, millis(bucketStart), 1, millis(bucketStart.Add(ttl))).
		OnConflict(
			entsql.ConflictColumns("counter_key", "bucket_start"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) { u.Add("hits", 1) }),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		return 0, errors.Wrap(err, "incr counter")
	}
	return r.Peek(ctx, key, bucketStart)
}

func (r *counterRepo) Peek(ctx context.Context, key string, bucketStart time.Time) (int, error) {
	b := r.db.builder()
	q := b.Select("hits").From(b.Table(tableCounters)).
		Where(entsql.And(entsql.EQ("counter_key", key), entsql.EQ("bucket_start", millis(bucketStart))))
	hits := 0
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		return rows.Scan(&hits)
	})
	if err != nil {
		return 0, errors.Wrap(err, "read counter")
	}
	return hits, nil
}

func (r *counterRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	q := r.db.builder().Delete(tableCounters).Where(entsql.LT("expires_at", millis(now)))
	n, err := r.db.exec(ctx, q)
	if err != nil {
		return 0, errors.Wrap(err, "purge counters")
	}
	return n, nil
}
