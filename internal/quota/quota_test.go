package quota

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 14, 22, 0, 0, 0, time.Local)}
}

func TestMemoryWindowLimit(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := NewMemoryStore(WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		d, err := m.Check(ctx, "upload:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d, err := m.Check(ctx, "upload:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, clk.t.Add(20*time.Second), d.ResetAt)

	// other keys are independent
	d, _ = m.Check(ctx, "upload:u2", 3, time.Minute)
	assert.True(t, d.Allowed)

	clk.Advance(20 * time.Second)
	d, _ = m.Check(ctx, "upload:u1", 3, time.Minute)
	assert.True(t, d.Allowed)
}

func TestMemoryDailyResetsAtMidnight(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := NewMemoryStore(WithClock(clk.Now))

	d, _ := m.Check(ctx, "user:u1", 2, Day)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	d, _ = m.Check(ctx, "user:u1", 2, Day)
	assert.True(t, d.Allowed)
	d, _ = m.Check(ctx, "user:u1", 2, Day)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.Local), d.ResetAt)

	clk.Advance(2*time.Hour + time.Minute)
	d, _ = m.Check(ctx, "user:u1", 2, Day)
	assert.True(t, d.Allowed)
}

func TestMemoryCleanupIsTimeGated(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := NewMemoryStore(WithClock(clk.Now), WithCleanupInterval(10*time.Minute))

	_, _ = m.Check(ctx, "upload:a", 5, time.Minute)
	_, _ = m.Check(ctx, "user:a", 5, Day)
	assert.Equal(t, 2, m.Len())

	// too early for a cleanup pass
	clk.Advance(5 * time.Minute)
	_, _ = m.Check(ctx, "upload:b", 5, time.Minute)
	assert.Equal(t, 3, m.Len())

	// past midnight and past the interval: idle limiters and yesterday's counters go
	clk.Advance(2 * time.Hour)
	_, _ = m.Check(ctx, "upload:c", 5, time.Minute)
	assert.Equal(t, 1, m.Len())
}

func TestZeroLimitIsUnlimited(t *testing.T) {
	d, err := NewMemoryStore().Check(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGuardOrder(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	g := NewGuard(NewMemoryStore(WithClock(clk.Now)), Limits{
		UploadsPerWindow: 1, Window: time.Minute, DailyPerUser: 2, DailyPerTenant: 3,
	}, nil)
	g.now = clk.Now

	require.NoError(t, g.Admit(ctx, "u1", "t"))

	err := g.Admit(ctx, "u1", "t")
	require.Error(t, err)
	ae := common.AsAppError(err)
	assert.Equal(t, common.CodeRateLimited, ae.Code)
	assert.Equal(t, time.Minute, ae.RetryAfter)

	clk.Advance(time.Minute)
	require.NoError(t, g.Admit(ctx, "u1", "t"))
	clk.Advance(time.Minute)
	err = g.Admit(ctx, "u1", "t")
	assert.True(t, common.HasCode(err, common.CodeDailyQuota))
	assert.Equal(t, 2*time.Hour-2*time.Minute, common.AsAppError(err).RetryAfter)

	require.NoError(t, g.Admit(ctx, "u2", "t"))
	clk.Advance(time.Minute)
	err = g.Admit(ctx, "u3", "t")
	assert.True(t, common.HasCode(err, common.CodeTenantQuota))
}

func TestDeniedAdmissionConsumesNothing(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore(WithClock(clk.Now))
	g := NewGuard(store, Limits{DailyPerUser: 2, DailyPerTenant: 1}, nil)
	g.now = clk.Now

	require.NoError(t, g.Admit(ctx, "u1", "t1"))
	for i := 0; i < 2; i++ {
		err := g.Admit(ctx, "u2", "t1")
		assert.True(t, common.HasCode(err, common.CodeTenantQuota))
	}

	// u2 was never admitted, so its own daily budget is untouched
	require.NoError(t, g.Admit(ctx, "u2", "t2"))
	require.NoError(t, g.Admit(ctx, "u2", "t3"))
	err := g.Admit(ctx, "u2", "t4")
	assert.True(t, common.HasCode(err, common.CodeDailyQuota))
}

func TestDeniedAdmissionKeepsRateToken(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	g := NewGuard(NewMemoryStore(WithClock(clk.Now)), Limits{
		UploadsPerWindow: 1, Window: time.Minute, DailyPerTenant: 1,
	}, nil)
	g.now = clk.Now

	require.NoError(t, g.Admit(ctx, "u1", "t1"))
	err := g.Admit(ctx, "u2", "t1")
	assert.True(t, common.HasCode(err, common.CodeTenantQuota))
	// the denied request did not spend u2's upload token
	require.NoError(t, g.Admit(ctx, "u2", "t2"))
}

func TestMemoryPeekDoesNotCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(WithClock(newClock().Now))

	for i := 0; i < 5; i++ {
		d, err := m.Peek(ctx, "user:u1", 1, Day)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		d, err = m.Peek(ctx, "upload:u1", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, _ := m.Check(ctx, "user:u1", 1, Day)
	assert.True(t, d.Allowed)
	d, _ = m.Peek(ctx, "user:u1", 1, Day)
	assert.False(t, d.Allowed)
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{
		Driver: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "quota.db"), DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	clk := newClock()
	s := NewSQLStore(repository.NewCounterRepository(db))
	s.now = clk.Now

	d, err := s.Check(ctx, "user:u1", 2, Day)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	d, _ = s.Check(ctx, "user:u1", 2, Day)
	assert.True(t, d.Allowed)
	d, _ = s.Check(ctx, "user:u1", 2, Day)
	assert.False(t, d.Allowed)

	d, err = s.Peek(ctx, "user:u2", 1, Day)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, _ = s.Peek(ctx, "user:u2", 1, Day)
	assert.True(t, d.Allowed)

	clk.Advance(3 * time.Hour)
	d, _ = s.Check(ctx, "user:u1", 2, Day)
	assert.True(t, d.Allowed)

	purged, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(common.QuotaConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(common.QuotaConfig{Backend: "sql"}, nil)
	assert.True(t, common.HasCode(err, common.CodeConfig))

	_, err = NewStore(common.QuotaConfig{Backend: "redis"}, nil)
	assert.Error(t, err)
}
