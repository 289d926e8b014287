package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

type Limits struct {
	UploadsPerWindow int
	Window           time.Duration
	DailyPerUser     int
	DailyPerTenant   int
}

func LimitsFrom(cfg common.QuotaConfig) Limits {
	return Limits{
		UploadsPerWindow: cfg.UploadsPerWindow,
		Window:           cfg.Window,
		DailyPerUser:     cfg.DailyPerUser,
		DailyPerTenant:   cfg.DailyPerTenant,
	}
}

// NewStore picks the backend named in cfg.
func NewStore(cfg common.QuotaConfig, counters repository.CounterRepository) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(WithCleanupInterval(cfg.CleanupInterval)), nil
	case "sql":
		if counters == nil {
			return nil, common.NewAppError(common.CodeConfig, "sql quota backend needs a database", nil)
		}
		return NewSQLStore(counters), nil
	}
	return nil, common.NewAppError(common.CodeConfig, "unknown quota backend "+cfg.Backend, common.ErrInvalidInput)
}

// Guard is the admission check in front of job creation.
type Guard struct {
	store  Store
	limits Limits
	log    *zap.Logger
	now    func() time.Time
}

func NewGuard(store Store, limits Limits, log *zap.Logger) *Guard {
	return &Guard{store: store, limits: limits, log: logger.OrNop(log).Named("quota"), now: time.Now}
}

type check struct {
	key    string
	limit  int
	window time.Duration
	code   string
	msg    string
}

// Admit checks the upload rate, then the user's and the tenant's daily quota.
// Every bucket is peeked first; units are only counted once all of them pass,
// so a denied request costs nothing. A store failure is logged and admits
// the request.
func (g *Guard) Admit(ctx context.Context, userID, tenantID string) error {
	checks := []check{
		{"upload:" + userID, g.limits.UploadsPerWindow, g.limits.Window, common.CodeRateLimited, "upload rate exceeded"},
		{"user:" + userID, g.limits.DailyPerUser, Day, common.CodeDailyQuota, "daily upload quota reached"},
		{"tenant:" + tenantID, g.limits.DailyPerTenant, Day, common.CodeTenantQuota, "tenant daily quota reached"},
	}
	active := checks[:0]
	for _, c := range checks {
		if c.limit > 0 && c.window > 0 {
			active = append(active, c)
		}
	}

	for _, c := range active {
		d, err := g.store.Peek(ctx, c.key, c.limit, c.window)
		if err != nil {
			g.log.Warn("quota.check.failed", zap.String("key", c.key), zap.Error(err))
			continue
		}
		if !d.Allowed {
			return g.deny(userID, tenantID, c, d)
		}
	}
	for _, c := range active {
		d, err := g.store.Check(ctx, c.key, c.limit, c.window)
		if err != nil {
			g.log.Warn("quota.check.failed", zap.String("key", c.key), zap.Error(err))
			continue
		}
		if !d.Allowed {
			// lost a race with a concurrent upload between peek and count
			return g.deny(userID, tenantID, c, d)
		}
	}
	return nil
}

func (g *Guard) deny(userID, tenantID string, c check, d Decision) error {
	retry := d.ResetAt.Sub(g.now())
	if retry < time.Second {
		retry = time.Second
	}
	g.log.Info("quota.denied",
		append(logger.Operator(userID, tenantID), zap.String("code", c.code), zap.Duration("retry_after", retry))...)
	return common.NewAdmissionError(c.code, c.msg, retry)
}
