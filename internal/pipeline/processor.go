// Package pipeline runs one job's document through acquisition, extraction
// and draft building.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/draft"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

// Acquirer is satisfied by *acquire.Dispatcher.
type Acquirer interface {
	Acquire(ctx context.Context, buf []byte, ext string, size int64) (acquire.Result, error)
}

// Learning supplies tenant dictionaries and learned suggestions.
type Learning interface {
	LearningContext(ctx context.Context, tenantID string) llm.LearningContext
	Enrich(ctx context.Context, tenantID string, d *entity.Draft)
}

// SkillSource is the canonical skill list.
type SkillSource interface {
	ListCanonical(ctx context.Context) ([]string, error)
}

type Config struct {
	MaxPages     int
	MinTextChars int
	PackMaxChars int
	Locale       string
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{
		MaxPages:     cfg.Extraction.MaxPages,
		MinTextChars: cfg.Extraction.MinTextChars,
		PackMaxChars: cfg.Extraction.PackMaxChars,
		Locale:       cfg.Locale,
	}
}

// Processor coordinates acquisition, then extraction, then the draft builder.
type Processor struct {
	acquirer Acquirer
	engine   llm.Engine
	learning Learning
	skills   SkillSource
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func NewProcessor(acquirer Acquirer, engine llm.Engine, learning Learning, skills SkillSource, cfg Config, log *zap.Logger) *Processor {
	return &Processor{
		acquirer: acquirer,
		engine:   engine,
		learning: learning,
		skills:   skills,
		cfg:      cfg,
		log:      logger.OrNop(log).Named("pipeline"),
		now:      time.Now,
	}
}

// Run always returns a draft. A non-nil error means the job failed; the
// draft is then empty apart from metadata.
func (p *Processor) Run(ctx context.Context, job *entity.ExtractionJob, content []byte) (*entity.Draft, *common.AppError) {
	start := p.now()
	meta := entity.DraftMetadata{
		FileName:  job.FileName,
		FileType:  job.FileType,
		FileSize:  job.FileSize,
		PageCount: job.PageCount,
		Timestamp: start.UTC(),
	}
	log := p.log.With(zap.String("job_id", job.ID.String()), zap.String("tenant_id", job.TenantID))
	fail := func(ae *common.AppError) (*entity.Draft, *common.AppError) {
		meta.ProcessingTimeMs = p.now().Sub(start).Milliseconds()
		log.Warn("pipeline.failed", zap.String("code", ae.Code), zap.Error(ae))
		return draft.Empty(meta), ae
	}

	res, err := p.acquirer.Acquire(ctx, content, job.FileType, job.FileSize)
	if err != nil {
		return fail(common.AsAppError(err))
	}
	meta.PageCount = res.PageCount
	meta.ExtractionMethod = res.Method

	if err := acquire.CheckPageCount(res.PageCount, p.cfg.MaxPages); err != nil {
		return fail(common.AsAppError(err))
	}

	if res.NearEmpty(p.cfg.MinTextChars) {
		meta.ProcessingTimeMs = p.now().Sub(start).Milliseconds()
		log.Info("pipeline.empty_document", zap.String("method", res.Method), zap.Strings("warnings", res.Warnings))
		return draft.Empty(meta), nil
	}

	if !p.engine.Enabled() {
		return fail(common.NewAppError(common.CodeEngineDisabled, "extraction engine disabled", nil))
	}
	if !p.engine.Configured() {
		return fail(common.NewAppError(common.CodeEngineNotConfigured, "extraction engine "+p.engine.Name()+" not configured", nil))
	}

	packed := acquire.Pack(res.Document, p.cfg.PackMaxChars)
	lc := p.learning.LearningContext(ctx, job.TenantID)

	out := p.engine.Extract(ctx, llm.Request{Packed: packed, Learning: lc, Locale: p.cfg.Locale})
	if !out.Success || out.Data == nil {
		code := out.ErrorCode
		if code == "" {
			code = common.CodeEngineFailed
		}
		return fail(common.NewAppError(code, out.Error, nil))
	}
	log.Info("pipeline.extracted",
		zap.String("engine", p.engine.Name()),
		zap.Int64("latency_ms", out.LatencyMs),
		zap.Int("retries", out.RetryCount),
		zap.Bool("truncated", packed.Truncated),
	)

	canonical, err := p.skills.ListCanonical(ctx)
	if err != nil {
		log.Warn("pipeline.skills.failed", zap.Error(err))
	}
	matcher := normalize.NewSkillMatcher(canonical, lc.SkillAliases)

	d := draft.Build(out.Data, matcher, meta,
		draft.WithDocument(res.Document),
		draft.WithImplicitMappings(out.ImplicitMappingsApplied),
	)
	p.learning.Enrich(ctx, job.TenantID, d)
	d.Metadata.ProcessingTimeMs = p.now().Sub(start).Milliseconds()

	log.Info("pipeline.draft",
		zap.Int("filled", len(d.FilledFields)),
		zap.Int("ambiguous", len(d.AmbiguousFields)),
		zap.Int("unmapped", len(d.UnmappedItems)),
	)
	return d, nil
}
