package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
	"github.com/joseph-ayodele/cv-autofill/internal/async"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/export"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
	"github.com/joseph-ayodele/cv-autofill/internal/llm/provider"
	"github.com/joseph-ayodele/cv-autofill/internal/ocr"
	"github.com/joseph-ayodele/cv-autofill/internal/pipeline"
	"github.com/joseph-ayodele/cv-autofill/internal/quota"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

// App holds every wired component of one process.
type App struct {
	Config    *common.Config
	Logger    *zap.Logger
	DB        *repository.DB
	Feedback  *feedback.Service
	Processor *pipeline.Processor
	Jobs      *jobs.Service
	Queue     *async.ProcessorQueue
	Export    *export.Service
	Quota     quota.Store
}

func openDB(ctx context.Context, cfg *common.Config, log *zap.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildApp opens the database and wires the pipeline. The queue is started
// but only receives tasks once something submits.
func buildApp(ctx context.Context, cfg *common.Config, log *zap.Logger) (*App, error) {
	db, err := openDB(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: log, DB: db}

	fbRepo := repository.NewFeedbackRepository(db)
	skills := repository.NewSkillRepository(db)
	a.Feedback = feedback.NewService(fbRepo, feedback.ConfigFrom(cfg), log.Named("feedback"), feedback.WithSkillRepository(skills))
	a.Export = export.NewService(fbRepo, a.Feedback, log)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		Timeout:       cfg.OCR.Timeout,
	}, log.Named("ocr"))
	dispatcher := acquire.NewDispatcher(extractor, log.Named("acquire"))

	engine, err := provider.New(ctx, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.Processor = pipeline.NewProcessor(dispatcher, engine, a.Feedback, skills, pipeline.ConfigFrom(cfg), log)

	a.Quota, err = quota.NewStore(cfg.Quota, repository.NewCounterRepository(db))
	if err != nil {
		db.Close()
		return nil, err
	}
	guard := quota.NewGuard(a.Quota, quota.LimitsFrom(cfg.Quota), log)

	a.Jobs = jobs.NewService(repository.NewJobRepository(db), a.Processor, guard, a.Feedback, jobs.ConfigFrom(cfg), log)
	a.Queue = async.NewProcessorQueue(a.Jobs, log,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	a.Jobs.AttachQueue(a.Queue)

	log.Info("app.ready",
		zap.String("db", db.Dialect),
		zap.String("engine", engine.Name()),
		zap.String("quota", cfg.Quota.Backend),
		zap.Int("workers", cfg.Queue.Workers),
	)
	return a, nil
}

// Close drains the queue within timeout and closes the database.
func (a *App) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.Queue.Shutdown(ctx)
	a.DB.Close()
}
