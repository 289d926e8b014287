// Package jobs accepts CV uploads, hands them to the background queue and
// reports job status back to the submitter.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
	"github.com/joseph-ayodele/cv-autofill/internal/async"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

const finalWriteTimeout = 10 * time.Second

type SubmitRequest struct {
	ContentBase64 string `json:"content"`
	FileName      string `json:"fileName"`
	Extension     string `json:"extension"`
	Size          int64  `json:"size"`
}

type SubmitResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	Code              string `json:"code,omitempty"`
	JobID             string `json:"jobId,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

type StatusResponse struct {
	ID          uuid.UUID           `json:"id"`
	Status      constants.JobStatus `json:"status"`
	Result      *entity.Draft       `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	ErrorCode   string              `json:"errorCode,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
}

// Runner is satisfied by *pipeline.Processor.
type Runner interface {
	Run(ctx context.Context, job *entity.ExtractionJob, content []byte) (*entity.Draft, *common.AppError)
}

// Admitter is satisfied by *quota.Guard.
type Admitter interface {
	Admit(ctx context.Context, userID, tenantID string) error
}

// Feedback is the part of *feedback.Service the review step needs.
type Feedback interface {
	Tenant(op common.Operator) string
	ValidateCorrection(in feedback.CorrectionInput) error
	RecordSuccessfulExtraction(ctx context.Context, op common.Operator, field string) bool
	BatchRecordCorrections(ctx context.Context, op common.Operator, in []feedback.CorrectionInput) int
}

type Config struct {
	MaxUploadMB int
	MaxPages    int
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{MaxUploadMB: cfg.Server.MaxUploadMB, MaxPages: cfg.Extraction.MaxPages}
}

type Service struct {
	jobs     repository.JobRepository
	runner   Runner
	guard    Admitter
	feedback Feedback
	sink     CandidateSink
	queue    async.Queue
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithCandidateSink receives confirmed fields; the default only logs them.
func WithCandidateSink(sink CandidateSink) Option {
	return func(s *Service) { s.sink = sink }
}

func NewService(jobs repository.JobRepository, runner Runner, guard Admitter, fb Feedback, cfg Config, log *zap.Logger, opts ...Option) *Service {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = constants.DefaultMaxUploadMB
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = constants.DefaultMaxPages
	}
	s := &Service{
		jobs:     jobs,
		runner:   runner,
		guard:    guard,
		feedback: fb,
		cfg:      cfg,
		log:      logger.OrNop(log).Named("jobs"),
		now:      time.Now,
	}
	s.sink = LogSink{log: s.log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachQueue sets the queue tasks are handed to. The queue itself calls
// back into Process, so it is attached after construction.
func (s *Service) AttachQueue(q async.Queue) {
	s.queue = q
}

func (s *Service) reject(ctx context.Context, err error) SubmitResponse {
	ae := common.AsAppError(err)
	resp := SubmitResponse{
		Success: false,
		Code:    ae.Code,
		Message: common.UserMessage(ae.Code, common.LocaleFromContext(ctx)),
	}
	if ae.RetryAfter > 0 {
		resp.RetryAfterSeconds = int((ae.RetryAfter + time.Second - 1) / time.Second)
	}
	s.log.Info("jobs.submit.rejected", zap.String("code", ae.Code), zap.Error(err))
	return resp
}

// Submit validates the upload, checks admission and queues a new job.
// Size, type, magic bytes and page count are checked in that order before
// any job exists.
func (s *Service) Submit(ctx context.Context, op common.Operator, req SubmitRequest) SubmitResponse {
	if strings.TrimSpace(op.UserID) == "" {
		return s.reject(ctx, common.NewAppError(common.CodeUnauthorized, "operator required", common.ErrUnauthorized))
	}
	tenant := s.feedback.Tenant(op)
	maxBytes := int64(s.cfg.MaxUploadMB) << 20

	if req.Size > maxBytes || int64(len(req.ContentBase64))/4*3 > maxBytes+3 {
		return s.reject(ctx, common.NewAppError(common.CodeFileTooLarge,
			fmt.Sprintf("file exceeds %d MB", s.cfg.MaxUploadMB), common.ErrValidation))
	}
	ext := constants.NormalizeExt(req.Extension)
	mime, ok := constants.MIMEForExt(ext)
	if !ok {
		return s.reject(ctx, common.NewAppError(common.CodeUnsupportedType, "unsupported extension "+ext, common.ErrValidation))
	}
	buf, err := decodeContent(req.ContentBase64)
	if err != nil {
		return s.reject(ctx, err)
	}
	if int64(len(buf)) > maxBytes {
		return s.reject(ctx, common.NewAppError(common.CodeFileTooLarge,
			fmt.Sprintf("file exceeds %d MB", s.cfg.MaxUploadMB), common.ErrValidation))
	}
	if !constants.MatchesSignature(buf, mime) {
		return s.reject(ctx, common.NewAppError(common.CodeSignatureMismatch, "content does not match "+ext, common.ErrValidation))
	}
	name := SanitizeFileName(req.FileName)

	pages := 0
	if ext == constants.ExtPDF {
		if n, err := acquire.PDFPageCount(buf); err != nil {
			// unreadable files fail later in acquisition with their own code
			s.log.Warn("jobs.submit.page_probe_failed", zap.String("file", name), zap.Error(err))
		} else {
			pages = n
			if err := acquire.CheckPageCount(n, s.cfg.MaxPages); err != nil {
				return s.reject(ctx, err)
			}
		}
	}

	if err := s.guard.Admit(ctx, op.UserID, tenant); err != nil {
		return s.reject(ctx, err)
	}

	job := &entity.ExtractionJob{
		OwnerID:     op.UserID,
		TenantID:    tenant,
		Status:      constants.JobStatusPending,
		FileName:    name,
		FileType:    ext,
		FileSize:    int64(len(buf)),
		PageCount:   pages,
		ContentHash: contentHash(buf),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return s.reject(ctx, common.NewAppError(common.CodePersistenceFailed, "create job", err))
	}

	task := async.Task{JobID: job.ID, Content: buf, SubmittedAt: s.now(), RequestID: common.RequestIDFromContext(ctx)}
	if s.queue == nil {
		err = async.ErrQueueClosed
	} else {
		err = s.queue.Enqueue(ctx, task)
	}
	if err != nil {
		s.log.Error("jobs.enqueue.failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		if _, ferr := s.jobs.Fail(context.WithoutCancel(ctx), job.ID, common.CodeInternal, "queue unavailable", nil); ferr != nil {
			s.log.Error("jobs.fail.persist_failed", zap.String("job_id", job.ID.String()), zap.Error(ferr))
		}
		return s.reject(ctx, common.NewAppError(common.CodeInternal, "queue unavailable", err))
	}

	s.log.Info("jobs.submitted",
		append(logger.Operator(op.UserID, tenant),
			zap.String("job_id", job.ID.String()),
			zap.String("file", name),
			zap.String("ext", ext),
			zap.Int64("size", job.FileSize),
		)...)
	return SubmitResponse{Success: true, JobID: job.ID.String()}
}

// Status reports a job to its owner. Anyone else gets NOT_FOUND.
func (s *Service) Status(ctx context.Context, op common.Operator, id uuid.UUID) (StatusResponse, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return StatusResponse{}, err
	}
	if !job.OwnedBy(op.UserID) {
		return StatusResponse{}, common.NewAppError(common.CodeNotFound, "job not found", common.ErrNotFound)
	}
	resp := StatusResponse{
		ID:          job.ID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	switch job.Status {
	case constants.JobStatusCompleted:
		resp.Result = job.Result
	case constants.JobStatusFailed:
		resp.ErrorCode = job.ErrorCode
		resp.Error = common.UserMessage(job.ErrorCode, common.LocaleFromContext(ctx))
	}
	return resp, nil
}

// Process runs one queued task to a terminal state. It is the queue handler.
func (s *Service) Process(ctx context.Context, task async.Task) error {
	log := s.log.With(zap.String("job_id", task.JobID.String()))
	ok, err := s.jobs.MarkProcessing(ctx, task.JobID)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("jobs.process.skipped")
		return nil
	}
	job, err := s.jobs.Get(ctx, task.JobID)
	if err != nil {
		return err
	}

	d, ae := s.runner.Run(ctx, job, task.Content)

	// the processing deadline may be gone; the terminal write must still happen
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	if ae != nil {
		if _, err := s.jobs.Fail(writeCtx, job.ID, ae.Code, ae.Message, d); err != nil {
			return err
		}
		log.Info("jobs.process.failed", zap.String("code", ae.Code))
		return nil
	}
	if _, err := s.jobs.Complete(writeCtx, job.ID, d.Metadata.PageCount, d); err != nil {
		return err
	}
	log.Info("jobs.process.completed", zap.Int("filled", len(d.FilledFields)), zap.Bool("empty", d.IsEmpty()))
	return nil
}

// ReconcileStuck fails jobs left pending or processing for longer than
// olderThan, e.g. after a crash. It runs once at startup.
func (s *Service) ReconcileStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.jobs.ListStale(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		ok, err := s.jobs.Fail(ctx, id, common.CodeInternal, "interrupted", nil)
		if err != nil {
			s.log.Error("jobs.reconcile.failed", zap.String("job_id", id.String()), zap.Error(err))
			continue
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		s.log.Warn("jobs.reconciled", zap.Int("count", n))
	}
	return n, nil
}
