package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
)

const tableJobs = "extraction_jobs"

var jobColumns = []string{
	"id", "owner_id", "tenant_id", "status", "file_name", "file_type", "file_size",
	"page_count", "content_hash", "result", "error_code", "error", "created_at",
	"updated_at", "completed_at", "confirmed_at",
}

// active states a job may still leave
var activeStatuses = []any{string(constants.JobStatusPending), string(constants.JobStatusProcessing)}

type JobRepository interface {
	Create(ctx context.Context, job *entity.ExtractionJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error)
	// MarkProcessing moves pending -> processing. ok is false when the job was not pending.
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, pageCount int, draft *entity.Draft) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, code, message string, draft *entity.Draft) (bool, error)
	ListStale(ctx context.Context, before time.Time) ([]uuid.UUID, error)
	// MarkConfirmed stamps a completed job as reviewed. ok is false when the
	// job is not completed or was confirmed before.
	MarkConfirmed(ctx context.Context, id uuid.UUID) (bool, error)
}

type jobRepo struct {
	db  *DB
	log *zap.Logger
}

func NewJobRepository(db *DB) JobRepository {
	return &jobRepo{db: db, log: db.log.Named("jobs")}
}

func (r *jobRepo) Create(ctx context.Context, job *entity.ExtractionJob) error {
	now := r.db.now().UTC()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	job.CreatedAt, job.UpdatedAt = now, now

	q := r.db.builder().Insert(tableJobs).
		Columns(jobColumns...).
		Values(
			job.ID.String(), job.OwnerID, job.TenantID, string(job.Status), job.FileName, job.FileType,
			job.FileSize, job.PageCount, job.ContentHash, nil, "", "", millis(now), millis(now), nil, nil,
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.log.Error("job.create.failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return errors.Wrap(err, "insert job")
	}
	r.log.Info("job.created", zap.String("job_id", job.ID.String()), zap.String("file_type", job.FileType))
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error) {
	b := r.db.builder()
	q := b.Select(jobColumns...).From(b.Table(tableJobs)).Where(entsql.EQ("id", id.String()))

	var job *entity.ExtractionJob
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		j, err := scanJob(rows)
		job = j
		return err
	})
	if err != nil {
		r.log.Error("job.get.failed", zap.String("job_id", id.String()), zap.Error(err))
		return nil, errors.Wrap(err, "select job")
	}
	if job == nil {
		return nil, common.NewAppError(common.CodeNotFound, "job not found", common.ErrNotFound)
	}
	return job, nil
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	q := r.db.builder().Update(tableJobs).
		Set("status", string(constants.JobStatusProcessing)).
		Set("updated_at", millis(r.db.now())).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.EQ("status", string(constants.JobStatusPending))))
	n, err := r.db.exec(ctx, q)
	if err != nil {
		r.log.Error("job.processing.failed", zap.String("job_id", id.String()), zap.Error(err))
		return false, errors.Wrap(err, "mark processing")
	}
	return n == 1, nil
}

func (r *jobRepo) Complete(ctx context.Context, id uuid.UUID, pageCount int, draft *entity.Draft) (bool, error) {
	return r.finish(ctx, id, constants.JobStatusCompleted, pageCount, "", "", draft)
}

func (r *jobRepo) Fail(ctx context.Context, id uuid.UUID, code, message string, draft *entity.Draft) (bool, error) {
	return r.finish(ctx, id, constants.JobStatusFailed, -1, code, message, draft)
}

// finish writes a terminal state; rows already terminal are left untouched.
func (r *jobRepo) finish(ctx context.Context, id uuid.UUID, status constants.JobStatus, pageCount int, code, message string, draft *entity.Draft) (bool, error) {
	var result any
	if draft != nil {
		b, err := json.Marshal(draft)
		if err != nil {
			return false, errors.Wrap(err, "encode draft")
		}
		result = string(b)
	}
	now := millis(r.db.now())
	q := r.db.builder().Update(tableJobs).
		Set("status", string(status)).
		Set("result", result).
		Set("error_code", code).
		Set("error", message).
		Set("updated_at", now).
		Set("completed_at", now).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.In("status", activeStatuses...)))
	if pageCount >= 0 {
		q.Set("page_count", pageCount)
	}
	n, err := r.db.exec(ctx, q)
	if err != nil {
		r.log.Error("job.finish.failed", zap.String("job_id", id.String()), zap.String("status", string(status)), zap.Error(err))
		return false, errors.Wrap(err, "finish job")
	}
	if n == 0 {
		r.log.Warn("job.finish.skipped", zap.String("job_id", id.String()), zap.String("status", string(status)))
		return false, nil
	}
	r.log.Info("job.finished", zap.String("job_id", id.String()), zap.String("status", string(status)), zap.String("error_code", code))
	return true, nil
}

func (r *jobRepo) MarkConfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	q := r.db.builder().Update(tableJobs).
		Set("confirmed_at", millis(r.db.now())).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.JobStatusCompleted)),
			entsql.IsNull("confirmed_at"),
		))
	n, err := r.db.exec(ctx, q)
	if err != nil {
		r.log.Error("job.confirm.failed", zap.String("job_id", id.String()), zap.Error(err))
		return false, errors.Wrap(err, "mark confirmed")
	}
	return n == 1, nil
}

func (r *jobRepo) ListStale(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	b := r.db.builder()
	q := b.Select("id").From(b.Table(tableJobs)).
		Where(entsql.And(entsql.In("status", activeStatuses...), entsql.LT("updated_at", millis(before))))
	var ids []uuid.UUID
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list stale jobs")
	}
	return ids, nil
}

func scanJob(rows *entsql.Rows) (*entity.ExtractionJob, error) {
	var (
		j                entity.ExtractionJob
		status           string
		result           sql.NullString
		created, updated int64
		completed        sql.NullInt64
		confirmed        sql.NullInt64
	)
	err := rows.Scan(
		&j.ID, &j.OwnerID, &j.TenantID, &status, &j.FileName, &j.FileType, &j.FileSize,
		&j.PageCount, &j.ContentHash, &result, &j.ErrorCode, &j.Error, &created, &updated, &completed, &confirmed,
	)
	if err != nil {
		return nil, err
	}
	j.Status = constants.JobStatus(status)
	j.CreatedAt, j.UpdatedAt = fromMillis(created), fromMillis(updated)
	j.CompletedAt = fromNullMillis(completed)
	j.ConfirmedAt = fromNullMillis(confirmed)
	if result.Valid && result.String != "" {
		var d entity.Draft
		if err := json.Unmarshal([]byte(result.String), &d); err != nil {
			return nil, errors.Wrap(err, "decode draft")
		}
		j.Result = &d
	}
	return &j, nil
}
