package repository

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/entity"
)

const (
	tableCorrections = "correction_records"
	tableAssignments = "segment_assignments"
	tableMetrics     = "field_accuracy_metrics"
	tableSynonyms    = "tenant_field_synonyms"
	tableAliases     = "tenant_skill_aliases"
)

var (
	correctionColumns = []string{
		"id", "tenant_id", "operator_id", "source_context", "source_label", "wrong_extraction",
		"correct_value", "correct_field", "reasoning", "cv_hash", "usage_count", "last_used_at", "created_at",
	}
	assignmentColumns = []string{
		"id", "tenant_id", "operator_id", "original_text", "normalized_text", "detected_type",
		"context", "assigned_field", "assigned_value", "usage_count", "last_used_at", "created_at",
	}
	metricColumns = []string{
		"tenant_id", "field_name", "total_extractions", "correct_extractions",
		"corrected_extractions", "null_extractions", "updated_at",
	}
)

// MetricDelta is added onto a field's accuracy counters.
type MetricDelta struct {
	Total     int
	Correct   int
	Corrected int
	Null      int
}

type FeedbackRepository interface {
	InsertCorrection(ctx context.Context, rec *entity.CorrectionRecord) error
	RecentCorrections(ctx context.Context, tenantID string, limit int) ([]entity.CorrectionRecord, error)

	InsertAssignment(ctx context.Context, a *entity.SegmentAssignment) error
	ListAssignments(ctx context.Context, tenantID string, limit int) ([]entity.SegmentAssignment, error)
	TouchAssignment(ctx context.Context, tenantID string, id uuid.UUID) (bool, error)

	BumpMetric(ctx context.Context, tenantID, field string, d MetricDelta) error
	ListMetrics(ctx context.Context, tenantID string) ([]entity.FieldAccuracyMetric, error)

	UpsertFieldSynonym(ctx context.Context, s entity.TenantFieldSynonym) error
	UpsertSkillAlias(ctx context.Context, a entity.TenantSkillAlias) error
	ListFieldSynonyms(ctx context.Context, tenantID string) ([]entity.TenantFieldSynonym, error)
	ListSkillAliases(ctx context.Context, tenantID string) ([]entity.TenantSkillAlias, error)
}

type feedbackRepo struct {
	db  *DB
	log *zap.Logger
}

func NewFeedbackRepository(db *DB) FeedbackRepository {
	return &feedbackRepo{db: db, log: db.log.Named("feedback")}
}

func (r *feedbackRepo) InsertCorrection(ctx context.Context, rec *entity.CorrectionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = r.db.now().UTC()
	q := r.db.builder().Insert(tableCorrections).
		Columns(correctionColumns...).
		Values(
			rec.ID.String(), rec.TenantID, rec.OperatorID, rec.SourceContext, rec.SourceLabel, rec.WrongExtraction,
			rec.CorrectValue, rec.CorrectField, rec.Reasoning, rec.CVHash, rec.UsageCount, nullableMillis(rec.LastUsedAt),
			millis(rec.CreatedAt),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		return errors.Wrap(err, "insert correction")
	}
	return nil
}

// RecentCorrections returns the newest corrections first. limit <= 0 returns all.
func (r *feedbackRepo) RecentCorrections(ctx context.Context, tenantID string, limit int) ([]entity.CorrectionRecord, error) {
	b := r.db.builder()
	q := b.Select(correctionColumns...).From(b.Table(tableCorrections)).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy(entsql.Desc("created_at"), "id")
	if limit > 0 {
		q.Limit(limit)
	}
	var out []entity.CorrectionRecord
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			c        entity.CorrectionRecord
			lastUsed sql.NullInt64
			created  int64
		)
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.OperatorID, &c.SourceContext, &c.SourceLabel, &c.WrongExtraction,
			&c.CorrectValue, &c.CorrectField, &c.Reasoning, &c.CVHash, &c.UsageCount, &lastUsed, &created,
		); err != nil {
			return err
		}
		c.LastUsedAt = fromNullMillis(lastUsed)
		c.CreatedAt = fromMillis(created)
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list corrections")
	}
	return out, nil
}

func (r *feedbackRepo) InsertAssignment(ctx context.Context, a *entity.SegmentAssignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = r.db.now().UTC()
	q := r.db.builder().Insert(tableAssignments).
		Columns(assignmentColumns...).
		Values(
			a.ID.String(), a.TenantID, a.OperatorID, a.OriginalText, a.NormalizedText, a.DetectedType,
			a.Context, a.AssignedField, a.AssignedValue, a.UsageCount, nullableMillis(a.LastUsedAt), millis(a.CreatedAt),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		return errors.Wrap(err, "insert assignment")
	}
	return nil
}

// ListAssignments returns the tenant's assignments, most used first.
func (r *feedbackRepo) ListAssignments(ctx context.Context, tenantID string, limit int) ([]entity.SegmentAssignment, error) {
	b := r.db.builder()
	q := b.Select(assignmentColumns...).From(b.Table(tableAssignments)).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy(entsql.Desc("usage_count"), entsql.Desc("created_at"))
	if limit > 0 {
		q.Limit(limit)
	}
	var out []entity.SegmentAssignment
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			a        entity.SegmentAssignment
			lastUsed sql.NullInt64
			created  int64
		)
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.OperatorID, &a.OriginalText, &a.NormalizedText, &a.DetectedType,
			&a.Context, &a.AssignedField, &a.AssignedValue, &a.UsageCount, &lastUsed, &created,
		); err != nil {
			return err
		}
		a.LastUsedAt = fromNullMillis(lastUsed)
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	return out, nil
}

func (r *feedbackRepo) TouchAssignment(ctx context.Context, tenantID string, id uuid.UUID) (bool, error) {
	q := r.db.builder().Update(tableAssignments).
		Add("usage_count", 1).
		Set("last_used_at", millis(r.db.now())).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.EQ("tenant_id", tenantID)))
	n, err := r.db.exec(ctx, q)
	if err != nil {
		return false, errors.Wrap(err, "touch assignment")
	}
	return n == 1, nil
}

func (r *feedbackRepo) BumpMetric(ctx context.Context, tenantID, field string, d MetricDelta) error {
	now := millis(r.db.now())
	q := r.db.builder().Insert(tableMetrics).
		Columns(metricColumns...).
		Values(tenantID, field, d.Total, d.Correct, d.Corrected, d.Null, now).
		OnConflict(
			entsql.ConflictColumns("tenant_id", "field_name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add("total_extractions", d.Total)
				u.Add("correct_extractions", d.Correct)
				u.Add("corrected_extractions", d.Corrected)
				u.Add("null_extractions", d.Null)
				u.Set("updated_at", now)
			}),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		return errors.Wrap(err, "bump metric")
	}
	return nil
}

func (r *feedbackRepo) ListMetrics(ctx context.Context, tenantID string) ([]entity.FieldAccuracyMetric, error) {
	b := r.db.builder()
	q := b.Select(metricColumns...).From(b.Table(tableMetrics)).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy("field_name")
	var out []entity.FieldAccuracyMetric
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			m       entity.FieldAccuracyMetric
			updated int64
		)
		if err := rows.Scan(&m.TenantID, &m.FieldName, &m.TotalExtractions, &m.CorrectExtractions,
			&m.CorrectedExtractions, &m.NullExtractions, &updated); err != nil {
			return err
		}
		m.UpdatedAt = fromMillis(updated)
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list metrics")
	}
	return out, nil
}

func (r *feedbackRepo) UpsertFieldSynonym(ctx context.Context, s entity.TenantFieldSynonym) error {
	q := r.db.builder().Insert(tableSynonyms).
		Columns("tenant_id", "normalized_label", "source_label", "canonical_field", "created_by", "created_at").
		Values(s.TenantID, s.NormalizedLabel, s.SourceLabel, s.CanonicalField, s.CreatedBy, millis(r.db.now())).
		OnConflict(
			entsql.ConflictColumns("tenant_id", "normalized_label"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("source_label")
				u.SetExcluded("canonical_field")
				u.SetExcluded("created_by")
			}),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		return errors.Wrap(err, "upsert field synonym")
	}
	return nil
}

func (r *feedbackRepo) UpsertSkillAlias(ctx context.Context, a entity.TenantSkillAlias) error {
	q := r.db.builder().Insert(tableAliases).
		Columns("tenant_id", "normalized_alias", "alias", "canonical_skill", "created_by", "created_at").
		Values(a.TenantID, a.NormalizedAlias, a.Alias, a.CanonicalSkill, a.CreatedBy, millis(r.db.now())).
		OnConflict(
			entsql.ConflictColumns("tenant_id", "normalized_alias"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("alias")
				u.SetExcluded("canonical_skill")
				u.SetExcluded("created_by")
			}),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		return errors.Wrap(err, "upsert skill alias")
	}
	return nil
}

func (r *feedbackRepo) ListFieldSynonyms(ctx context.Context, tenantID string) ([]entity.TenantFieldSynonym, error) {
	b := r.db.builder()
	q := b.Select("tenant_id", "normalized_label", "source_label", "canonical_field", "created_by", "created_at").
		From(b.Table(tableSynonyms)).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy("normalized_label")
	var out []entity.TenantFieldSynonym
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			s       entity.TenantFieldSynonym
			created int64
		)
		if err := rows.Scan(&s.TenantID, &s.NormalizedLabel, &s.SourceLabel, &s.CanonicalField, &s.CreatedBy, &created); err != nil {
			return err
		}
		s.CreatedAt = fromMillis(created)
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list field synonyms")
	}
	return out, nil
}

func (r *feedbackRepo) ListSkillAliases(ctx context.Context, tenantID string) ([]entity.TenantSkillAlias, error) {
	b := r.db.builder()
	q := b.Select("tenant_id", "normalized_alias", "alias", "canonical_skill", "created_by", "created_at").
		From(b.Table(tableAliases)).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy("normalized_alias")
	var out []entity.TenantSkillAlias
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			a       entity.TenantSkillAlias
			created int64
		)
		if err := rows.Scan(&a.TenantID, &a.NormalizedAlias, &a.Alias, &a.CanonicalSkill, &a.CreatedBy, &created); err != nil {
			return err
		}
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list skill aliases")
	}
	return out, nil
}
