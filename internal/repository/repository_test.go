package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
)

// clock is a settable time source for the DB under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestDB(t *testing.T) (*DB, *clock) {
	t.Helper()
	ctx := context.Background()
	cfg := common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + filepath.Join(t.TempDir(), "test.db"),
		DialTimeout: time.Second,
	}
	db, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	// second run is a no-op
	require.NoError(t, db.Migrate(ctx))

	c := &clock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	db.now = c.now
	return db, c
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.True(t, common.HasCode(err, common.CodeConfig))
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	db, c := newTestDB(t)
	jobs := NewJobRepository(db)

	job := &entity.ExtractionJob{OwnerID: "u1", TenantID: "t1", FileName: "cv.pdf", FileType: "pdf", FileSize: 1234}
	require.NoError(t, jobs.Create(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, got.Status)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.CompletedAt)

	ok, err := jobs.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// only pending jobs can start
	ok, err = jobs.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	c.t = c.t.Add(2 * time.Second)
	draft := entity.EmptyDraft(entity.DraftMetadata{FileName: "cv.pdf", PageCount: 2})
	draft.FilledFields = append(draft.FilledFields, entity.FilledField{
		TargetField: constants.FieldEmail, Value: "anna@example.ch",
		Confidence: constants.ConfidenceHigh, Source: entity.Provenance{Text: "anna@example.ch", Page: 1},
	})
	ok, err = jobs.Complete(ctx, job.ID, 2, draft)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.PageCount)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, c.t, *got.CompletedAt)
	require.NotNil(t, got.Result)
	assert.Equal(t, "anna@example.ch", got.Result.Field(constants.FieldEmail).Value)

	// terminal rows never change again
	ok, err = jobs.Fail(ctx, job.ID, common.CodeInternal, "late", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorCode)
}

func TestMarkConfirmedOnce(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	jobs := NewJobRepository(db)

	job := &entity.ExtractionJob{OwnerID: "u1", TenantID: "t1", FileName: "cv.pdf", FileType: "pdf"}
	require.NoError(t, jobs.Create(ctx, job))

	// pending jobs cannot be confirmed
	ok, err := jobs.MarkConfirmed(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = jobs.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)
	_, err = jobs.Complete(ctx, job.ID, 1, entity.EmptyDraft(entity.DraftMetadata{}))
	require.NoError(t, err)

	ok, err = jobs.MarkConfirmed(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = jobs.MarkConfirmed(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ConfirmedAt)
}

func TestMigrateAddsNewColumnsToOldTables(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + filepath.Join(t.TempDir(), "old.db"),
		DialTimeout: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	old := `CREATE TABLE extraction_jobs (
		id TEXT PRIMARY KEY, owner_id TEXT NOT NULL, tenant_id TEXT NOT NULL, status TEXT NOT NULL,
		file_name TEXT NOT NULL, file_type TEXT NOT NULL, file_size BIGINT NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0, content_hash TEXT NOT NULL DEFAULT '', result TEXT,
		error_code TEXT NOT NULL DEFAULT '', error TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL, updated_at BIGINT NOT NULL, completed_at BIGINT
	)`
	require.NoError(t, db.Driver.Exec(ctx, old, []any{}, nil))
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	jobs := NewJobRepository(db)
	job := &entity.ExtractionJob{OwnerID: "u1", TenantID: "t1", FileName: "cv.pdf", FileType: "pdf"}
	require.NoError(t, jobs.Create(ctx, job))
	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ConfirmedAt)
}

func TestJobFailKeepsPageCount(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	jobs := NewJobRepository(db)

	job := &entity.ExtractionJob{OwnerID: "u1", TenantID: "t1", FileName: "cv.pdf", FileType: "pdf", PageCount: 3}
	require.NoError(t, jobs.Create(ctx, job))
	ok, err := jobs.Fail(ctx, job.ID, common.CodeEngineNotConfigured, "no key", entity.EmptyDraft(entity.DraftMetadata{}))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, common.CodeEngineNotConfigured, got.ErrorCode)
	assert.Equal(t, 3, got.PageCount)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.IsEmpty())
}

func TestJobGetNotFound(t *testing.T) {
	db, _ := newTestDB(t)
	_, err := NewJobRepository(db).Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestListStale(t *testing.T) {
	ctx := context.Background()
	db, c := newTestDB(t)
	jobs := NewJobRepository(db)

	old := &entity.ExtractionJob{OwnerID: "u", TenantID: "t", FileName: "a.pdf", FileType: "pdf"}
	require.NoError(t, jobs.Create(ctx, old))
	done := &entity.ExtractionJob{OwnerID: "u", TenantID: "t", FileName: "b.pdf", FileType: "pdf"}
	require.NoError(t, jobs.Create(ctx, done))
	_, err := jobs.Complete(ctx, done.ID, 1, nil)
	require.NoError(t, err)

	c.t = c.t.Add(time.Hour)
	fresh := &entity.ExtractionJob{OwnerID: "u", TenantID: "t", FileName: "c.pdf", FileType: "pdf"}
	require.NoError(t, jobs.Create(ctx, fresh))

	ids, err := jobs.ListStale(ctx, c.t.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{old.ID}, ids)
}

func TestFeedbackRecords(t *testing.T) {
	ctx := context.Background()
	db, c := newTestDB(t)
	fb := NewFeedbackRepository(db)

	first := &entity.CorrectionRecord{TenantID: "t1", OperatorID: "op", SourceContext: "Fahrausweis: B", CorrectValue: "B", CorrectField: constants.FieldDrivingLicense}
	require.NoError(t, fb.InsertCorrection(ctx, first))
	c.t = c.t.Add(time.Minute)
	second := &entity.CorrectionRecord{TenantID: "t1", OperatorID: "op", SourceContext: "Tel 079", CorrectValue: "079", CorrectField: constants.FieldPhone}
	require.NoError(t, fb.InsertCorrection(ctx, second))
	require.NoError(t, fb.InsertCorrection(ctx, &entity.CorrectionRecord{TenantID: "t2", OperatorID: "op", SourceContext: "x", CorrectValue: "y", CorrectField: constants.FieldCity}))

	recent, err := fb.RecentCorrections(ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	all, err := fb.RecentCorrections(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	a := &entity.SegmentAssignment{TenantID: "t1", OperatorID: "op", OriginalText: "Fahrausweis: Kat. B", NormalizedText: "fahrausweis kat b", AssignedField: constants.FieldDrivingLicense, AssignedValue: "B"}
	require.NoError(t, fb.InsertAssignment(ctx, a))
	ok, err := fb.TouchAssignment(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = fb.TouchAssignment(ctx, "t2", a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := fb.ListAssignments(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UsageCount)
	require.NotNil(t, list[0].LastUsedAt)
}

func TestListAssignmentsMostUsedThenNewest(t *testing.T) {
	ctx := context.Background()
	db, c := newTestDB(t)
	fb := NewFeedbackRepository(db)

	old := &entity.SegmentAssignment{TenantID: "t1", OperatorID: "op", OriginalText: "a", NormalizedText: "a", AssignedField: constants.FieldCity}
	require.NoError(t, fb.InsertAssignment(ctx, old))
	c.t = c.t.Add(time.Minute)
	newer := &entity.SegmentAssignment{TenantID: "t1", OperatorID: "op", OriginalText: "b", NormalizedText: "b", AssignedField: constants.FieldCity}
	require.NoError(t, fb.InsertAssignment(ctx, newer))
	c.t = c.t.Add(time.Minute)
	middle := &entity.SegmentAssignment{TenantID: "t1", OperatorID: "op", OriginalText: "c", NormalizedText: "c", AssignedField: constants.FieldCity}
	require.NoError(t, fb.InsertAssignment(ctx, middle))
	c.t = c.t.Add(time.Minute)
	newest := &entity.SegmentAssignment{TenantID: "t1", OperatorID: "op", OriginalText: "d", NormalizedText: "d", AssignedField: constants.FieldCity}
	require.NoError(t, fb.InsertAssignment(ctx, newest))
	_, err := fb.TouchAssignment(ctx, "t1", old.ID)
	require.NoError(t, err)

	list, err := fb.ListAssignments(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, []uuid.UUID{old.ID, newest.ID, middle.ID, newer.ID},
		[]uuid.UUID{list[0].ID, list[1].ID, list[2].ID, list[3].ID})

	limited, err := fb.ListAssignments(ctx, "t1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBumpMetricAccumulates(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	fb := NewFeedbackRepository(db)

	require.NoError(t, fb.BumpMetric(ctx, "t1", constants.FieldPhone, MetricDelta{Total: 1, Correct: 1}))
	require.NoError(t, fb.BumpMetric(ctx, "t1", constants.FieldPhone, MetricDelta{Total: 1, Corrected: 1}))
	require.NoError(t, fb.BumpMetric(ctx, "t1", constants.FieldEmail, MetricDelta{Total: 1, Corrected: 1, Null: 1}))

	metrics, err := fb.ListMetrics(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, constants.FieldEmail, metrics[0].FieldName)
	assert.Equal(t, 1, metrics[0].NullExtractions)
	phone := metrics[1]
	assert.Equal(t, 2, phone.TotalExtractions)
	assert.Equal(t, 1, phone.CorrectExtractions)
	assert.Equal(t, 1, phone.CorrectedExtractions)
	assert.InDelta(t, 0.5, phone.Accuracy(), 1e-9)
}

func TestDictionaryUpserts(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	fb := NewFeedbackRepository(db)

	require.NoError(t, fb.UpsertFieldSynonym(ctx, entity.TenantFieldSynonym{TenantID: "t1", SourceLabel: "Fahrausweis", NormalizedLabel: "fahrausweis", CanonicalField: constants.FieldWorkPermit, CreatedBy: "op"}))
	require.NoError(t, fb.UpsertFieldSynonym(ctx, entity.TenantFieldSynonym{TenantID: "t1", SourceLabel: "Fahrausweis", NormalizedLabel: "fahrausweis", CanonicalField: constants.FieldDrivingLicense, CreatedBy: "op2"}))
	syn, err := fb.ListFieldSynonyms(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, syn, 1)
	assert.Equal(t, constants.FieldDrivingLicense, syn[0].CanonicalField)
	assert.Equal(t, "op2", syn[0].CreatedBy)

	require.NoError(t, fb.UpsertSkillAlias(ctx, entity.TenantSkillAlias{TenantID: "t1", Alias: "k8s", NormalizedAlias: "k8s", CanonicalSkill: "Kubernetes", CreatedBy: "op"}))
	aliases, err := fb.ListSkillAliases(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "Kubernetes", aliases[0].CanonicalSkill)

	none, err := fb.ListSkillAliases(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCanonicalSkills(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	skills := NewSkillRepository(db)

	require.NoError(t, skills.AddCanonical(ctx, "Kubernetes", "Go", "go", ""))
	names, err := skills.ListCanonical(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Kubernetes"}, names)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	counters := NewCounterRepository(db)

	bucket := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	n, err := counters.Incr(ctx, "day:u1", bucket, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = counters.Incr(ctx, "day:u1", bucket, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = counters.Peek(ctx, "day:u2", bucket)
	require.NoError(t, err)
	assert.Zero(t, n)

	purged, err := counters.PurgeExpired(ctx, bucket.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
