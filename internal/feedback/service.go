// Package feedback records operator corrections and turns them into
// suggestions and learning context for later extractions.
package feedback

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

const (
	maxContextLen = 2000
	maxValueLen   = 500
)

// CorrectionInput is an operator's fix for one extracted value.
type CorrectionInput struct {
	SourceContext   string `json:"sourceContext"`
	SourceLabel     string `json:"sourceLabel,omitempty"`
	WrongExtraction string `json:"wrongExtraction,omitempty"`
	CorrectValue    string `json:"correctValue"`
	CorrectField    string `json:"correctField"`
	Reasoning       string `json:"reasoning,omitempty"`
	CVHash          string `json:"cvHash,omitempty"`
}

// SegmentAssignmentInput maps a previously unmapped segment onto a field.
type SegmentAssignmentInput struct {
	Text          string `json:"text"`
	DetectedType  string `json:"detectedType,omitempty"`
	Context       string `json:"context,omitempty"`
	AssignedField string `json:"assignedField"`
	AssignedValue string `json:"assignedValue,omitempty"`
}

type Config struct {
	DefaultTenant      string
	AccuracyThreshold  float64
	MinSamples         int
	CorrectionVolume   int
	SuggestionLimit    int
	CorrectionExamples int
}

// ConfigFrom picks the feedback settings out of the application config.
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		DefaultTenant:      cfg.Tenant.Default,
		AccuracyThreshold:  cfg.Feedback.AccuracyThreshold,
		MinSamples:         cfg.Feedback.MinSamples,
		CorrectionVolume:   cfg.Feedback.CorrectionVolume,
		SuggestionLimit:    cfg.Feedback.SuggestionLimit,
		CorrectionExamples: cfg.Extraction.CorrectionExamples,
	}
}

type Service struct {
	repo   repository.FeedbackRepository
	skills repository.SkillRepository
	cfg    Config
	policy *bluemonday.Policy
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithSkillRepository lets dictionary imports seed the canonical skill list.
func WithSkillRepository(r repository.SkillRepository) Option {
	return func(s *Service) { s.skills = r }
}

func NewService(repo repository.FeedbackRepository, cfg Config, log *zap.Logger, opts ...Option) *Service {
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default"
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = 5
	}
	s := &Service{
		repo:   repo,
		cfg:    cfg,
		policy: bluemonday.StrictPolicy(),
		log:    logger.OrNop(log).Named("feedback"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tenant resolves the operator's tenant, falling back to the default tenant.
func (s *Service) Tenant(op common.Operator) string {
	if t := strings.TrimSpace(op.TenantID); t != "" {
		return t
	}
	return s.cfg.DefaultTenant
}

// clean strips markup from operator text and trims it.
func (s *Service) clean(v string) string {
	if v == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}

func (s *Service) cleanCorrection(in CorrectionInput) CorrectionInput {
	return CorrectionInput{
		SourceContext:   s.clean(in.SourceContext),
		SourceLabel:     s.clean(in.SourceLabel),
		WrongExtraction: s.clean(in.WrongExtraction),
		CorrectValue:    s.clean(in.CorrectValue),
		CorrectField:    strings.TrimSpace(in.CorrectField),
		Reasoning:       s.clean(in.Reasoning),
		CVHash:          strings.TrimSpace(in.CVHash),
	}
}

// ValidateCorrection checks the mandatory payload fields.
func (s *Service) ValidateCorrection(in CorrectionInput) error {
	in = s.cleanCorrection(in)
	v := common.NewValidator().
		Field("sourceContext", in.SourceContext, common.Required, common.MaxLength(maxContextLen)).
		Field("correctValue", in.CorrectValue, common.Required, common.MaxLength(maxValueLen)).
		Field("correctField", in.CorrectField, common.Required, common.TargetField).
		Field("wrongExtraction", in.WrongExtraction, common.MaxLength(maxValueLen))
	return common.ValidateAndReturnError(v)
}

func (s *Service) authorized(op common.Operator, event string) bool {
	if strings.TrimSpace(op.UserID) == "" {
		s.log.Warn(event+".unauthorized", logger.Operator(op.UserID, op.TenantID)...)
		return false
	}
	return true
}

// RecordCorrection appends a correction and bumps the field's counters.
// Failures are logged and reported as uuid.Nil, false.
func (s *Service) RecordCorrection(ctx context.Context, op common.Operator, in CorrectionInput) (uuid.UUID, bool) {
	if !s.authorized(op, "feedback.correction") {
		return uuid.Nil, false
	}
	if err := s.ValidateCorrection(in); err != nil {
		s.log.Warn("feedback.correction.invalid", zap.Error(err))
		return uuid.Nil, false
	}
	in = s.cleanCorrection(in)
	tenant := s.Tenant(op)
	rec := &entity.CorrectionRecord{
		TenantID:        tenant,
		OperatorID:      op.UserID,
		SourceContext:   in.SourceContext,
		SourceLabel:     in.SourceLabel,
		WrongExtraction: in.WrongExtraction,
		CorrectValue:    in.CorrectValue,
		CorrectField:    in.CorrectField,
		Reasoning:       in.Reasoning,
		CVHash:          in.CVHash,
	}
	if err := s.repo.InsertCorrection(ctx, rec); err != nil {
		s.log.Error("feedback.correction.persist_failed", append(logger.Operator(op.UserID, tenant), zap.Error(err))...)
		return uuid.Nil, false
	}

	delta := repository.MetricDelta{Total: 1, Corrected: 1}
	if in.WrongExtraction == "" {
		delta.Null = 1
	}
	if err := s.repo.BumpMetric(ctx, tenant, in.CorrectField, delta); err != nil {
		s.log.Warn("feedback.metric.persist_failed", zap.String("field", in.CorrectField), zap.Error(err))
	}
	s.log.Info("feedback.correction.recorded",
		append(logger.Operator(op.UserID, tenant), zap.String("id", rec.ID.String()), zap.String("field", in.CorrectField))...)
	return rec.ID, true
}

// BatchRecordCorrections is best-effort and returns how many persisted.
func (s *Service) BatchRecordCorrections(ctx context.Context, op common.Operator, in []CorrectionInput) int {
	n := 0
	for _, c := range in {
		if _, ok := s.RecordCorrection(ctx, op, c); ok {
			n++
		}
	}
	if n < len(in) {
		s.log.Warn("feedback.batch.partial", zap.Int("persisted", n), zap.Int("submitted", len(in)))
	}
	return n
}

// RecordSegmentAssignment remembers where an operator put an unmapped segment.
func (s *Service) RecordSegmentAssignment(ctx context.Context, op common.Operator, in SegmentAssignmentInput) (uuid.UUID, bool) {
	if !s.authorized(op, "feedback.assignment") {
		return uuid.Nil, false
	}
	text := s.clean(in.Text)
	field := strings.TrimSpace(in.AssignedField)
	v := common.NewValidator().
		Field("text", text, common.Required, common.MaxLength(maxContextLen)).
		Field("assignedField", field, common.Required, common.TargetField)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.log.Warn("feedback.assignment.invalid", zap.Error(err))
		return uuid.Nil, false
	}
	tenant := s.Tenant(op)
	a := &entity.SegmentAssignment{
		TenantID:       tenant,
		OperatorID:     op.UserID,
		OriginalText:   text,
		NormalizedText: normalize.FoldKey(text),
		DetectedType:   strings.ToLower(strings.TrimSpace(in.DetectedType)),
		Context:        s.clean(in.Context),
		AssignedField:  field,
		AssignedValue:  s.clean(in.AssignedValue),
	}
	if err := s.repo.InsertAssignment(ctx, a); err != nil {
		s.log.Error("feedback.assignment.persist_failed", append(logger.Operator(op.UserID, tenant), zap.Error(err))...)
		return uuid.Nil, false
	}
	s.log.Info("feedback.assignment.recorded",
		append(logger.Operator(op.UserID, tenant), zap.String("id", a.ID.String()), zap.String("field", field))...)
	return a.ID, true
}

// RecordSuccessfulExtraction counts an accepted value as correct.
func (s *Service) RecordSuccessfulExtraction(ctx context.Context, op common.Operator, field string) bool {
	if !s.authorized(op, "feedback.success") {
		return false
	}
	field = strings.TrimSpace(field)
	if err := common.ValidateAndReturnError(common.NewValidator().Field("field", field, common.TargetField)); err != nil {
		s.log.Warn("feedback.success.invalid", zap.Error(err))
		return false
	}
	if err := s.repo.BumpMetric(ctx, s.Tenant(op), field, repository.MetricDelta{Total: 1, Correct: 1}); err != nil {
		s.log.Error("feedback.success.persist_failed", zap.String("field", field), zap.Error(err))
		return false
	}
	return true
}

// MarkSuggestionUsed bumps the usage of the assignment behind a suggestion.
func (s *Service) MarkSuggestionUsed(ctx context.Context, op common.Operator, assignmentID uuid.UUID) bool {
	if !s.authorized(op, "feedback.suggestion_used") {
		return false
	}
	ok, err := s.repo.TouchAssignment(ctx, s.Tenant(op), assignmentID)
	if err != nil {
		s.log.Error("feedback.suggestion_used.persist_failed", zap.String("id", assignmentID.String()), zap.Error(err))
		return false
	}
	return ok
}
