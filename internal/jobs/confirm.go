package jobs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

// CandidateSink receives the reviewed fields of a confirmed draft. Writing
// the candidate profile is outside this service.
type CandidateSink interface {
	Accept(ctx context.Context, op common.Operator, jobID uuid.UUID, fields []entity.FilledField) error
}

// LogSink only logs what it receives.
type LogSink struct {
	log *zap.Logger
}

func (s LogSink) Accept(_ context.Context, op common.Operator, jobID uuid.UUID, fields []entity.FilledField) error {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.TargetField)
	}
	logger.OrNop(s.log).Info("jobs.confirm.accepted",
		append(logger.Operator(op.UserID, op.TenantID),
			zap.String("job_id", jobID.String()),
			zap.Strings("fields", names),
		)...)
	return nil
}

type ConfirmRequest struct {
	Accepted    []string                   `json:"accepted"`
	Corrections []feedback.CorrectionInput `json:"corrections"`
}

type ConfirmResponse struct {
	Accepted  int `json:"accepted"`
	Corrected int `json:"corrected"`
}

// Confirm closes the review of a completed job. Accepted fields count as
// correct extractions, corrections are recorded and both go to the sink.
// A job is confirmed at most once; the marker is written before any feedback
// so concurrent or repeated calls cannot count twice.
func (s *Service) Confirm(ctx context.Context, op common.Operator, id uuid.UUID, req ConfirmRequest) (ConfirmResponse, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return ConfirmResponse{}, err
	}
	if !job.OwnedBy(op.UserID) {
		return ConfirmResponse{}, common.NewAppError(common.CodeNotFound, "job not found", common.ErrNotFound)
	}
	if job.Status != constants.JobStatusCompleted {
		return ConfirmResponse{}, common.NewAppError(common.CodeInvalidPayload, "job is "+string(job.Status), common.ErrValidation)
	}
	for _, c := range req.Corrections {
		if err := s.feedback.ValidateCorrection(c); err != nil {
			return ConfirmResponse{}, err
		}
	}

	if job.ConfirmedAt != nil {
		return ConfirmResponse{}, alreadyConfirmed()
	}
	ok, err := s.jobs.MarkConfirmed(ctx, id)
	if err != nil {
		return ConfirmResponse{}, common.NewAppError(common.CodePersistenceFailed, "mark job confirmed", err)
	}
	if !ok {
		return ConfirmResponse{}, alreadyConfirmed()
	}

	op.TenantID = s.feedback.Tenant(op)
	fields := make([]entity.FilledField, 0, len(req.Accepted)+len(req.Corrections))
	seen := map[string]bool{}
	resp := ConfirmResponse{}
	for _, name := range req.Accepted {
		name = strings.TrimSpace(name)
		f := job.Result.Field(name)
		if f == nil || seen[name] {
			continue
		}
		seen[name] = true
		if s.feedback.RecordSuccessfulExtraction(ctx, op, name) {
			resp.Accepted++
		}
		fields = append(fields, *f)
	}

	resp.Corrected = s.feedback.BatchRecordCorrections(ctx, op, req.Corrections)
	for _, c := range req.Corrections {
		fields = append(fields, entity.FilledField{
			TargetField: strings.TrimSpace(c.CorrectField),
			Value:       c.CorrectValue,
			Confidence:  constants.ConfidenceHigh,
			Source:      entity.Provenance{Text: firstNonEmpty(c.SourceContext, c.CorrectValue), Method: "operator"},
		})
	}

	if err := s.sink.Accept(ctx, op, job.ID, fields); err != nil {
		return resp, common.NewAppError(common.CodePersistenceFailed, "hand over confirmed fields", err)
	}
	return resp, nil
}

func alreadyConfirmed() error {
	return common.NewAppError(common.CodeAlreadyConfirmed, "job already confirmed", common.ErrValidation)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
