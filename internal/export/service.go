// Package export renders the feedback store as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

const (
	sheetCorrections = "Corrections"
	sheetAssignments = "Assignments"
	sheetAccuracy    = "FieldAccuracy"
)

// Problematic is satisfied by *feedback.Service.
type Problematic interface {
	ProblematicFields(ctx context.Context, tenantID string) []string
}

// Service is a tiny façade over the feedback repository that produces XLSX bytes.
type Service struct {
	repo        repository.FeedbackRepository
	problematic Problematic
	logger      *zap.Logger
}

func NewService(repo repository.FeedbackRepository, problematic Problematic, log *zap.Logger) *Service {
	return &Service{repo: repo, problematic: problematic, logger: logger.OrNop(log).Named("export")}
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) write(vals ...any) {
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
	w.row++
}

func newSheet(f *excelize.File, name string, headers ...any) (*sheetWriter, error) {
	if index, _ := f.GetSheetIndex(name); index == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	w := &sheetWriter{f: f, sheet: name, row: 1}
	w.write(headers...)
	return w, nil
}

// ExportFeedbackXLSX returns a workbook with the tenant's corrections,
// segment assignments and per-field accuracy.
func (s *Service) ExportFeedbackXLSX(ctx context.Context, tenantID string) ([]byte, error) {
	start := time.Now()

	corrections, err := s.repo.RecentCorrections(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	assignments, err := s.repo.ListAssignments(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	metrics, err := s.repo.ListMetrics(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	problematic := map[string]bool{}
	if s.problematic != nil {
		for _, f := range s.problematic.ProblematicFields(ctx, tenantID) {
			problematic[f] = true
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	cw, err := newSheet(f, sheetCorrections,
		"Created", "Field", "Wrong Value", "Correct Value", "Label", "Context", "Reasoning", "Operator", "Usage")
	if err != nil {
		return nil, err
	}
	for _, c := range corrections {
		cw.write(
			c.CreatedAt.Format(time.RFC3339),
			c.CorrectField,
			c.WrongExtraction,
			c.CorrectValue,
			c.SourceLabel,
			truncate(c.SourceContext, 140),
			c.Reasoning,
			c.OperatorID,
			c.UsageCount,
		)
	}

	aw, err := newSheet(f, sheetAssignments,
		"Created", "Text", "Detected Type", "Field", "Value", "Usage", "Last Used")
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		lastUsed := ""
		if a.LastUsedAt != nil {
			lastUsed = a.LastUsedAt.Format(time.RFC3339)
		}
		aw.write(
			a.CreatedAt.Format(time.RFC3339),
			a.OriginalText,
			a.DetectedType,
			a.AssignedField,
			a.AssignedValue,
			a.UsageCount,
			lastUsed,
		)
	}

	mw, err := newSheet(f, sheetAccuracy,
		"Field", "Total", "Correct", "Corrected", "Empty", "Accuracy", "Problematic")
	if err != nil {
		return nil, err
	}
	for _, m := range metrics {
		mw.write(
			m.FieldName,
			m.TotalExtractions,
			m.CorrectExtractions,
			m.CorrectedExtractions,
			m.NullExtractions,
			m.Accuracy(),
			problematic[m.FieldName],
		)
	}

	// excelize starts with Sheet1
	_ = f.DeleteSheet("Sheet1")
	if idx, _ := f.GetSheetIndex(sheetCorrections); idx >= 0 {
		f.SetActiveSheet(idx)
	}
	_ = f.SetColWidth(sheetCorrections, "A", "A", 22)
	_ = f.SetColWidth(sheetCorrections, "C", "D", 28)
	_ = f.SetColWidth(sheetCorrections, "F", "F", 60)
	_ = f.SetColWidth(sheetAssignments, "B", "B", 40)
	_ = f.SetColWidth(sheetAccuracy, "A", "A", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.String("tenant_id", tenantID),
		zap.Int("corrections", len(corrections)),
		zap.Int("assignments", len(assignments)),
		zap.Int("fields", len(metrics)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
