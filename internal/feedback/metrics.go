package feedback

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// FieldAccuracies returns correct/total per field for the tenant.
func (s *Service) FieldAccuracies(ctx context.Context, tenantID string) map[string]float64 {
	metrics, err := s.repo.ListMetrics(ctx, s.tenantOrDefault(tenantID))
	if err != nil {
		s.log.Error("feedback.metrics.failed", zap.Error(err))
		return map[string]float64{}
	}
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		out[m.FieldName] = m.Accuracy()
	}
	return out
}

// ProblematicFields lists fields whose accuracy is below the threshold once
// enough samples exist, or that were corrected often. Sorted by name.
func (s *Service) ProblematicFields(ctx context.Context, tenantID string) []string {
	metrics, err := s.repo.ListMetrics(ctx, s.tenantOrDefault(tenantID))
	if err != nil {
		s.log.Error("feedback.metrics.failed", zap.Error(err))
		return []string{}
	}
	out := []string{}
	for _, m := range metrics {
		lowAccuracy := m.TotalExtractions >= s.cfg.MinSamples && m.Accuracy() < s.cfg.AccuracyThreshold
		highVolume := s.cfg.CorrectionVolume > 0 && m.CorrectedExtractions >= s.cfg.CorrectionVolume
		if lowAccuracy || highVolume {
			out = append(out, m.FieldName)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Service) tenantOrDefault(tenantID string) string {
	if tenantID == "" {
		return s.cfg.DefaultTenant
	}
	return tenantID
}
