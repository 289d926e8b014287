package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

const (
	// assignments scanned per lookup
	suggestionScan = 500
	minSimilarity  = 0.3
	sameTypeBonus  = 0.1
)

// Segment is an unmapped piece of text to find suggestions for.
type Segment struct {
	Text         string `json:"text"`
	DetectedType string `json:"detectedType,omitempty"`
}

type Suggestion struct {
	AssignmentID uuid.UUID            `json:"assignmentId"`
	Field        string               `json:"field"`
	Value        string               `json:"value,omitempty"`
	Confidence   constants.Confidence `json:"confidence"`
	Score        float64              `json:"score"`
	Reason       string               `json:"reason"`
}

type scored struct {
	a     entity.SegmentAssignment
	score float64
	exact bool
}

// SuggestionsForUnmapped ranks earlier assignments against seg: text
// similarity first (exact folded match scores 1.0), then usage, then recency.
func (s *Service) SuggestionsForUnmapped(ctx context.Context, tenantID string, seg Segment) []Suggestion {
	key := normalize.FoldKey(seg.Text)
	detected := strings.ToLower(strings.TrimSpace(seg.DetectedType))
	if key == "" && detected == "" {
		return []Suggestion{}
	}
	assignments, err := s.repo.ListAssignments(ctx, s.tenantOrDefault(tenantID), suggestionScan)
	if err != nil {
		s.log.Error("feedback.suggestions.failed", zap.Error(err))
		return []Suggestion{}
	}

	var cands []scored
	for _, a := range assignments {
		c := scored{a: a}
		if key != "" && a.NormalizedText == key {
			c.score, c.exact = 1, true
		} else if key != "" {
			if sim := normalize.Jaccard(key, a.NormalizedText); sim >= minSimilarity {
				c.score = sim
			}
		}
		sameType := detected != "" && a.DetectedType == detected
		if c.score == 0 && !sameType {
			continue
		}
		if sameType {
			c.score += sameTypeBonus
		}
		cands = append(cands, c)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].a.UsageCount != cands[j].a.UsageCount {
			return cands[i].a.UsageCount > cands[j].a.UsageCount
		}
		return lastActivity(cands[i].a).After(lastActivity(cands[j].a))
	})

	out := make([]Suggestion, 0, s.cfg.SuggestionLimit)
	seen := make(map[string]struct{})
	for _, c := range cands {
		dedupe := c.a.AssignedField + "\x00" + c.a.AssignedValue
		if _, dup := seen[dedupe]; dup {
			continue
		}
		seen[dedupe] = struct{}{}
		out = append(out, Suggestion{
			AssignmentID: c.a.ID,
			Field:        c.a.AssignedField,
			Value:        c.a.AssignedValue,
			Confidence:   constants.BucketConfidence(min(c.score, 1)),
			Score:        c.score,
			Reason:       reason(c),
		})
		if len(out) == s.cfg.SuggestionLimit {
			break
		}
	}
	return out
}

// Enrich appends learned suggestions to each unmapped item of the draft.
func (s *Service) Enrich(ctx context.Context, tenantID string, d *entity.Draft) {
	if d == nil {
		return
	}
	for i := range d.UnmappedItems {
		item := &d.UnmappedItems[i]
		for _, sg := range s.SuggestionsForUnmapped(ctx, tenantID, Segment{Text: item.Text, DetectedType: item.DetectedType}) {
			if hasTarget(item.SuggestedTargets, sg.Field, sg.Value) {
				continue
			}
			item.SuggestedTargets = append(item.SuggestedTargets, entity.SuggestedTarget{
				Field:      sg.Field,
				Value:      sg.Value,
				Confidence: sg.Confidence,
				Reason:     sg.Reason,
				Origin:     entity.OriginLearning,
			})
		}
	}
}

func hasTarget(ts []entity.SuggestedTarget, field, value string) bool {
	for _, t := range ts {
		if t.Field == field && (t.Value == "" || t.Value == value) {
			return true
		}
	}
	return false
}

func lastActivity(a entity.SegmentAssignment) time.Time {
	if a.LastUsedAt != nil {
		return *a.LastUsedAt
	}
	return a.CreatedAt
}

func reason(c scored) string {
	switch {
	case c.exact:
		return fmt.Sprintf("same text was assigned to %s before", c.a.AssignedField)
	case c.score > sameTypeBonus:
		return fmt.Sprintf("similar to %q", c.a.OriginalText)
	default:
		return fmt.Sprintf("same segment type %s", c.a.DetectedType)
	}
}
