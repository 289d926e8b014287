package entity

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionRecord is an append-only record of an operator fixing an extraction.
type CorrectionRecord struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        string     `json:"tenantId"`
	OperatorID      string     `json:"operatorId"`
	SourceContext   string     `json:"sourceContext"`
	SourceLabel     string     `json:"sourceLabel,omitempty"`
	WrongExtraction string     `json:"wrongExtraction,omitempty"`
	CorrectValue    string     `json:"correctValue"`
	CorrectField    string     `json:"correctField"`
	Reasoning       string     `json:"reasoning,omitempty"`
	CVHash          string     `json:"cvHash,omitempty"`
	UsageCount      int        `json:"usageCount"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// SegmentAssignment maps a previously unmapped segment onto a field/value chosen by an operator.
type SegmentAssignment struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       string     `json:"tenantId"`
	OperatorID     string     `json:"operatorId"`
	OriginalText   string     `json:"originalText"`
	NormalizedText string     `json:"normalizedText"`
	DetectedType   string     `json:"detectedType,omitempty"`
	Context        string     `json:"context,omitempty"`
	AssignedField  string     `json:"assignedField"`
	AssignedValue  string     `json:"assignedValue,omitempty"`
	UsageCount     int        `json:"usageCount"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// FieldAccuracyMetric holds rolling per-field counters.
type FieldAccuracyMetric struct {
	TenantID             string    `json:"tenantId"`
	FieldName            string    `json:"fieldName"`
	TotalExtractions     int       `json:"totalExtractions"`
	CorrectExtractions   int       `json:"correctExtractions"`
	CorrectedExtractions int       `json:"correctedExtractions"`
	NullExtractions      int       `json:"nullExtractions"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Accuracy is correct/total, 0 when nothing was recorded.
func (m FieldAccuracyMetric) Accuracy() float64 {
	if m.TotalExtractions == 0 {
		return 0
	}
	return float64(m.CorrectExtractions) / float64(m.TotalExtractions)
}

type TenantFieldSynonym struct {
	TenantID        string    `json:"tenantId"`
	SourceLabel     string    `json:"sourceLabel"`
	NormalizedLabel string    `json:"normalizedLabel"`
	CanonicalField  string    `json:"canonicalField"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

type TenantSkillAlias struct {
	TenantID        string    `json:"tenantId"`
	Alias           string    `json:"alias"`
	NormalizedAlias string    `json:"normalizedAlias"`
	CanonicalSkill  string    `json:"canonicalSkill"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}
