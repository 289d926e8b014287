package llm

import (
	"context"

	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
)

// Engine turns packed CV text into structured data. Callers must check
// Enabled and Configured before calling Extract.
type Engine interface {
	Name() string
	Enabled() bool
	Configured() bool
	Extract(ctx context.Context, req Request) Result
}

// Request is one extraction call.
type Request struct {
	Packed   acquire.PackedInput
	Learning LearningContext
	Locale   string
}

// LearningContext carries what the feedback store has learned for a tenant.
type LearningContext struct {
	FieldSynonyms map[string]string // folded label -> target field
	SkillAliases  map[string]string // alias -> canonical skill
	Examples      []CorrectionExample
}

// CorrectionExample is a past operator correction replayed as a few-shot hint.
type CorrectionExample struct {
	SourceLabel     string `json:"sourceLabel,omitempty"`
	SourceContext   string `json:"sourceContext"`
	WrongExtraction string `json:"wrongExtraction,omitempty"`
	CorrectValue    string `json:"correctValue"`
	CorrectField    string `json:"correctField"`
}

// ImplicitMapping records an inference the engine made without a direct label.
type ImplicitMapping struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Result struct {
	Success                 bool
	Data                    *ExtractedData
	Error                   string
	ErrorCode               string
	ImplicitMappingsApplied []ImplicitMapping
	LatencyMs               int64
	RetryCount              int
	ThoughtProcess          string
}

type Person struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
}

type Address struct {
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	City       string `json:"city,omitempty"`
	Canton     string `json:"canton,omitempty"`
}

type Contact struct {
	Email    string  `json:"email,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	LinkedIn string  `json:"linkedin,omitempty"`
	Address  Address `json:"address"`
}

type Language struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

type ExperienceEntry struct {
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

type EducationEntry struct {
	Degree      string `json:"degree,omitempty"`
	Institution string `json:"institution,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// UnmappedSegment is text the engine saw but could not place.
type UnmappedSegment struct {
	Text           string  `json:"text"`
	DetectedType   string  `json:"detectedType,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	SuggestedField string  `json:"suggestedField,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// AmbiguousSegment is a label that fits more than one field.
type AmbiguousSegment struct {
	Label      string   `json:"label"`
	Text       string   `json:"text"`
	Candidates []string `json:"candidates"`
}

// ExtractedData is the engine's structured output.
type ExtractedData struct {
	Person            Person             `json:"person"`
	Contact           Contact            `json:"contact"`
	Nationality       string             `json:"nationality,omitempty"`
	Birthdate         string             `json:"birthdate,omitempty"`
	DrivingLicense    string             `json:"drivingLicense,omitempty"`
	WorkPermit        string             `json:"workPermit,omitempty"`
	Languages         []Language         `json:"languages,omitempty"`
	Skills            []string           `json:"skills,omitempty"`
	Certificates      []string           `json:"certificates,omitempty"`
	Experience        []ExperienceEntry  `json:"experience,omitempty"`
	Education         []EducationEntry   `json:"education,omitempty"`
	FlaggedFields     []string           `json:"flaggedFields,omitempty"`
	UnmappedSegments  []UnmappedSegment  `json:"unmappedSegments,omitempty"`
	AmbiguousSegments []AmbiguousSegment `json:"ambiguousSegments,omitempty"`
	// Evidence maps a target field to the source snippet it was read from.
	Evidence map[string]string `json:"evidence,omitempty"`
}

// IsFlagged reports whether the engine marked field as low confidence.
func (d *ExtractedData) IsFlagged(field string) bool {
	for _, f := range d.FlaggedFields {
		if f == field {
			return true
		}
	}
	return false
}

// EvidenceFor returns the recorded source snippet for field, if any.
func (d *ExtractedData) EvidenceFor(field string) string {
	if d.Evidence == nil {
		return ""
	}
	return d.Evidence[field]
}

// SetEvidence records the source snippet for field, keeping the first one seen.
func (d *ExtractedData) SetEvidence(field, text string) {
	if text == "" {
		return
	}
	if d.Evidence == nil {
		d.Evidence = make(map[string]string)
	}
	if _, ok := d.Evidence[field]; !ok {
		d.Evidence[field] = text
	}
}

// Failed builds an unsuccessful result.
func Failed(code, msg string) Result {
	return Result{Success: false, Error: msg, ErrorCode: code}
}
