package entity

import (
	"time"

	"github.com/joseph-ayodele/cv-autofill/constants"
)

// Draft is the reviewable output of one extraction job.
type Draft struct {
	FilledFields    []FilledField    `json:"filledFields"`
	AmbiguousFields []AmbiguousField `json:"ambiguousFields"`
	UnmappedItems   []UnmappedItem   `json:"unmappedItems"`
	Metadata        DraftMetadata    `json:"metadata"`
}

type DraftMetadata struct {
	FileName         string    `json:"fileName"`
	FileType         string    `json:"fileType"`
	FileSize         int64     `json:"fileSize"`
	PageCount        int       `json:"pageCount"`
	ExtractionMethod string    `json:"extractionMethod"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	Timestamp        time.Time `json:"timestamp"`
}

type FilledField struct {
	TargetField string               `json:"targetField"`
	Value       any                  `json:"extractedValue"`
	Confidence  constants.Confidence `json:"confidence"`
	Source      Provenance           `json:"sourceProvenance"`
}

type AmbiguousField struct {
	Label      string      `json:"label"`
	Source     Provenance  `json:"sourceProvenance"`
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one plausible target for an ambiguous label, Rank 1 first.
type Candidate struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Rank   int    `json:"rank"`
}

type UnmappedItem struct {
	Text             string             `json:"text"`
	Category         constants.Category `json:"category"`
	DetectedType     string             `json:"detectedType"`
	Reason           string             `json:"reason,omitempty"`
	Source           Provenance         `json:"sourceProvenance"`
	SuggestedTargets []SuggestedTarget  `json:"suggestedTargets"`
}

// SuggestedTarget origins.
const (
	OriginEngine   = "engine"
	OriginLearning = "learning"
)

type SuggestedTarget struct {
	Field      string               `json:"field"`
	Value      string               `json:"value,omitempty"`
	Confidence constants.Confidence `json:"confidence"`
	Reason     string               `json:"reason,omitempty"`
	Origin     string               `json:"origin"`
}

// EmptyDraft carries only metadata; every caller falls back to it.
func EmptyDraft(meta DraftMetadata) *Draft {
	return &Draft{
		FilledFields:    []FilledField{},
		AmbiguousFields: []AmbiguousField{},
		UnmappedItems:   []UnmappedItem{},
		Metadata:        meta,
	}
}

// IsEmpty reports whether nothing was extracted.
func (d *Draft) IsEmpty() bool {
	return d == nil || (len(d.FilledFields) == 0 && len(d.AmbiguousFields) == 0 && len(d.UnmappedItems) == 0)
}

// Field returns the filled field for target, or nil.
func (d *Draft) Field(target string) *FilledField {
	if d == nil {
		return nil
	}
	for i := range d.FilledFields {
		if d.FilledFields[i].TargetField == target {
			return &d.FilledFields[i]
		}
	}
	return nil
}
