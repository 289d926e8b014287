package constants

import (
	"strings"
)

// Category groups unmapped items in the draft.
type Category string

const (
	CategoryDate       Category = "date"
	CategorySkill      Category = "skill"
	CategoryEducation  Category = "education"
	CategoryContact    Category = "contact"
	CategoryText       Category = "text"
	CategoryLanguage   Category = "language"
	CategoryExperience Category = "experience"
	CategoryOther      Category = "other"
)

// Detected types reported by an extraction engine for unmapped segments.
const (
	DetectedDate       = "date"
	DetectedSkill      = "skill"
	DetectedCredential = "credential"
	DetectedPersonal   = "personal"
	DetectedOther      = "other"
)

// Canonicalize maps an engine-detected type onto a draft category.
// Unknown or empty types land in CategoryOther.
func Canonicalize(detectedType string) (Category, bool) {
	if detectedType == "" {
		return CategoryOther, false
	}

	normalized := strings.ToLower(strings.TrimSpace(detectedType))

	detected := map[string]Category{
		DetectedDate:       CategoryDate,
		DetectedSkill:      CategorySkill,
		DetectedCredential: CategoryEducation,
		DetectedPersonal:   CategoryContact,
		DetectedOther:      CategoryOther,
	}

	if cat, ok := detected[normalized]; ok {
		return cat, true
	}
	return CategoryOther, false
}
