package llm

import "github.com/joseph-ayodele/cv-autofill/constants"

// BuildCVJSONSchema returns the JSON-Schema (draft 2020-12 subset) the model output must satisfy.
// It is sent in the prompt and used locally to validate.
func BuildCVJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}
	dated := func(extra ...string) map[string]any {
		props := map[string]any{
			"startDate":   str,
			"endDate":     str,
			"description": str,
		}
		for _, k := range extra {
			props[k] = str
		}
		return map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           props,
			},
		}
	}

	props := map[string]any{
		"person": object(map[string]any{
			"firstName": str,
			"lastName":  str,
			"evidence":  str,
		}),
		"contact": object(map[string]any{
			"email":    str,
			"phone":    str,
			"linkedin": str,
			"address": object(map[string]any{
				"street":     str,
				"postalCode": str,
				"city":       str,
				"canton":     str,
			}),
		}),
		"nationality":    str,
		"birthdate":      str,
		"drivingLicense": str,
		"workPermit":     str,
		"languages": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"name"},
				"properties": map[string]any{
					"name":  map[string]any{"type": "string", "minLength": 1},
					"level": str,
				},
			},
		},
		"skills":       strList,
		"certificates": strList,
		"experience":   dated("title", "company"),
		"education":    dated("degree", "institution"),
		"flaggedFields": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "enum": constants.TargetFields},
		},
		"unmappedSegments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"text"},
				"properties": map[string]any{
					"text":           map[string]any{"type": "string", "minLength": 1},
					"detectedType":   str,
					"reason":         str,
					"suggestedField": str,
					"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
				},
			},
		},
		"ambiguousSegments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"label", "candidates"},
				"properties": map[string]any{
					"label":      str,
					"text":       str,
					"candidates": strList,
				},
			},
		},
		"evidence": map[string]any{
			"type":                 "object",
			"additionalProperties": str,
		},
		"implicitMappings": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"field"},
				"properties": map[string]any{
					"field":  str,
					"reason": str,
				},
			},
		},
		"thoughtProcess": str,
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func object(props map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
