package llm

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

// envelope is the full model document: extracted data plus audit side-channels.
type envelope struct {
	ExtractedData
	ImplicitMappings []ImplicitMapping `json:"implicitMappings,omitempty"`
	ThoughtProcess   string            `json:"thoughtProcess,omitempty"`
}

// Parsed is a validated model answer.
type Parsed struct {
	Data             *ExtractedData
	ImplicitMappings []ImplicitMapping
	ThoughtProcess   string
	Raw              []byte
	Sanitized        bool
}

// ParseExtraction validates model content strictly first. When lenient is set and
// strict validation fails, it sanitizes and validates again.
func ParseExtraction(content string, lenient bool, log *zap.Logger) (Parsed, error) {
	log = logger.OrNop(log)
	schema, err := CVSchema()
	if err != nil {
		return Parsed{}, err
	}

	raw := []byte(StripCodeFence(content))
	out := Parsed{Raw: raw}
	if err := ValidateJSON(schema, raw); err != nil {
		if !lenient {
			return out, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, changed, sErr := NormalizeAndSanitizeJSON(raw, log)
		if sErr != nil {
			return out, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateJSON(schema, cleaned); vErr != nil {
			log.Error("llm.extract.schema_validation_failed",
				zap.Error(vErr),
				zap.String("content", logger.TruncateForLog(string(cleaned), 512)),
			)
			return out, fmt.Errorf("schema validation failed: %w", vErr)
		}
		log.Warn("llm.extract.lenient_sanitize_applied", zap.Strings("changed", changed))
		out.Raw = cleaned
		out.Sanitized = true
	}

	var env envelope
	if err := json.Unmarshal(out.Raw, &env); err != nil {
		return out, fmt.Errorf("unmarshal fields: %w", err)
	}
	data := env.ExtractedData
	out.Data = &data
	out.ImplicitMappings = env.ImplicitMappings
	out.ThoughtProcess = env.ThoughtProcess
	return out, nil
}
