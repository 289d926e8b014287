package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

var reCodeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFence removes a markdown fence some models wrap JSON in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := reCodeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

var (
	topStrings  = []string{"nationality", "birthdate", "drivingLicense", "workPermit", "thoughtProcess"}
	topLists    = []string{"skills", "certificates", "flaggedFields"}
	entryKeys   = map[string][]string{"experience": {"title", "company", "startDate", "endDate", "description"}, "education": {"degree", "institution", "startDate", "endDate", "description"}}
	allowedKeys = map[string]struct{}{
		"person": {}, "contact": {}, "nationality": {}, "birthdate": {}, "drivingLicense": {}, "workPermit": {},
		"languages": {}, "skills": {}, "certificates": {}, "experience": {}, "education": {},
		"flaggedFields": {}, "unmappedSegments": {}, "ambiguousSegments": {}, "evidence": {},
		"implicitMappings": {}, "thoughtProcess": {},
	}
	renames = map[string]string{
		"contactInfo":        "contact",
		"personal":           "person",
		"languageSkills":     "languages",
		"workExperience":     "experience",
		"flagged":            "flaggedFields",
		"unmapped":           "unmappedSegments",
		"ambiguous":          "ambiguousSegments",
		"implicit_mappings":  "implicitMappings",
		"unmapped_segments":  "unmappedSegments",
		"flagged_fields":     "flaggedFields",
		"thought_process":    "thoughtProcess",
		"implicitInferences": "implicitMappings",
	}
)

// NormalizeAndSanitizeJSON reshapes near-miss model output so it can validate:
// renames known synonyms, coerces scalar types, drops null and empty values and
// removes unknown keys. It returns the cleaned document and what was changed.
func NormalizeAndSanitizeJSON(raw []byte, log *zap.Logger) ([]byte, []string, error) {
	log = logger.OrNop(log)

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	for from, to := range renames {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}

	for k := range m {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	for _, k := range topStrings {
		if !setString(m, k) {
			changed = append(changed, k+"(empty)")
		}
	}
	for _, k := range topLists {
		if v, ok := m[k]; ok {
			if list := stringList(v); len(list) > 0 {
				m[k] = list
			} else {
				delete(m, k)
				changed = append(changed, k+"(empty)")
			}
		}
	}

	m["person"] = cleanObject(m["person"], "firstName", "lastName", "evidence")
	contact := cleanObject(m["contact"], "email", "phone", "linkedin")
	if c, ok := m["contact"].(map[string]any); ok {
		contact["address"] = cleanObject(c["address"], "street", "postalCode", "city", "canton")
	}
	m["contact"] = contact

	for k, fields := range entryKeys {
		if v, ok := m[k]; ok {
			entries := cleanEntries(v, fields...)
			if len(entries) == 0 {
				delete(m, k)
				continue
			}
			m[k] = entries
		}
	}

	if v, ok := m["languages"]; ok {
		var langs []any
		for _, item := range cast.ToSlice(v) {
			switch t := item.(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					langs = append(langs, map[string]any{"name": s})
				}
			default:
				obj := cleanObject(t, "name", "level")
				if _, ok := obj["name"]; ok {
					langs = append(langs, obj)
				}
			}
		}
		setList(m, "languages", langs)
	}

	if v, ok := m["unmappedSegments"]; ok {
		var segs []any
		for _, item := range cast.ToSlice(v) {
			obj := cleanObject(item, "text", "detectedType", "reason", "suggestedField")
			if _, ok := obj["text"]; !ok {
				continue
			}
			if src, ok := item.(map[string]any); ok {
				if c, err := cast.ToFloat64E(src["confidence"]); err == nil {
					obj["confidence"] = clamp01(c)
				}
			}
			segs = append(segs, obj)
		}
		setList(m, "unmappedSegments", segs)
	}

	if v, ok := m["ambiguousSegments"]; ok {
		var segs []any
		for _, item := range cast.ToSlice(v) {
			obj := cleanObject(item, "label", "text")
			src, _ := item.(map[string]any)
			cands := stringList(src["candidates"])
			if _, ok := obj["label"]; !ok || len(cands) == 0 {
				continue
			}
			obj["candidates"] = cands
			segs = append(segs, obj)
		}
		setList(m, "ambiguousSegments", segs)
	}

	if v, ok := m["implicitMappings"]; ok {
		var mappings []any
		for _, item := range cast.ToSlice(v) {
			obj := cleanObject(item, "field", "reason")
			if _, ok := obj["field"]; ok {
				mappings = append(mappings, obj)
			}
		}
		setList(m, "implicitMappings", mappings)
	}

	if v, ok := m["evidence"]; ok {
		ev := map[string]any{}
		for k, val := range cast.ToStringMap(v) {
			if s := strings.TrimSpace(cast.ToString(val)); s != "" {
				ev[k] = s
			}
		}
		m["evidence"] = ev
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		log.Warn("llm.extract.normalize_sanitize", zap.Strings("changed", changed))
	}
	return out, changed, nil
}

// setString coerces m[k] to a trimmed string, deleting it when empty.
// It returns false when a present key had to be dropped.
func setString(m map[string]any, k string) bool {
	v, ok := m[k]
	if !ok {
		return true
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" || strings.EqualFold(s, "null") {
		delete(m, k)
		return false
	}
	m[k] = s
	return true
}

func setList(m map[string]any, k string, list []any) {
	if len(list) == 0 {
		delete(m, k)
		return
	}
	m[k] = list
}

func cleanObject(v any, keys ...string) map[string]any {
	src, _ := v.(map[string]any)
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if val, ok := src[k]; ok {
			if s := strings.TrimSpace(cast.ToString(val)); s != "" && !strings.EqualFold(s, "null") {
				out[k] = s
			}
		}
	}
	return out
}

func cleanEntries(v any, keys ...string) []any {
	var out []any
	for _, item := range cast.ToSlice(v) {
		obj := cleanObject(item, keys...)
		if len(obj) > 0 {
			out = append(out, obj)
		}
	}
	return out
}

func stringList(v any) []string {
	if s, ok := v.(string); ok {
		v = strings.Split(s, ",")
	}
	var out []string
	for _, item := range cast.ToStringSlice(v) {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
