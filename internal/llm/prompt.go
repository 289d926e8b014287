package llm

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/cv-autofill/constants"
)

// BuildSystemPrompt composes the extraction rules, the target vocabulary and
// everything the tenant's feedback has taught us.
func BuildSystemPrompt(req Request) string {
	parts := []string{
		"You are a CV (resume) parser for a Swiss recruiting agency. Return ONLY JSON that matches the provided JSON Schema.",
		"CVs are mostly German or English. Copy values as written; do not translate names, companies or institutions.",
		"Split the postal address into street, postalCode, city and canton. Swiss postal codes have 4 digits.",
		"For languages, give the language name and the level exactly as written (e.g. 'Muttersprache', 'C1', 'fliessend').",
		"For experience and education, keep dates as written (e.g. '03/2019', 'März 2019', 'heute').",
		"List every skill mention in 'skills' as a short name.",
		"Put field names you are unsure about in 'flaggedFields'. Allowed field names: " + strings.Join(constants.TargetFields, ", ") + ".",
		"Text you cannot place goes to 'unmappedSegments' with detectedType one of date, skill, credential, personal, other and a short reason.",
		"A label that could belong to several fields goes to 'ambiguousSegments' with the candidate field names, most likely first.",
		"For each filled field, put the exact source snippet under 'evidence' keyed by field name.",
		"If you infer a field without an explicit label (e.g. nationality from an origin statement), add it to 'implicitMappings' with a reason.",
		"Never output null. If a field is not present, omit it.",
	}
	if block := buildLearningBlock(req.Learning); block != "" {
		parts = append(parts, block)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the CV text.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if req.Locale != "" {
		b.WriteString("Operator locale: ")
		b.WriteString(req.Locale)
		b.WriteString("\n")
	}
	if req.Packed.PageCount > 0 {
		b.WriteString("Pages: ")
		b.WriteString(strconv.Itoa(req.Packed.PageCount))
		b.WriteString("\n")
	}
	b.WriteString("\nCV text:\n")
	b.WriteString(strings.TrimSpace(req.Packed.Text))
	if req.Packed.Truncated {
		b.WriteString("\n…(truncated)")
	}
	return b.String()
}

// BuildPrompt joins system rules, the schema and the CV text for single-turn providers.
func BuildPrompt(req Request) string {
	return BuildSystemPrompt(req) + "\n\nJSON Schema:\n" + MustJSON(BuildCVJSONSchema()) + "\n\n" + BuildUserPrompt(req)
}

func buildLearningBlock(lc LearningContext) string {
	var parts []string
	if len(lc.FieldSynonyms) > 0 {
		parts = append(parts, "Tenant label synonyms (label -> field): "+joinPairs(lc.FieldSynonyms)+".")
	}
	if len(lc.SkillAliases) > 0 {
		parts = append(parts, "Skill aliases (alias -> canonical skill): "+joinPairs(lc.SkillAliases)+".")
	}
	if len(lc.Examples) > 0 {
		parts = append(parts, "Past operator corrections, apply the same mapping to similar text: "+MustJSON(lc.Examples))
	}
	return strings.Join(parts, " ")
}

func joinPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+" -> "+m[k])
	}
	return strings.Join(pairs, "; ")
}

func MustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
