package normalize

// SkillMatcher resolves raw skill mentions against a canonical list.
type SkillMatcher struct {
	canonical map[string]string // CaseKey -> canonical spelling
	aliases   map[string]string // CaseKey(alias) -> canonical name
}

// NewSkillMatcher indexes the canonical list and tenant aliases (alias -> canonical).
func NewSkillMatcher(canonical []string, aliases map[string]string) SkillMatcher {
	m := SkillMatcher{
		canonical: make(map[string]string, len(canonical)),
		aliases:   make(map[string]string, len(aliases)),
	}
	for _, c := range canonical {
		if k := CaseKey(c); k != "" {
			if _, dup := m.canonical[k]; !dup {
				m.canonical[k] = c
			}
		}
	}
	for alias, target := range aliases {
		if k := CaseKey(alias); k != "" && target != "" {
			m.aliases[k] = target
		}
	}
	return m
}

// Match returns canonical spellings of the matched mentions, de-duplicated,
// in order of first mention. Unmatched mentions are dropped.
func (m SkillMatcher) Match(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		k := CaseKey(r)
		if k == "" {
			continue
		}
		if target, ok := m.aliases[k]; ok {
			k = CaseKey(target)
		}
		c, ok := m.canonical[k]
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Size is the number of canonical skills indexed.
func (m SkillMatcher) Size() int { return len(m.canonical) }
