// Package rules is a deterministic, in-process extraction engine for German
// and English CVs. It needs no network access and is the default provider.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

var (
	reEmail      = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	reLinkedIn   = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/in/[\w%-]+/?`)
	rePhone      = regexp.MustCompile(`(?:\+|00)\d{2}[\s./-]?(?:\(0\))?\d{2,3}(?:[\s./-]?\d{2,4}){2,3}|\b0\d{2}[\s./-]?\d{3}(?:[\s./-]?\d{2}){2}\b`)
	rePostalCity = regexp.MustCompile(`(?:^|,\s*|\s)(?:CH-)?(\d{4})\s+([\p{L}][\p{L} .'-]*?)(?:\s+([A-Z]{2}))?\s*$`)
	reStreet     = regexp.MustCompile(`^[\p{L}][\p{L} .'-]*?\s\d+[a-zA-Z]?$`)
	reLabel      = regexp.MustCompile(`^\s*([\p{L}][\p{L}\d .'/()+-]{0,39}?)\s*:\s*(.*)$`)
	rePageMarker = regexp.MustCompile(`^--- page \d+ ---$`)
	reDateRange  = regexp.MustCompile(`(?i)(` + datePoint + `)\s*(?:-|–|bis|to)\s*(` + datePoint + `|heute|present|jetzt|aktuell|today|now)`)
	reSince      = regexp.MustCompile(`(?i)\b(?:seit|since)\s+(` + datePoint + `)`)
	reListSplit  = regexp.MustCompile(`\s*[,;•|·]\s*`)
	reSwissCode  = regexp.MustCompile(`^[A-Z]{2}$`)
)

// datePoint is "2019", "03/2019", "03.2019" or "März 2019".
const datePoint = `(?:\d{1,2}[./])?\d{4}|(?:jan|feb|mär|mar|mrz|apr|mai|may|jun|jul|aug|sep|okt|oct|nov|dez|dec)\p{L}*\.?\s+\d{4}`

type Engine struct {
	enabled bool
	log     *zap.Logger
}

func New(enabled bool, log *zap.Logger) *Engine {
	return &Engine{enabled: enabled, log: logger.OrNop(log)}
}

func (e *Engine) Name() string     { return "rules" }
func (e *Engine) Enabled() bool    { return e.enabled }
func (e *Engine) Configured() bool { return true }

func (e *Engine) Extract(ctx context.Context, req llm.Request) llm.Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return llm.Failed(common.CodeEngineFailed, err.Error())
	}
	p := newParser(req.Learning)
	p.run(req.Packed.Text)

	res := llm.Result{
		Success:                 true,
		Data:                    p.data,
		ImplicitMappingsApplied: p.implicit,
		LatencyMs:               time.Since(start).Milliseconds(),
		ThoughtProcess:          strings.Join(p.notes, "; "),
	}
	e.log.Debug("llm.rules.extract.ok",
		zap.Int("lines", p.lines),
		zap.Int("skills", len(p.data.Skills)),
		zap.Int("unmapped", len(p.data.UnmappedSegments)),
		zap.Int("ambiguous", len(p.data.AmbiguousSegments)),
		zap.Int("implicit", len(p.implicit)),
	)
	return res
}

type parser struct {
	data     *llm.ExtractedData
	implicit []llm.ImplicitMapping
	notes    []string
	synonyms map[string]string

	section  section
	lines    int
	lastLine string
	exp      *llm.ExperienceEntry
	edu      *llm.EducationEntry

	// nationality came from an origin label and yields to an explicit one
	nationalityInferred bool
}

func newParser(lc llm.LearningContext) *parser {
	syn := make(map[string]string, len(lc.FieldSynonyms))
	for k, v := range lc.FieldSynonyms {
		syn[normalize.FoldKey(k)] = v
	}
	return &parser{data: &llm.ExtractedData{}, synonyms: syn}
}

func (p *parser) run(text string) {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || rePageMarker.MatchString(line) {
			continue
		}
		p.lines++
		p.line(line)
		p.lastLine = line
	}
	p.flushEntries()
}

func (p *parser) line(line string) {
	if sec, ok := sectionHeaders[normalize.FoldKey(strings.TrimSuffix(line, ":"))]; ok {
		p.flushEntries()
		p.section = sec
		return
	}

	p.scanContacts(line)

	if m := reLabel.FindStringSubmatch(line); m != nil && !strings.HasPrefix(m[2], "//") {
		if p.labelled(line, m[1], strings.TrimSpace(m[2])) {
			return
		}
	}

	if p.inSection(line) {
		return
	}

	if p.scanAddress(line) || p.scanName(line) || contactLine(line) {
		return
	}
	p.unplaced(line)
}

// unplaced reports a free-standing line outside the list sections as unmapped.
func (p *parser) unplaced(line string) {
	if p.section != sectionNone && p.section != sectionPersonal {
		return
	}
	if strings.HasSuffix(line, ":") {
		return
	}
	if _, isTitle := documentTitles[normalize.FoldKey(line)]; isTitle {
		return
	}
	p.data.UnmappedSegments = append(p.data.UnmappedSegments, llm.UnmappedSegment{
		Text:         line,
		DetectedType: detectType("", line),
		Reason:       "line matched no known field",
	})
}

// dropUnmapped takes back the last unmapped segment when a later line
// claimed it, e.g. a street followed by its postal code.
func (p *parser) dropUnmapped(line string) {
	n := len(p.data.UnmappedSegments)
	if n > 0 && p.data.UnmappedSegments[n-1].Text == line {
		p.data.UnmappedSegments = p.data.UnmappedSegments[:n-1]
	}
}

func contactLine(line string) bool {
	return reEmail.MatchString(line) || reLinkedIn.MatchString(line) || rePhone.MatchString(line)
}

// inSection feeds line to the open list section, if any.
func (p *parser) inSection(line string) bool {
	switch p.section {
	case sectionLanguages:
		p.addLanguages(line, line)
	case sectionSkills:
		p.addSkills(line, line)
	case sectionCertificates:
		p.data.Certificates = append(p.data.Certificates, line)
		p.data.SetEvidence(constants.FieldCertificates, line)
	case sectionExperience:
		p.experienceLine(line)
	case sectionEducation:
		p.educationLine(line)
	default:
		return false
	}
	return true
}

// labelled handles "Label: value" lines and reports whether the line was consumed.
func (p *parser) labelled(line, label, value string) bool {
	key := normalize.FoldKey(label)
	if field, ok := p.synonyms[key]; ok {
		p.notes = append(p.notes, fmt.Sprintf("label %q mapped to %s by tenant synonym", label, field))
		return p.assign(field, value, line)
	}
	if field, ok := builtinLabels[key]; ok {
		return p.assign(field, value, line)
	}
	if cands, ok := ambiguousLabels[key]; ok && value != "" {
		p.data.AmbiguousSegments = append(p.data.AmbiguousSegments, llm.AmbiguousSegment{
			Label:      label,
			Text:       line,
			Candidates: append([]string(nil), cands...),
		})
		return true
	}
	if _, ok := originLabels[key]; ok && value != "" {
		if p.data.Nationality == "" {
			p.data.Nationality = value
			p.data.SetEvidence(constants.FieldNationality, line)
			p.nationalityInferred = true
			p.implicit = append(p.implicit, llm.ImplicitMapping{
				Field:  constants.FieldNationality,
				Reason: fmt.Sprintf("nationality inferred from origin label %q", label),
			})
		}
		return true
	}
	if sec, ok := sectionHeaders[key]; ok {
		// "Berufserfahrung: Engineer bei X seit 2019"
		p.flushEntries()
		p.section = sec
		if value != "" {
			p.inSection(value)
		}
		return true
	}
	if value == "" || (p.section != sectionNone && p.section != sectionPersonal) {
		return false
	}
	p.data.UnmappedSegments = append(p.data.UnmappedSegments, llm.UnmappedSegment{
		Text:         line,
		DetectedType: detectType(label, value),
		Reason:       fmt.Sprintf("no field known for label %q", label),
	})
	return true
}

func (p *parser) assign(field, value, line string) bool {
	if value == "" {
		// "Sprachen:" style headers without inline values
		switch field {
		case constants.FieldLanguages:
			p.flushEntries()
			p.section = sectionLanguages
			return true
		case constants.FieldSkills:
			p.flushEntries()
			p.section = sectionSkills
			return true
		case constants.FieldCertificates:
			p.flushEntries()
			p.section = sectionCertificates
			return true
		}
		return false
	}
	d := p.data
	setOnce := func(dst *string, f string) {
		if *dst == "" {
			*dst = value
			d.SetEvidence(f, line)
		}
	}
	switch field {
	case fieldFullName:
		if d.Person.FirstName == "" && d.Person.LastName == "" {
			d.Person.FirstName, d.Person.LastName = splitName(value)
			d.Person.Evidence = line
			d.SetEvidence(constants.FieldFirstName, line)
			d.SetEvidence(constants.FieldLastName, line)
		}
	case constants.FieldFirstName:
		setOnce(&d.Person.FirstName, field)
		d.Person.Evidence = firstNonEmpty(d.Person.Evidence, line)
	case constants.FieldLastName:
		setOnce(&d.Person.LastName, field)
		d.Person.Evidence = firstNonEmpty(d.Person.Evidence, line)
	case constants.FieldEmail:
		if m := reEmail.FindString(value); m != "" {
			value = m
		}
		setOnce(&d.Contact.Email, field)
	case constants.FieldPhone:
		setOnce(&d.Contact.Phone, field)
		p.checkPhone()
	case constants.FieldLinkedIn:
		setOnce(&d.Contact.LinkedIn, field)
	case fieldAddress:
		p.parseAddressValue(value, line)
	case constants.FieldStreet:
		setOnce(&d.Contact.Address.Street, field)
	case constants.FieldPostalCode:
		setOnce(&d.Contact.Address.PostalCode, field)
	case constants.FieldCity:
		setOnce(&d.Contact.Address.City, field)
	case constants.FieldCanton:
		setOnce(&d.Contact.Address.Canton, field)
	case constants.FieldNationality:
		if p.nationalityInferred {
			p.overrideNationality(value, line)
			break
		}
		setOnce(&d.Nationality, field)
	case constants.FieldBirthdate:
		setOnce(&d.Birthdate, field)
		if normalize.DecomposeDate(value).Year == "" && !d.IsFlagged(field) {
			d.FlaggedFields = append(d.FlaggedFields, field)
		}
	case constants.FieldDrivingLicense:
		setOnce(&d.DrivingLicense, field)
	case constants.FieldWorkPermit:
		setOnce(&d.WorkPermit, field)
	case constants.FieldLanguages:
		p.addLanguages(value, line)
	case constants.FieldSkills:
		p.addSkills(value, line)
	case constants.FieldCertificates:
		for _, c := range reListSplit.Split(value, -1) {
			if c = strings.TrimSpace(c); c != "" {
				d.Certificates = append(d.Certificates, c)
			}
		}
		d.SetEvidence(field, line)
	default:
		return false
	}
	return true
}

// overrideNationality replaces a nationality inferred from an origin label
// with an explicitly labelled one and withdraws the implicit mapping.
func (p *parser) overrideNationality(value, line string) {
	p.data.Nationality = value
	delete(p.data.Evidence, constants.FieldNationality)
	p.data.SetEvidence(constants.FieldNationality, line)
	p.nationalityInferred = false

	kept := p.implicit[:0]
	for _, m := range p.implicit {
		if m.Field != constants.FieldNationality {
			kept = append(kept, m)
		}
	}
	p.implicit = kept
	p.notes = append(p.notes, "explicit nationality label replaced the inferred origin")
}

func (p *parser) scanContacts(line string) {
	d := p.data
	if d.Contact.Email == "" {
		if m := reEmail.FindString(line); m != "" {
			d.Contact.Email = m
			d.SetEvidence(constants.FieldEmail, line)
		}
	}
	if d.Contact.LinkedIn == "" {
		if m := reLinkedIn.FindString(line); m != "" {
			d.Contact.LinkedIn = m
			d.SetEvidence(constants.FieldLinkedIn, line)
		}
	}
	if d.Contact.Phone == "" && p.section != sectionExperience && p.section != sectionEducation {
		if m := rePhone.FindString(line); m != "" {
			d.Contact.Phone = strings.TrimSpace(m)
			d.SetEvidence(constants.FieldPhone, line)
			p.checkPhone()
		}
	}
}

func (p *parser) checkPhone() {
	digits := 0
	for _, r := range p.data.Contact.Phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if (digits < 10 || digits > 13) && !p.data.IsFlagged(constants.FieldPhone) {
		p.data.FlaggedFields = append(p.data.FlaggedFields, constants.FieldPhone)
	}
}

// scanAddress recognises "8001 Zürich" lines, taking the previous line as street
// when it looks like one.
func (p *parser) scanAddress(line string) bool {
	a := &p.data.Contact.Address
	if a.PostalCode != "" || strings.Contains(line, "@") {
		return false
	}
	m := rePostalCity.FindStringSubmatchIndex(line)
	if m == nil {
		return false
	}
	a.PostalCode = line[m[2]:m[3]]
	a.City = strings.TrimSpace(line[m[4]:m[5]])
	if m[6] >= 0 {
		a.Canton = line[m[6]:m[7]]
	}
	p.data.SetEvidence(constants.FieldPostalCode, line)
	p.data.SetEvidence(constants.FieldCity, line)
	if a.Canton != "" {
		p.data.SetEvidence(constants.FieldCanton, line)
	}

	prefix := strings.TrimRight(strings.TrimSpace(line[:m[0]]), ",")
	switch {
	case prefix != "" && reStreet.MatchString(prefix):
		a.Street = prefix
		p.data.SetEvidence(constants.FieldStreet, line)
	case a.Street == "" && reStreet.MatchString(p.lastLine):
		a.Street = p.lastLine
		p.data.SetEvidence(constants.FieldStreet, p.lastLine)
		p.dropUnmapped(p.lastLine)
	}
	return true
}

func (p *parser) parseAddressValue(value, line string) {
	a := &p.data.Contact.Address
	parts := strings.Split(value, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if m := rePostalCity.FindStringSubmatch(part); m != nil && a.PostalCode == "" {
			a.PostalCode, a.City = m[1], strings.TrimSpace(m[2])
			if reSwissCode.MatchString(m[3]) {
				a.Canton = m[3]
				p.data.SetEvidence(constants.FieldCanton, line)
			}
			p.data.SetEvidence(constants.FieldPostalCode, line)
			p.data.SetEvidence(constants.FieldCity, line)
			continue
		}
		if a.Street == "" && reStreet.MatchString(part) {
			a.Street = part
			p.data.SetEvidence(constants.FieldStreet, line)
		}
	}
}

// scanName takes the first heading-like line of two or three capitalised words.
func (p *parser) scanName(line string) bool {
	d := p.data
	if d.Person.FirstName != "" || d.Person.LastName != "" || (p.section != sectionNone && p.section != sectionPersonal) {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
		for _, c := range r {
			if !unicode.IsLetter(c) && c != '-' && c != '\'' {
				return false
			}
		}
	}
	if _, isTitle := documentTitles[normalize.FoldKey(line)]; isTitle {
		return false
	}
	d.Person.FirstName, d.Person.LastName = splitName(line)
	d.Person.Evidence = line
	d.SetEvidence(constants.FieldFirstName, line)
	d.SetEvidence(constants.FieldLastName, line)
	return true
}

func (p *parser) addLanguages(s, line string) {
	for _, item := range splitOutsideParens(s) {
		name, level := splitLanguage(item)
		if name == "" {
			continue
		}
		p.data.Languages = append(p.data.Languages, llm.Language{Name: name, Level: level})
		p.data.SetEvidence(constants.FieldLanguages, line)
	}
}

func (p *parser) addSkills(s, line string) {
	if i := strings.Index(s, ":"); i >= 0 && i < len(s)-1 {
		// "Programmiersprachen: Go, Python" inside a skills block
		s = s[i+1:]
	}
	for _, sk := range reListSplit.Split(s, -1) {
		if sk = strings.Trim(strings.TrimSpace(sk), "-–* "); sk != "" {
			p.data.Skills = append(p.data.Skills, sk)
		}
	}
	p.data.SetEvidence(constants.FieldSkills, line)
}

func (p *parser) experienceLine(line string) {
	start, end, rest, ok := dateSpan(line)
	if ok {
		p.flushEntries()
		title, company := splitRole(rest)
		p.exp = &llm.ExperienceEntry{Title: title, Company: company, StartDate: start, EndDate: end}
		p.data.SetEvidence(constants.FieldExperience, line)
		return
	}
	if p.exp == nil {
		return
	}
	switch {
	case p.exp.Title == "":
		p.exp.Title, p.exp.Company = splitRole(line)
	case p.exp.Company == "":
		p.exp.Company = line
	default:
		p.exp.Description = strings.TrimSpace(p.exp.Description + " " + strings.TrimLeft(line, "-–•* "))
	}
}

func (p *parser) educationLine(line string) {
	start, end, rest, ok := dateSpan(line)
	if ok {
		p.flushEntries()
		degree, inst := splitRole(rest)
		p.edu = &llm.EducationEntry{Degree: degree, Institution: inst, StartDate: start, EndDate: end}
		p.data.SetEvidence(constants.FieldEducation, line)
		return
	}
	if p.edu == nil {
		return
	}
	switch {
	case p.edu.Degree == "":
		p.edu.Degree, p.edu.Institution = splitRole(line)
	case p.edu.Institution == "":
		p.edu.Institution = line
	default:
		p.edu.Description = strings.TrimSpace(p.edu.Description + " " + strings.TrimLeft(line, "-–•* "))
	}
}

func (p *parser) flushEntries() {
	if p.exp != nil {
		p.data.Experience = append(p.data.Experience, *p.exp)
		p.exp = nil
	}
	if p.edu != nil {
		p.data.Education = append(p.data.Education, *p.edu)
		p.edu = nil
	}
}

// dateSpan finds "03/2019 - heute" or "seit 2019" and returns the remaining text.
func dateSpan(line string) (start, end, rest string, ok bool) {
	if m := reDateRange.FindStringSubmatchIndex(line); m != nil {
		start, end = line[m[2]:m[3]], line[m[4]:m[5]]
		rest = strings.TrimSpace(line[:m[0]] + " " + line[m[1]:])
		return start, end, strings.Trim(rest, ",:|–- "), true
	}
	if m := reSince.FindStringSubmatchIndex(line); m != nil {
		start = line[m[2]:m[3]]
		rest = strings.TrimSpace(line[:m[0]] + " " + line[m[1]:])
		return start, "heute", strings.Trim(rest, ",:|–- "), true
	}
	return "", "", "", false
}

// splitRole splits "Engineer bei Beispiel AG" or "Engineer, Beispiel AG".
func splitRole(s string) (role, org string) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{" bei ", " at ", " @ ", ", ", " | ", " – ", " - "} {
		if i := strings.Index(s, sep); i > 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):])
		}
	}
	return s, ""
}

func splitName(s string) (first, last string) {
	words := strings.Fields(s)
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return words[0], ""
	}
	if strings.HasSuffix(words[0], ",") {
		// "Muster, Anna"
		return strings.Join(words[1:], " "), strings.TrimSuffix(words[0], ",")
	}
	return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
}

func splitOutsideParens(s string) []string {
	var out []string
	depth, last := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',', ';', '•', '|':
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + len(string(r))
			}
		}
	}
	out = append(out, s[last:])
	return out
}

// splitLanguage reads "Deutsch (Muttersprache)", "Englisch - C1", "Französisch: gut"
// or "Italienisch Grundkenntnisse".
func splitLanguage(item string) (name, level string) {
	item = strings.TrimSpace(strings.Trim(item, "-–•* "))
	if item == "" {
		return "", ""
	}
	if i := strings.IndexAny(item, "(:–-/"); i > 0 {
		name = strings.TrimSpace(item[:i])
		level = strings.TrimSpace(strings.Trim(item[i:], "(:–-/) "))
		return name, level
	}
	fields := strings.Fields(item)
	return fields[0], strings.Join(fields[1:], " ")
}

func detectType(label, value string) string {
	key := normalize.FoldKey(label + " " + value)
	switch {
	case containsWord(key, personalHints):
		return constants.DetectedPersonal
	case containsWord(key, credentialHints):
		return constants.DetectedCredential
	case normalize.DecomposeDate(value).Year != "" && len(strings.Fields(value)) <= 3:
		return constants.DetectedDate
	case len(reListSplit.Split(value, -1)) > 2:
		return constants.DetectedSkill
	}
	return constants.DetectedOther
}

func containsWord(key string, hints []string) bool {
	for _, tok := range strings.Fields(key) {
		for _, h := range hints {
			if strings.Contains(tok, h) {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
