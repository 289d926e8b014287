// Package draft maps engine output onto reviewable profile fields.
package draft

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

// LanguageValue is one normalized language entry.
type LanguageValue struct {
	Name     string `json:"name"`
	Level    string `json:"level"`
	RawLevel string `json:"rawLevel,omitempty"`
}

type ExperienceValue struct {
	Title       string              `json:"title,omitempty"`
	Company     string              `json:"company,omitempty"`
	Start       normalize.DateParts `json:"start"`
	End         normalize.DateParts `json:"end"`
	Description string              `json:"description,omitempty"`
}

type EducationValue struct {
	Degree      string              `json:"degree,omitempty"`
	Institution string              `json:"institution,omitempty"`
	Start       normalize.DateParts `json:"start"`
	End         normalize.DateParts `json:"end"`
	Description string              `json:"description,omitempty"`
}

type options struct {
	doc      *entity.DocumentRepresentation
	dates    normalize.DateParser
	implicit []llm.ImplicitMapping
}

type Option func(*options)

// WithDocument lets the builder locate the page each snippet came from.
func WithDocument(doc entity.DocumentRepresentation) Option {
	return func(o *options) { o.doc = &doc }
}

// WithDateParser pins the clock used for "present" dates.
func WithDateParser(p normalize.DateParser) Option {
	return func(o *options) { o.dates = p }
}

// WithImplicitMappings downgrades the named fields from high to medium.
func WithImplicitMappings(m []llm.ImplicitMapping) Option {
	return func(o *options) { o.implicit = append(o.implicit, m...) }
}

// Empty is the universal fallback: no fields, only metadata.
func Empty(meta entity.DraftMetadata) *entity.Draft {
	return entity.EmptyDraft(meta)
}

// Build maps extracted data onto a draft. It is pure: the same input always
// yields the same draft.
func Build(data *llm.ExtractedData, skills normalize.SkillMatcher, meta entity.DraftMetadata, opts ...Option) *entity.Draft {
	if data == nil {
		return Empty(meta)
	}
	o := options{dates: normalize.DateParser{}}
	for _, opt := range opts {
		opt(&o)
	}
	b := &builder{data: data, opts: o, method: meta.ExtractionMethod, out: Empty(meta)}
	b.implicit = make(map[string]struct{}, len(o.implicit))
	for _, m := range o.implicit {
		b.implicit[m.Field] = struct{}{}
	}

	b.atomic(constants.FieldFirstName, data.Person.FirstName, data.Person.Evidence)
	b.atomic(constants.FieldLastName, data.Person.LastName, data.Person.Evidence)
	b.atomic(constants.FieldEmail, data.Contact.Email, "")
	b.atomic(constants.FieldPhone, data.Contact.Phone, "")
	b.atomic(constants.FieldLinkedIn, data.Contact.LinkedIn, "")

	addr := data.Contact.Address
	b.address(constants.FieldStreet, addr.Street)
	b.address(constants.FieldPostalCode, addr.PostalCode)
	b.address(constants.FieldCity, addr.City)
	b.address(constants.FieldCanton, addr.Canton)

	b.atomic(constants.FieldNationality, data.Nationality, "")
	b.atomic(constants.FieldBirthdate, data.Birthdate, "")
	b.atomic(constants.FieldDrivingLicense, data.DrivingLicense, "")
	b.atomic(constants.FieldWorkPermit, data.WorkPermit, "")

	b.languages()
	b.skills(skills)
	b.certificates()
	b.experience()
	b.education()
	b.ambiguous()
	b.unmapped()
	return b.out
}

type builder struct {
	data     *llm.ExtractedData
	opts     options
	method   string
	implicit map[string]struct{}
	out      *entity.Draft
}

func (b *builder) confidence(field string, base constants.Confidence) constants.Confidence {
	if b.data.IsFlagged(field) {
		if field == constants.FieldPhone {
			return constants.ConfidenceMedium
		}
		return constants.ConfidenceLow
	}
	if _, ok := b.implicit[field]; ok && base == constants.ConfidenceHigh {
		return constants.ConfidenceMedium
	}
	return base
}

func (b *builder) provenance(field, fallback, value string) (entity.Provenance, bool) {
	text := strings.TrimSpace(b.data.EvidenceFor(field))
	if text == "" {
		text = strings.TrimSpace(fallback)
	}
	if text == "" {
		text = strings.TrimSpace(value)
	}
	if text == "" {
		return entity.Provenance{}, false
	}
	return entity.Provenance{Text: text, Page: b.page(text), Method: b.method}, true
}

func (b *builder) page(snippet string) int {
	if b.opts.doc == nil {
		return 1
	}
	for _, p := range b.opts.doc.Pages {
		for _, ln := range p.Lines {
			if ln == "" {
				continue
			}
			if strings.Contains(ln, snippet) || strings.Contains(snippet, ln) {
				return p.Number
			}
		}
		for _, t := range p.Tables {
			for _, row := range t.Rows {
				if strings.Contains(strings.Join(row, " | "), snippet) {
					return p.Number
				}
			}
		}
	}
	return 1
}

func (b *builder) fill(field string, value any, conf constants.Confidence, src entity.Provenance) {
	b.out.FilledFields = append(b.out.FilledFields, entity.FilledField{
		TargetField: field,
		Value:       value,
		Confidence:  conf,
		Source:      src,
	})
}

func (b *builder) atomic(field, value, evidence string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	src, ok := b.provenance(field, evidence, value)
	if !ok {
		return
	}
	b.fill(field, value, b.confidence(field, constants.ConfidenceHigh), src)
}

func (b *builder) address(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	src, ok := b.provenance(field, "", value)
	if !ok {
		return
	}
	b.fill(field, value, b.confidence(field, constants.ConfidenceMedium), src)
}

func (b *builder) languages() {
	var out []LanguageValue
	for _, l := range b.data.Languages {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			continue
		}
		out = append(out, LanguageValue{
			Name:     name,
			Level:    normalize.LanguageLevel(l.Level),
			RawLevel: strings.TrimSpace(l.Level),
		})
	}
	if len(out) == 0 {
		return
	}
	src, ok := b.provenance(constants.FieldLanguages, "", joinNames(out))
	if !ok {
		return
	}
	b.fill(constants.FieldLanguages, out, b.confidence(constants.FieldLanguages, constants.ConfidenceHigh), src)
}

func (b *builder) skills(m normalize.SkillMatcher) {
	matched := m.Match(b.data.Skills)
	if len(matched) == 0 {
		return
	}
	src, ok := b.provenance(constants.FieldSkills, "", strings.Join(matched, ", "))
	if !ok {
		return
	}
	b.fill(constants.FieldSkills, matched, b.confidence(constants.FieldSkills, constants.ConfidenceHigh), src)
}

func (b *builder) certificates() {
	var out []string
	for _, c := range b.data.Certificates {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return
	}
	src, ok := b.provenance(constants.FieldCertificates, "", strings.Join(out, ", "))
	if !ok {
		return
	}
	b.fill(constants.FieldCertificates, out, b.confidence(constants.FieldCertificates, constants.ConfidenceHigh), src)
}

func (b *builder) experience() {
	var out []ExperienceValue
	for _, e := range b.data.Experience {
		if e.Title == "" && e.Company == "" && e.Description == "" {
			continue
		}
		out = append(out, ExperienceValue{
			Title:       e.Title,
			Company:     e.Company,
			Start:       b.opts.dates.Decompose(e.StartDate),
			End:         b.opts.dates.Decompose(e.EndDate),
			Description: e.Description,
		})
	}
	if len(out) == 0 {
		return
	}
	first := strings.TrimSpace(out[0].Title + " " + out[0].Company)
	src, ok := b.provenance(constants.FieldExperience, "", first)
	if !ok {
		return
	}
	b.fill(constants.FieldExperience, out, b.confidence(constants.FieldExperience, constants.ConfidenceHigh), src)
}

func (b *builder) education() {
	var out []EducationValue
	for _, e := range b.data.Education {
		if e.Degree == "" && e.Institution == "" && e.Description == "" {
			continue
		}
		out = append(out, EducationValue{
			Degree:      e.Degree,
			Institution: e.Institution,
			Start:       b.opts.dates.Decompose(e.StartDate),
			End:         b.opts.dates.Decompose(e.EndDate),
			Description: e.Description,
		})
	}
	if len(out) == 0 {
		return
	}
	first := strings.TrimSpace(out[0].Degree + " " + out[0].Institution)
	src, ok := b.provenance(constants.FieldEducation, "", first)
	if !ok {
		return
	}
	b.fill(constants.FieldEducation, out, b.confidence(constants.FieldEducation, constants.ConfidenceHigh), src)
}

func (b *builder) ambiguous() {
	for _, seg := range b.data.AmbiguousSegments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			text = strings.TrimSpace(seg.Label)
		}
		if text == "" || len(seg.Candidates) == 0 {
			continue
		}
		af := entity.AmbiguousField{
			Label:  seg.Label,
			Source: entity.Provenance{Text: text, Page: b.page(text), Method: b.method},
		}
		for i, c := range seg.Candidates {
			af.Candidates = append(af.Candidates, entity.Candidate{
				Field:  c,
				Reason: fmt.Sprintf("label %q fits %s", seg.Label, c),
				Rank:   i + 1,
			})
		}
		b.out.AmbiguousFields = append(b.out.AmbiguousFields, af)
	}
}

func (b *builder) unmapped() {
	for _, seg := range b.data.UnmappedSegments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cat, _ := constants.Canonicalize(seg.DetectedType)
		item := entity.UnmappedItem{
			Text:             text,
			Category:         cat,
			DetectedType:     seg.DetectedType,
			Reason:           seg.Reason,
			Source:           entity.Provenance{Text: text, Page: b.page(text), Method: b.method},
			SuggestedTargets: []entity.SuggestedTarget{},
		}
		if f := strings.TrimSpace(seg.SuggestedField); f != "" {
			item.SuggestedTargets = append(item.SuggestedTargets, entity.SuggestedTarget{
				Field:      f,
				Confidence: constants.BucketConfidence(seg.Confidence),
				Reason:     seg.Reason,
				Origin:     entity.OriginEngine,
			})
		}
		b.out.UnmappedItems = append(b.out.UnmappedItems, item)
	}
}

func joinNames(langs []LanguageValue) string {
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
