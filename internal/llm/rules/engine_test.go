package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
)

const sampleCV = `Lebenslauf
Anna Muster
Bahnhofstrasse 12
8001 Zürich ZH
Telefon: +41 79 123 45 67
E-Mail: anna.muster@example.ch
linkedin.com/in/anna-muster
Geburtsdatum: 14.03.1990
Herkunft: Schweiz
Fahrausweis: Kat. B
Ausweis: C
Zivilstand: ledig

Sprachen
Deutsch (Muttersprache)
Englisch - C1
Französisch: gute Kenntnisse

Kenntnisse
Go, Kubernetes, PostgreSQL
Terraform

Berufserfahrung
03/2019 - heute Senior Software Engineer bei Beispiel AG
Entwicklung von Microservices
01/2015 - 02/2019
Software Engineer
Muster GmbH

Ausbildung
2010 - 2014 BSc Informatik, ETH Zürich`

func extract(t *testing.T, text string, lc llm.LearningContext) llm.Result {
	t.Helper()
	e := New(true, zap.NewNop())
	res := e.Extract(context.Background(), llm.Request{
		Packed:   acquire.PackedInput{Text: text, PageCount: 1},
		Learning: lc,
	})
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	return res
}

func TestRulesEnginePersonalData(t *testing.T) {
	d := extract(t, sampleCV, llm.LearningContext{}).Data

	assert.Equal(t, "Anna", d.Person.FirstName)
	assert.Equal(t, "Muster", d.Person.LastName)
	assert.Equal(t, "anna.muster@example.ch", d.Contact.Email)
	assert.Equal(t, "+41 79 123 45 67", d.Contact.Phone)
	assert.Equal(t, "linkedin.com/in/anna-muster", d.Contact.LinkedIn)
	assert.Equal(t, llm.Address{Street: "Bahnhofstrasse 12", PostalCode: "8001", City: "Zürich", Canton: "ZH"}, d.Contact.Address)
	assert.Equal(t, "14.03.1990", d.Birthdate)
	assert.Empty(t, d.FlaggedFields)
	assert.Equal(t, "Anna Muster", d.EvidenceFor(constants.FieldFirstName))
	assert.Equal(t, "8001 Zürich ZH", d.EvidenceFor(constants.FieldCity))
}

func TestRulesEngineImplicitNationality(t *testing.T) {
	res := extract(t, sampleCV, llm.LearningContext{})
	assert.Equal(t, "Schweiz", res.Data.Nationality)
	require.Len(t, res.ImplicitMappingsApplied, 1)
	assert.Equal(t, constants.FieldNationality, res.ImplicitMappingsApplied[0].Field)
}

func TestRulesEngineSections(t *testing.T) {
	d := extract(t, sampleCV, llm.LearningContext{}).Data

	assert.Equal(t, []llm.Language{
		{Name: "Deutsch", Level: "Muttersprache"},
		{Name: "Englisch", Level: "C1"},
		{Name: "Französisch", Level: "gute Kenntnisse"},
	}, d.Languages)
	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL", "Terraform"}, d.Skills)

	require.Len(t, d.Experience, 2)
	assert.Equal(t, llm.ExperienceEntry{
		Title: "Senior Software Engineer", Company: "Beispiel AG",
		StartDate: "03/2019", EndDate: "heute", Description: "Entwicklung von Microservices",
	}, d.Experience[0])
	assert.Equal(t, "Software Engineer", d.Experience[1].Title)
	assert.Equal(t, "Muster GmbH", d.Experience[1].Company)
	assert.Equal(t, "02/2019", d.Experience[1].EndDate)

	require.Len(t, d.Education, 1)
	assert.Equal(t, "BSc Informatik", d.Education[0].Degree)
	assert.Equal(t, "ETH Zürich", d.Education[0].Institution)
	assert.Equal(t, "2010", d.Education[0].StartDate)
}

func TestRulesEngineUnmappedAndAmbiguous(t *testing.T) {
	d := extract(t, sampleCV, llm.LearningContext{}).Data

	require.Len(t, d.UnmappedSegments, 2)
	assert.Equal(t, "Fahrausweis: Kat. B", d.UnmappedSegments[0].Text)
	assert.Equal(t, constants.DetectedCredential, d.UnmappedSegments[0].DetectedType)
	assert.Equal(t, "Zivilstand: ledig", d.UnmappedSegments[1].Text)
	assert.Equal(t, constants.DetectedPersonal, d.UnmappedSegments[1].DetectedType)

	require.Len(t, d.AmbiguousSegments, 1)
	assert.Equal(t, "Ausweis", d.AmbiguousSegments[0].Label)
	assert.Equal(t, []string{constants.FieldWorkPermit, constants.FieldDrivingLicense}, d.AmbiguousSegments[0].Candidates)
}

func TestRulesEngineExplicitNationalityWins(t *testing.T) {
	text := "Anna Muster\nHerkunft: Italien\nStaatsangehörigkeit: Schweiz"
	res := extract(t, text, llm.LearningContext{})

	assert.Equal(t, "Schweiz", res.Data.Nationality)
	assert.Equal(t, "Staatsangehörigkeit: Schweiz", res.Data.EvidenceFor(constants.FieldNationality))
	assert.Empty(t, res.ImplicitMappingsApplied)
}

func TestRulesEngineExplicitNationalityFirst(t *testing.T) {
	text := "Staatsangehörigkeit: Schweiz\nHerkunft: Italien"
	res := extract(t, text, llm.LearningContext{})

	assert.Equal(t, "Schweiz", res.Data.Nationality)
	assert.Empty(t, res.ImplicitMappingsApplied)
}

func TestRulesEngineUnlabelledLinesAreUnmapped(t *testing.T) {
	text := "Lebenslauf\n" +
		"Anna Muster\n" +
		"Bahnhofstrasse 12\n" +
		"8001 Zürich\n" +
		"anna.muster@example.ch\n" +
		"Profil:\n" +
		"Fahrausweis Kat. B\n" +
		"\n" +
		"Kenntnisse\n" +
		"Go, Kubernetes"
	d := extract(t, text, llm.LearningContext{}).Data

	require.Len(t, d.UnmappedSegments, 1)
	assert.Equal(t, "Fahrausweis Kat. B", d.UnmappedSegments[0].Text)
	assert.Equal(t, constants.DetectedCredential, d.UnmappedSegments[0].DetectedType)
	assert.Equal(t, "Bahnhofstrasse 12", d.Contact.Address.Street)
	assert.Equal(t, []string{"Go", "Kubernetes"}, d.Skills)
}

func TestRulesEngineTenantSynonym(t *testing.T) {
	lc := llm.LearningContext{FieldSynonyms: map[string]string{"fahrausweis": constants.FieldDrivingLicense}}
	d := extract(t, sampleCV, lc).Data

	assert.Equal(t, "Kat. B", d.DrivingLicense)
	for _, seg := range d.UnmappedSegments {
		assert.NotEqual(t, "Fahrausweis: Kat. B", seg.Text)
	}
}

func TestRulesEngineInlineSections(t *testing.T) {
	text := "Max Beispiel\n" +
		"Berufserfahrung: Senior Software Engineer bei Beispiel AG seit 2019\n" +
		"Kenntnisse: Go, Kubernetes\n" +
		"Sprachen: Deutsch (Muttersprache), Englisch (fliessend)\n" +
		"Tel: 079 123 45"
	res := extract(t, text, llm.LearningContext{})
	d := res.Data

	require.Len(t, d.Experience, 1)
	assert.Equal(t, "2019", d.Experience[0].StartDate)
	assert.Equal(t, "heute", d.Experience[0].EndDate)
	assert.Equal(t, "Beispiel AG", d.Experience[0].Company)
	assert.Equal(t, []string{"Go", "Kubernetes"}, d.Skills)
	assert.Len(t, d.Languages, 2)
	assert.Equal(t, "079 123 45", d.Contact.Phone)
	assert.True(t, d.IsFlagged(constants.FieldPhone), "short phone numbers are flagged")
}

func TestRulesEngineEmptyInput(t *testing.T) {
	res := extract(t, "", llm.LearningContext{})
	assert.Empty(t, res.Data.Person.FirstName)
	assert.Empty(t, res.Data.UnmappedSegments)
	assert.Empty(t, res.ImplicitMappingsApplied)
}

func TestRulesEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(true, nil).Extract(ctx, llm.Request{})
	assert.False(t, res.Success)
	assert.Equal(t, "ENGINE_FAILED", res.ErrorCode)
}
