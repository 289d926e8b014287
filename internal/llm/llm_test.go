package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = orig })
}

func TestParseExtractionStrict(t *testing.T) {
	content := "```json\n" + `{
		"person": {"firstName": "Anna", "lastName": "Muster"},
		"contact": {"email": "anna@example.ch", "address": {"city": "Zürich"}},
		"languages": [{"name": "Deutsch", "level": "Muttersprache"}],
		"skills": ["Go"],
		"flaggedFields": ["phone"],
		"implicitMappings": [{"field": "nationality", "reason": "from origin"}],
		"evidence": {"firstName": "Anna Muster"}
	}` + "\n```"

	p, err := ParseExtraction(content, false, nil)
	require.NoError(t, err)
	assert.False(t, p.Sanitized)
	assert.Equal(t, "Anna", p.Data.Person.FirstName)
	assert.Equal(t, "Zürich", p.Data.Contact.Address.City)
	assert.True(t, p.Data.IsFlagged("phone"))
	assert.Equal(t, "Anna Muster", p.Data.EvidenceFor("firstName"))
	require.Len(t, p.ImplicitMappings, 1)
	assert.Equal(t, "nationality", p.ImplicitMappings[0].Field)
}

func TestParseExtractionLenient(t *testing.T) {
	content := `{
		"personal": {"firstName": "Anna", "lastName": null},
		"contact": {"phone": 41791234567, "address": {"postalCode": 8001}},
		"skills": "Go, Kubernetes",
		"languages": ["Deutsch", {"name": "Englisch", "level": "C1"}],
		"experience": [{"title": "Engineer", "startDate": 2019}, {}],
		"unmappedSegments": [{"text": "Fahrausweis Kat. B", "confidence": "0.8"}, {"reason": "no text"}],
		"hobbies": "climbing"
	}`

	_, err := ParseExtraction(content, false, nil)
	require.Error(t, err)

	p, err := ParseExtraction(content, true, nil)
	require.NoError(t, err)
	assert.True(t, p.Sanitized)
	d := p.Data
	assert.Equal(t, "Anna", d.Person.FirstName)
	assert.Empty(t, d.Person.LastName)
	assert.Equal(t, "41791234567", d.Contact.Phone)
	assert.Equal(t, "8001", d.Contact.Address.PostalCode)
	assert.Equal(t, []string{"Go", "Kubernetes"}, d.Skills)
	assert.Equal(t, []Language{{Name: "Deutsch"}, {Name: "Englisch", Level: "C1"}}, d.Languages)
	require.Len(t, d.Experience, 1)
	assert.Equal(t, "2019", d.Experience[0].StartDate)
	require.Len(t, d.UnmappedSegments, 1)
	assert.InDelta(t, 0.8, d.UnmappedSegments[0].Confidence, 1e-9)
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := ParseExtraction("I could not read this CV.", true, nil)
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	noSleep(t)
	calls := 0
	res := Retry(context.Background(), 2, time.Millisecond, func(context.Context) (Parsed, error) {
		calls++
		if calls < 3 {
			return Parsed{}, &StatusError{Status: 503}
		}
		return Parsed{Data: &ExtractedData{Skills: []string{"Go"}}}, nil
	})
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.RetryCount)
	assert.Equal(t, []string{"Go"}, res.Data.Skills)
}

func TestRetryStopsOnClientError(t *testing.T) {
	noSleep(t)
	calls := 0
	res := Retry(context.Background(), 5, time.Millisecond, func(context.Context) (Parsed, error) {
		calls++
		return Parsed{}, &StatusError{Status: 401, Body: "bad key"}
	})
	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, common.CodeEngineFailed, res.ErrorCode)
	assert.Contains(t, res.Error, "401")
}

func TestRetryExhausted(t *testing.T) {
	noSleep(t)
	res := Retry(context.Background(), 1, time.Millisecond, func(context.Context) (Parsed, error) {
		return Parsed{}, errors.New("schema validation failed")
	})
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.RetryCount)
}

func TestDisabledEngine(t *testing.T) {
	var e Engine = Disabled{}
	assert.False(t, e.Enabled())
	assert.False(t, e.Configured())
	assert.Equal(t, common.CodeEngineDisabled, e.Extract(context.Background(), Request{}).ErrorCode)
}

func TestBuildPromptCarriesLearning(t *testing.T) {
	req := Request{
		Packed: acquire.PackedInput{Text: "Fahrausweis: Kat. B", PageCount: 1, Truncated: true},
		Learning: LearningContext{
			FieldSynonyms: map[string]string{"fahrausweis": "drivingLicense"},
			SkillAliases:  map[string]string{"k8s": "Kubernetes"},
			Examples:      []CorrectionExample{{SourceContext: "Natel 079", CorrectValue: "079", CorrectField: "phone"}},
		},
	}
	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "fahrausweis -> drivingLicense")
	assert.Contains(t, prompt, "k8s -> Kubernetes")
	assert.Contains(t, prompt, `"correctField": "phone"`)
	assert.Contains(t, prompt, "Fahrausweis: Kat. B")
	assert.Contains(t, prompt, "(truncated)")
}

func TestCVSchemaCompiles(t *testing.T) {
	s, err := CVSchema()
	require.NoError(t, err)
	require.NoError(t, ValidateJSON(s, []byte(`{"skills":["Go"]}`)))
	assert.Error(t, ValidateJSON(s, []byte(`{"flaggedFields":["shoeSize"]}`)))
}
