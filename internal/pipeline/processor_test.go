package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/acquire"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/llm/rules"
)

const cvText = `Anna Muster
Bahnhofstrasse 12
8001 Zürich
E-Mail: anna.muster@example.ch
Telefon: +41 79 123 45 67
Fahrausweis: Kat. B

Kenntnisse
Go, Kubernetes, Cobol`

type fakeAcquirer struct {
	res acquire.Result
	err error
}

func (f fakeAcquirer) Acquire(context.Context, []byte, string, int64) (acquire.Result, error) {
	return f.res, f.err
}

func textResult(text string, pages int, method string) acquire.Result {
	doc := entity.DocumentRepresentation{PageCount: pages}
	doc.Pages = append(doc.Pages, entity.Page{Number: 1})
	doc.Pages[0].Lines = splitNonEmpty(text)
	return acquire.Result{Text: text, PageCount: pages, Method: method, Document: doc}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

type fakeEngine struct {
	enabled, configured bool
	result              llm.Result
	calls               int
	lastReq             llm.Request
}

func (f *fakeEngine) Name() string     { return "fake" }
func (f *fakeEngine) Enabled() bool    { return f.enabled }
func (f *fakeEngine) Configured() bool { return f.configured }
func (f *fakeEngine) Extract(_ context.Context, req llm.Request) llm.Result {
	f.calls++
	f.lastReq = req
	return f.result
}

type fakeLearning struct {
	lc       llm.LearningContext
	enriched int
}

func (f *fakeLearning) LearningContext(context.Context, string) llm.LearningContext { return f.lc }
func (f *fakeLearning) Enrich(_ context.Context, _ string, d *entity.Draft) {
	f.enriched++
	for i := range d.UnmappedItems {
		d.UnmappedItems[i].SuggestedTargets = append(d.UnmappedItems[i].SuggestedTargets,
			entity.SuggestedTarget{Field: constants.FieldDrivingLicense, Origin: entity.OriginLearning, Confidence: constants.ConfidenceHigh})
	}
}

type fakeSkills []string

func (f fakeSkills) ListCanonical(context.Context) ([]string, error) { return f, nil }

func newJob() *entity.ExtractionJob {
	return &entity.ExtractionJob{ID: uuid.New(), TenantID: "acme", FileName: "cv.pdf", FileType: "pdf", FileSize: 100}
}

func cfg() Config {
	return Config{MaxPages: 20, MinTextChars: 10, PackMaxChars: 12000, Locale: common.LocaleDE}
}

func TestRunWithRulesEngine(t *testing.T) {
	learning := &fakeLearning{}
	p := NewProcessor(fakeAcquirer{res: textResult(cvText, 1, constants.MethodText)},
		rules.New(true, nil), learning, fakeSkills{"Go", "Kubernetes"}, cfg(), nil)

	d, ae := p.Run(context.Background(), newJob(), []byte("%PDF"))
	require.Nil(t, ae)
	assert.Equal(t, constants.MethodText, d.Metadata.ExtractionMethod)
	assert.Equal(t, 1, d.Metadata.PageCount)
	assert.Equal(t, "cv.pdf", d.Metadata.FileName)

	email := d.Field(constants.FieldEmail)
	require.NotNil(t, email)
	assert.Equal(t, "anna.muster@example.ch", email.Value)
	assert.Equal(t, 1, email.Source.Page)

	skills := d.Field(constants.FieldSkills)
	require.NotNil(t, skills)
	assert.Equal(t, []string{"Go", "Kubernetes"}, skills.Value)

	assert.Equal(t, 1, learning.enriched)
	require.NotEmpty(t, d.UnmappedItems)
	assert.Equal(t, entity.OriginLearning, d.UnmappedItems[0].SuggestedTargets[len(d.UnmappedItems[0].SuggestedTargets)-1].Origin)
}

func TestRunEmptyDocumentCompletes(t *testing.T) {
	engine := &fakeEngine{enabled: true, configured: true}
	p := NewProcessor(fakeAcquirer{res: textResult("", 1, constants.MethodOCR)}, engine, &fakeLearning{}, fakeSkills{}, cfg(), nil)

	d, ae := p.Run(context.Background(), newJob(), nil)
	require.Nil(t, ae)
	assert.True(t, d.IsEmpty())
	assert.Equal(t, []entity.FilledField{}, d.FilledFields)
	assert.Equal(t, constants.MethodOCR, d.Metadata.ExtractionMethod)
	assert.Zero(t, engine.calls)
}

func TestRunPageLimit(t *testing.T) {
	engine := &fakeEngine{enabled: true, configured: true}
	run := func(pages int) *common.AppError {
		p := NewProcessor(fakeAcquirer{res: textResult(cvText, pages, constants.MethodText)}, engine, &fakeLearning{}, fakeSkills{}, cfg(), nil)
		_, ae := p.Run(context.Background(), newJob(), nil)
		return ae
	}
	engine.result = llm.Result{Success: true, Data: &llm.ExtractedData{}}
	assert.Nil(t, run(20))
	assert.Equal(t, 1, engine.calls)

	ae := run(21)
	require.NotNil(t, ae)
	assert.Equal(t, common.CodeTooManyPages, ae.Code)
	assert.Equal(t, 1, engine.calls)
}

func TestRunEngineGate(t *testing.T) {
	cases := []struct {
		name   string
		engine *fakeEngine
		code   string
	}{
		{"disabled", &fakeEngine{enabled: false, configured: true}, common.CodeEngineDisabled},
		{"not configured", &fakeEngine{enabled: true, configured: false}, common.CodeEngineNotConfigured},
		{"failure", &fakeEngine{enabled: true, configured: true, result: llm.Failed(common.CodeEngineFailed, "vendor 500")}, common.CodeEngineFailed},
		{"failure without code", &fakeEngine{enabled: true, configured: true, result: llm.Result{Error: "boom"}}, common.CodeEngineFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProcessor(fakeAcquirer{res: textResult(cvText, 1, constants.MethodText)}, tc.engine, &fakeLearning{}, fakeSkills{}, cfg(), nil)
			d, ae := p.Run(context.Background(), newJob(), nil)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.True(t, d.IsEmpty())
			assert.Equal(t, constants.MethodText, d.Metadata.ExtractionMethod)
		})
	}
}

func TestRunAcquireFailure(t *testing.T) {
	engine := &fakeEngine{enabled: true, configured: true}
	acq := fakeAcquirer{err: common.NewAppError(common.CodeDocumentUnreadable, "broken", nil)}
	p := NewProcessor(acq, engine, &fakeLearning{}, fakeSkills{}, cfg(), nil)

	d, ae := p.Run(context.Background(), newJob(), nil)
	require.NotNil(t, ae)
	assert.Equal(t, common.CodeDocumentUnreadable, ae.Code)
	assert.True(t, d.IsEmpty())
	assert.Zero(t, engine.calls)
}

func TestRunPassesLearningContext(t *testing.T) {
	engine := &fakeEngine{enabled: true, configured: true, result: llm.Result{Success: true, Data: &llm.ExtractedData{Skills: []string{"k8s"}}}}
	learning := &fakeLearning{lc: llm.LearningContext{SkillAliases: map[string]string{"k8s": "Kubernetes"}}}
	p := NewProcessor(fakeAcquirer{res: textResult(cvText, 1, constants.MethodText)}, engine, learning, fakeSkills{"Kubernetes"}, cfg(), nil)

	d, ae := p.Run(context.Background(), newJob(), nil)
	require.Nil(t, ae)
	assert.Equal(t, "Kubernetes", engine.lastReq.Learning.SkillAliases["k8s"])
	assert.Contains(t, engine.lastReq.Packed.Text, "Anna Muster")
	require.NotNil(t, d.Field(constants.FieldSkills))
	assert.Equal(t, []string{"Kubernetes"}, d.Field(constants.FieldSkills).Value)
}
