package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/async"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/export"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, *entity.ExtractionJob, []byte) (*entity.Draft, *common.AppError) {
	return entity.EmptyDraft(entity.DraftMetadata{}), nil
}

type guardFunc func() error

func (g guardFunc) Admit(context.Context, string, string) error { return g() }

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, async.Task) error { return nil }
func (discardQueue) Shutdown(context.Context) {}

type testServer struct {
	*httptest.Server
	admit error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + filepath.Join(t.TempDir(), "server.db"),
		DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	ts := &testServer{}
	fbRepo := repository.NewFeedbackRepository(db)
	fb := feedback.NewService(fbRepo, feedback.Config{
		DefaultTenant:     "default",
		AccuracyThreshold: 0.7,
		MinSamples:        1,
		SuggestionLimit:   5,
	}, nil, feedback.WithSkillRepository(repository.NewSkillRepository(db)))
	js := jobs.NewService(repository.NewJobRepository(db), nopRunner{}, guardFunc(func() error { return ts.admit }), fb,
		jobs.Config{MaxUploadMB: 1, MaxPages: 20}, nil)
	js.AttachQueue(discardQueue{})
	ex := export.NewService(fbRepo, fb, nil)

	srv := New(js, fb, ex, db, Config{MaxUploadMB: 1, RequestTimeout: 5 * time.Second, DefaultLocale: common.LocaleDE}, nil)
	ts.Server = httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any, header ...string) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
		req.Header.Set(HeaderTenantID, "acme")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func docxUpload() jobs.SubmitRequest {
	buf := []byte("PK\x03\x04 fake docx")
	return jobs.SubmitRequest{
		ContentBase64: base64.StdEncoding.EncodeToString(buf),
		FileName:      "Lebenslauf.docx",
		Extension:     "docx",
		Size:          int64(len(buf)),
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, resp)["status"])
}

func TestSubmitAndStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/jobs", "op-1", docxUpload())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	sub := decodeBody[jobs.SubmitResponse](t, resp)
	require.True(t, sub.Success)

	resp = ts.do(t, http.MethodGet, "/api/v1/jobs/"+sub.JobID, "op-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[jobs.StatusResponse](t, resp)
	assert.Equal(t, constants.JobStatusPending, st.Status)

	resp = ts.do(t, http.MethodGet, "/api/v1/jobs/"+sub.JobID, "intruder", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", "op-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitWithoutOperatorIsLocalized(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/jobs", "", docxUpload(), "Accept-Language", "en-GB,en;q=0.8")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	sub := decodeBody[jobs.SubmitResponse](t, resp)
	assert.False(t, sub.Success)
	assert.Equal(t, common.UserMessage(common.CodeUnauthorized, common.LocaleEN), sub.Message)
}

func TestSubmitRateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.admit = common.NewAdmissionError(common.CodeRateLimited, "window", 3*time.Second)

	resp := ts.do(t, http.MethodPost, "/api/v1/jobs", "op-1", docxUpload())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "3", resp.Header.Get("Retry-After"))
	assert.Equal(t, 3, decodeBody[jobs.SubmitResponse](t, resp).RetryAfterSeconds)
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/api/v1/corrections", "op-1", "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	f := decodeBody[Failure](t, resp)
	assert.False(t, f.Success)
	assert.Equal(t, common.CodeInvalidPayload, f.Code)
	assert.NotContains(t, f.Message, "invalid character")
}

func TestCorrectionsFeedMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/corrections", "op-1", feedback.CorrectionInput{
		SourceContext:   "Telefon: 079 123 45 67",
		WrongExtraction: "079 123",
		CorrectValue:    "+41 79 123 45 67",
		CorrectField:    constants.FieldPhone,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/corrections/batch", "op-1", []feedback.CorrectionInput{
		{SourceContext: "x", CorrectValue: "B", CorrectField: constants.FieldDrivingLicense},
		{SourceContext: "x", CorrectValue: "B", CorrectField: "shoeSize"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	batch := decodeBody[batchResponse](t, resp)
	assert.Equal(t, 1, batch.Recorded)
	assert.Equal(t, 2, batch.Total)

	resp = ts.do(t, http.MethodGet, "/api/v1/metrics/fields", "op-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	acc := decodeBody[map[string]float64](t, resp)
	assert.Contains(t, acc, constants.FieldPhone)

	resp = ts.do(t, http.MethodGet, "/api/v1/metrics/problematic", "op-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decodeBody[[]string](t, resp), constants.FieldPhone)
}

func TestSegmentSuggestionsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/segments/assignments", "op-1", feedback.SegmentAssignmentInput{
		Text:          "Fahrausweis Kat. B",
		DetectedType:  "credential",
		AssignedField: constants.FieldDrivingLicense,
		AssignedValue: "B",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decodeBody[recordedResponse](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/v1/segments/suggestions", "op-1", feedback.Segment{Text: "fahrausweis kat b", DetectedType: "credential"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sugs := decodeBody[[]feedback.Suggestion](t, resp)
	require.NotEmpty(t, sugs)
	assert.Equal(t, constants.FieldDrivingLicense, sugs[0].Field)
	assert.Equal(t, rec.ID, sugs[0].AssignmentID)

	resp = ts.do(t, http.MethodPost, "/api/v1/segments/assignments/"+rec.ID.String()+"/use", "op-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDictionaryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/dictionary/synonyms", "op-1", fieldPair{Label: "Wohnort", Field: constants.FieldCity})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/dictionary/aliases", "", aliasPair{Alias: "k8s", Skill: "Kubernetes"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/dictionary/import", "op-1", "skills: [Go, SQL]\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decodeBody[feedback.ImportResult](t, resp).Skills)
}

func TestExportFeedback(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/v1/export/feedback.xlsx", "op-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(resp.Header.Get("Content-Disposition"), "feedback-acme-"))
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		common.CodeNotFound:          http.StatusNotFound,
		common.CodeFileTooLarge:      http.StatusRequestEntityTooLarge,
		common.CodeUnsupportedType:   http.StatusUnsupportedMediaType,
		common.CodeTooManyPages:      http.StatusBadRequest,
		common.CodeDailyQuota:        http.StatusTooManyRequests,
		common.CodeOCRFailed:         http.StatusUnprocessableEntity,
		common.CodePersistenceFailed: http.StatusInternalServerError,
		common.CodeAlreadyConfirmed:  http.StatusConflict,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(common.NewAppError(code, "", nil)), code)
	}
}
