package ingest

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []jobs.SubmitRequest
}

func (r *recordingSubmitter) Submit(_ context.Context, _ common.Operator, req jobs.SubmitRequest) jobs.SubmitResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if req.ContentBase64 == "" {
		return jobs.SubmitResponse{Code: common.CodeFileTooLarge, Message: "too large"}
	}
	return jobs.SubmitResponse{Success: true, JobID: "job-" + req.FileName}
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

var operator = common.Operator{UserID: "watcher", TenantID: "acme"}

func TestIngestPathSubmitsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Anna CV.docx")
	write(t, path, "PK\x03\x04 docx")

	sub := &recordingSubmitter{}
	ing := NewFSIngestor(sub, operator, 1, nil)

	res, err := ing.IngestPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "job-Anna CV.docx", res.JobID)
	assert.Equal(t, "docx", res.FileExt)
	assert.Len(t, res.HashHex, 64)

	require.Equal(t, 1, sub.count())
	raw, err := base64.StdEncoding.DecodeString(sub.reqs[0].ContentBase64)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04 docx", string(raw))

	// same bytes again are not resubmitted
	res, err = ing.IngestPath(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Deduplicated)
	assert.Equal(t, 1, sub.count())
}

func TestIngestPathRejections(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "notes.txt"), "hello")
	write(t, filepath.Join(dir, "big.pdf"), string(make([]byte, 2<<20)))

	sub := &recordingSubmitter{}
	ing := NewFSIngestor(sub, operator, 1, nil)

	_, err := ing.IngestPath(context.Background(), filepath.Join(dir, "notes.txt"))
	require.Error(t, err)
	assert.Zero(t, sub.count())

	res, err := ing.IngestPath(context.Background(), filepath.Join(dir, "big.pdf"))
	require.Error(t, err)
	assert.Equal(t, common.CodeFileTooLarge, res.Code)
	require.Equal(t, 1, sub.count())
	assert.Empty(t, sub.reqs[0].ContentBase64)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.pdf"), "%PDF-a")
	write(t, filepath.Join(dir, "nested", "b.png"), "png-b")
	write(t, filepath.Join(dir, "nested", "copy.pdf"), "%PDF-a")
	write(t, filepath.Join(dir, ".hidden", "c.pdf"), "%PDF-c")
	write(t, filepath.Join(dir, "~$draft.docx"), "lock")
	write(t, filepath.Join(dir, "readme.md"), "x")

	sub := &recordingSubmitter{}
	ing := NewFSIngestor(sub, operator, 1, nil)

	results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Submitted)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Zero(t, stats.Failed)

	_, _, err = ing.IngestDirectory(context.Background(), " ", true)
	require.Error(t, err)
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "existing.pdf"), "%PDF")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(dir, "existing.pdf"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit")
	}

	write(t, filepath.Join(dir, "ignored.txt"), "x")
	write(t, filepath.Join(dir, "new.docx"), "PK\x03\x04")

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(dir, "new.docx"), p)
	case <-time.After(3 * time.Second):
		t.Fatal("new file not emitted")
	}

	cancel()
	for range events {
	}
}

func TestStartWatcherNeedsRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	require.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.True(t, AllowedExt(".PDF"))
	assert.True(t, AllowedExt("jpeg"))
	assert.False(t, AllowedExt("txt"))
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("."))
	assert.True(t, isPartial("/x/cv.pdf.part"))
}
