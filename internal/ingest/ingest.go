// Package ingest feeds CV files from the local filesystem into the jobs service.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
)

// Submitter is satisfied by *jobs.Service.
type Submitter interface {
	Submit(ctx context.Context, op common.Operator, req jobs.SubmitRequest) jobs.SubmitResponse
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	JobID        string
	Deduplicated bool
	HashHex      string
	FileExt      string
	Code         string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Submitted    uint32
	Deduplicated uint32
	Failed       uint32
}
