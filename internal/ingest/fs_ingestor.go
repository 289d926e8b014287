package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

// FSIngestor reads files from the local filesystem and submits them as the
// configured operator. Identical content is submitted once per ingestor.
type FSIngestor struct {
	submitter Submitter
	operator  common.Operator
	maxBytes  int64
	logger    *zap.Logger

	mu   sync.Mutex
	seen map[string]string // content hash -> job id
}

func NewFSIngestor(s Submitter, op common.Operator, maxUploadMB int, log *zap.Logger) *FSIngestor {
	if maxUploadMB <= 0 {
		maxUploadMB = constants.DefaultMaxUploadMB
	}
	return &FSIngestor{
		submitter: s,
		operator:  op,
		maxBytes:  int64(maxUploadMB) << 20,
		logger:    logger.OrNop(log).Named("ingest"),
		seen:      map[string]string{},
	}
}

// IngestPath submits a single file.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	out.FileExt = ext
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("ingest.unsupported_extension", zap.String("path", abs), zap.String("ext", ext))
		return out, fmt.Errorf("unsupported or missing extension %q", ext)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return out, fmt.Errorf("%s is a directory", abs)
	}
	// oversize files are still submitted so the rejection is recorded with
	// its code, but they are not read into memory
	if info.Size() > i.maxBytes {
		resp := i.submitter.Submit(ctx, i.operator, jobs.SubmitRequest{FileName: filepath.Base(abs), Extension: ext, Size: info.Size()})
		out.Code, out.Err = resp.Code, resp.Message
		return out, errors.New(resp.Message)
	}

	buf, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(buf)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	if id, ok := i.seen[out.HashHex]; ok {
		i.mu.Unlock()
		out.JobID = id
		out.Deduplicated = true
		i.logger.Debug("ingest.deduplicated", zap.String("path", abs), zap.String("job_id", id))
		return out, nil
	}
	i.mu.Unlock()

	resp := i.submitter.Submit(ctx, i.operator, jobs.SubmitRequest{
		ContentBase64: base64.StdEncoding.EncodeToString(buf),
		FileName:      filepath.Base(abs),
		Extension:     ext,
		Size:          int64(len(buf)),
	})
	if !resp.Success {
		out.Code, out.Err = resp.Code, resp.Message
		i.logger.Warn("ingest.rejected", zap.String("path", abs), zap.String("code", resp.Code))
		return out, errors.New(resp.Message)
	}

	i.mu.Lock()
	i.seen[out.HashHex] = resp.JobID
	i.mu.Unlock()
	out.JobID = resp.JobID
	i.logger.Info("ingest.submitted", zap.String("path", abs), zap.String("job_id", resp.JobID))
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested and submits
// each allowed file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || isPartial(path) || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			if r.Err == "" {
				r.Err = err.Error()
			}
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		if r.Deduplicated {
			stats.Deduplicated++
		} else {
			stats.Submitted++
		}
		return nil
	})

	i.logger.Info("ingest.directory.done",
		zap.String("root", root),
		zap.Uint32("scanned", stats.Scanned),
		zap.Uint32("matched", stats.Matched),
		zap.Uint32("submitted", stats.Submitted),
		zap.Uint32("deduplicated", stats.Deduplicated),
		zap.Uint32("failed", stats.Failed),
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
