package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "deu+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text

	// Timeout bounds one OCR call including every page.
	Timeout time.Duration
}

type Result struct {
	Text     string
	Pages    int
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

type Option func(*Extractor)

// WithRunner swaps the exec runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, log *zap.Logger, opts ...Option) *Extractor {
	log = logger.OrNop(log)
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "deu+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: log}, logger: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OCRBytes recognizes text in an image or PDF buffer. It stages the buffer in a
// temp file because tesseract and pdftoppm only read paths.
func (e *Extractor) OCRBytes(ctx context.Context, buf []byte, ext string) (Result, error) {
	start := time.Now()
	ext = constants.NormalizeExt(ext)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "cva-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", zap.String("dir", tmpDir), zap.Error(rmErr))
		}
	}()

	path := filepath.Join(tmpDir, "input."+ext)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return Result{}, err
	}

	e.logger.Debug("ocr.start", zap.String("ext", ext), zap.Int("bytes", len(buf)))

	var res Result
	switch constants.MapExtToFormat(ext) {
	case constants.FormatPDF:
		res, err = e.extractPDF(ctx, path, tmpDir)
	case constants.FormatIMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("ocr.unsupported_extension", zap.String("extension", ext))
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}
