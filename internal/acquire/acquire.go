package acquire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
	"github.com/joseph-ayodele/cv-autofill/internal/ocr"
)

// Result is what every acquisition path returns.
type Result struct {
	Text      string
	PageCount int
	Method    string // constants.MethodText | constants.MethodOCR
	Document  entity.DocumentRepresentation
	Warnings  []string
	Duration  time.Duration
}

// NearEmpty reports whether fewer than minChars remain after trimming.
func (r Result) NearEmpty(minChars int) bool {
	if minChars <= 0 {
		minChars = constants.MinMeaningfulChars
	}
	return len([]rune(strings.TrimSpace(r.Text))) < minChars
}

// Acquirer turns one format's bytes into text.
type Acquirer interface {
	Acquire(ctx context.Context, buf []byte) (Result, error)
}

// OCR is the recognition capability acquirers fall back to.
type OCR interface {
	OCRBytes(ctx context.Context, buf []byte, ext string) (ocr.Result, error)
}

// Dispatcher routes a buffer to the acquirer for its declared extension.
type Dispatcher struct {
	acquirers map[string]Acquirer
	logger    *zap.Logger
}

// NewDispatcher wires the PDF, DOCX and image acquirers around one OCR engine.
func NewDispatcher(engine OCR, log *zap.Logger) *Dispatcher {
	log = logger.OrNop(log)
	image := NewImageAcquirer(engine, "png", log)
	jpeg := NewImageAcquirer(engine, "jpg", log)
	return &Dispatcher{
		acquirers: map[string]Acquirer{
			constants.ExtPDF:  NewPDFAcquirer(engine, log),
			constants.ExtDOCX: NewDOCXAcquirer(log),
			constants.ExtPNG:  image,
			constants.ExtJPG:  jpeg,
			constants.ExtJPEG: jpeg,
		},
		logger: log,
	}
}

// Register replaces the acquirer for ext.
func (d *Dispatcher) Register(ext string, a Acquirer) {
	d.acquirers[constants.NormalizeExt(ext)] = a
}

// Select is the pure routing step.
func (d *Dispatcher) Select(ext string) (Acquirer, error) {
	ext = constants.NormalizeExt(ext)
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, common.NewAppError(common.CodeUnsupportedType, fmt.Sprintf("unsupported file type %q", ext), common.ErrValidation)
	}
	a, ok := d.acquirers[ext]
	if !ok {
		return nil, common.NewAppError(common.CodeUnsupportedType, fmt.Sprintf("no acquirer for %q", ext), common.ErrValidation)
	}
	return a, nil
}

// Acquire selects and runs the acquirer for ext.
func (d *Dispatcher) Acquire(ctx context.Context, buf []byte, ext string, size int64) (Result, error) {
	start := time.Now()
	a, err := d.Select(ext)
	if err != nil {
		d.logger.Warn("acquire.unsupported", zap.String("ext", ext), zap.Int64("size", size))
		return Result{}, err
	}
	if size > 0 && int64(len(buf)) != size {
		d.logger.Warn("acquire.size_mismatch", zap.Int64("declared", size), zap.Int("actual", len(buf)))
	}
	res, err := a.Acquire(ctx, buf)
	res.Duration = time.Since(start)
	if err != nil {
		d.logger.Error("acquire.failed", zap.String("ext", ext), zap.Error(err))
		return res, err
	}
	d.logger.Info("acquire.ok",
		zap.String("ext", ext),
		zap.String("method", res.Method),
		zap.Int("pages", res.PageCount),
		zap.Int("text_len", len(res.Text)),
		zap.Int64("elapsed_ms", res.Duration.Milliseconds()),
	)
	return res, nil
}

// CheckPageCount rejects documents longer than max pages.
func CheckPageCount(pages, max int) error {
	if max <= 0 {
		max = constants.DefaultMaxPages
	}
	if pages > max {
		return common.NewAppError(common.CodeTooManyPages, fmt.Sprintf("document has %d pages, maximum is %d", pages, max), common.ErrValidation)
	}
	return nil
}

// documentFromText splits page-delimited text into a DocumentRepresentation.
func documentFromText(text string, pageCount int) entity.DocumentRepresentation {
	chunks := strings.Split(text, ocr.PageBreak)
	doc := entity.DocumentRepresentation{PageCount: pageCount}
	for i, chunk := range chunks {
		doc.Pages = append(doc.Pages, entity.Page{Number: i + 1, Lines: splitLines(chunk)})
	}
	if doc.PageCount < len(doc.Pages) {
		doc.PageCount = len(doc.Pages)
	}
	return doc
}

func splitLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

func textOf(doc entity.DocumentRepresentation) string {
	var b strings.Builder
	for i, p := range doc.Pages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.Join(p.Lines, "\n"))
		for _, t := range p.Tables {
			for _, row := range t.Rows {
				b.WriteString("\n")
				b.WriteString(strings.Join(row, " | "))
			}
		}
	}
	return b.String()
}
