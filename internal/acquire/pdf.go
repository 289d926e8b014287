package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
)

// PDFAcquirer reads the text layer and falls back to OCR for scans.
type PDFAcquirer struct {
	ocr    OCR
	logger *zap.Logger
}

func NewPDFAcquirer(engine OCR, log *zap.Logger) *PDFAcquirer {
	return &PDFAcquirer{ocr: engine, logger: log}
}

func (a *PDFAcquirer) Acquire(ctx context.Context, buf []byte) (Result, error) {
	doc, err := readPDFText(buf)
	if err != nil {
		return Result{}, common.NewAppError(common.CodeDocumentUnreadable, "pdf could not be parsed", err)
	}
	res := Result{
		Text:      textOf(doc),
		PageCount: doc.PageCount,
		Method:    constants.MethodText,
		Document:  doc,
	}

	if !DetectIfScanned(res.Text) {
		return res, nil
	}
	a.logger.Info("acquire.pdf.scanned_detected",
		zap.Int("text_len", len(res.Text)),
		zap.Int("pages", res.PageCount),
	)
	if a.ocr == nil {
		return res, nil
	}

	out, err := a.ocr.OCRBytes(ctx, buf, constants.ExtPDF)
	res.Warnings = append(res.Warnings, out.Warnings...)
	if err != nil {
		// keep whatever the text layer gave us
		a.logger.Warn("acquire.pdf.ocr_failed", zap.Error(err))
		res.Warnings = append(res.Warnings, "ocr fallback failed: "+err.Error())
		return res, nil
	}
	if len(strings.TrimSpace(out.Text)) <= len(strings.TrimSpace(res.Text)) {
		a.logger.Debug("acquire.pdf.ocr_not_better", zap.Int("ocr_len", len(out.Text)))
		return res, nil
	}
	pages := res.PageCount
	if out.Pages > pages {
		pages = out.Pages
	}
	res.Document = documentFromText(out.Text, pages)
	res.Text = textOf(res.Document)
	res.PageCount = pages
	res.Method = constants.MethodOCR
	return res, nil
}

// PDFPageCount parses buf just far enough to report its page count.
func PDFPageCount(buf []byte) (int, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(buf), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

func readPDFText(buf []byte) (entity.DocumentRepresentation, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(buf), model.NewDefaultConfiguration())
	if err != nil {
		return entity.DocumentRepresentation{}, fmt.Errorf("pdfcpu read: %w", err)
	}
	doc := entity.DocumentRepresentation{PageCount: ctx.PageCount}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		doc.Pages = append(doc.Pages, entity.Page{
			Number: pageNr,
			Lines:  extractPageLines(ctx, pageNr),
		})
	}
	return doc, nil
}

func extractPageLines(ctx *model.Context, pageNr int) []string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return splitLines(ContentStreamText(data))
}
