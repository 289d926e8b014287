package acquire

import (
	"context"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
)

// ImageAcquirer always OCRs. Recognition failures yield empty text, not an error.
type ImageAcquirer struct {
	ocr    OCR
	ext    string
	logger *zap.Logger
}

func NewImageAcquirer(engine OCR, ext string, log *zap.Logger) *ImageAcquirer {
	return &ImageAcquirer{ocr: engine, ext: ext, logger: log}
}

func (a *ImageAcquirer) Acquire(ctx context.Context, buf []byte) (Result, error) {
	res := Result{PageCount: 1, Method: constants.MethodOCR}
	if a.ocr == nil {
		a.logger.Warn("acquire.image.no_ocr")
		res.Document = documentFromText("", 1)
		return res, nil
	}
	out, err := a.ocr.OCRBytes(ctx, buf, a.ext)
	res.Warnings = append(res.Warnings, out.Warnings...)
	if err != nil {
		a.logger.Warn("acquire.image.ocr_failed", zap.Error(err))
		res.Warnings = append(res.Warnings, "ocr failed: "+err.Error())
		res.Document = documentFromText("", 1)
		return res, nil
	}
	res.Text = out.Text
	res.Document = documentFromText(out.Text, 1)
	return res, nil
}
