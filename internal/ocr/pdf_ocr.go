package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// PageBreak separates OCR'd pages in Result.Text.
const PageBreak = "\f"

func (e *Extractor) extractPDF(ctx context.Context, path, workDir string) (Result, error) {
	prefix := filepath.Join(workDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	pages := make([]string, 0, len(matches))
	var warns []string
	for _, img := range matches {
		if ctx.Err() != nil {
			warns = append(warns, "ocr deadline reached")
			break
		}
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			pages = append(pages, "")
			continue
		}
		pages = append(pages, Normalize(txt))
	}
	return Result{
		Text:     strings.Join(pages, "\n"+PageBreak+"\n"),
		Pages:    len(matches),
		Warnings: warns,
	}, nil
}
