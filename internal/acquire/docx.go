package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
)

const (
	docxMaxXMLBytes   = 32 << 20
	docxCharsPerPage  = 3000
	docxDocumentEntry = "word/document.xml"
	docxAppEntry      = "docProps/app.xml"
)

// DOCXAcquirer reads paragraphs and tables from word/document.xml.
type DOCXAcquirer struct {
	logger *zap.Logger
}

func NewDOCXAcquirer(log *zap.Logger) *DOCXAcquirer {
	return &DOCXAcquirer{logger: log}
}

func (a *DOCXAcquirer) Acquire(_ context.Context, buf []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return Result{}, common.NewAppError(common.CodeDocumentUnreadable, "docx is not a zip container", err)
	}

	var docFile, appFile *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case docxDocumentEntry:
			docFile = f
		case docxAppEntry:
			appFile = f
		}
	}
	if docFile == nil {
		return Result{}, common.NewAppError(common.CodeDocumentUnreadable, docxDocumentEntry+" not found in archive", nil)
	}

	page, err := readDocxBody(docFile)
	if err != nil {
		return Result{}, common.NewAppError(common.CodeDocumentUnreadable, "docx body could not be parsed", err)
	}
	doc := entity.DocumentRepresentation{Pages: []entity.Page{page}}
	text := textOf(doc)

	pages := 0
	if appFile != nil {
		if n, err := readDocxPageCount(appFile); err == nil {
			pages = n
		} else {
			a.logger.Debug("acquire.docx.app_props_unreadable", zap.Error(err))
		}
	}
	if pages <= 0 {
		pages = estimatePages(text)
	}
	doc.PageCount = pages

	return Result{
		Text:      text,
		PageCount: pages,
		Method:    constants.MethodText,
		Document:  doc,
	}, nil
}

// readDocxBody walks the body once, collecting paragraphs outside tables as
// lines and table cells as rows.
func readDocxBody(f *zip.File) (entity.Page, error) {
	rc, err := f.Open()
	if err != nil {
		return entity.Page{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, docxMaxXMLBytes))
	page := entity.Page{Number: 1}

	var (
		para      strings.Builder
		inText    bool
		tableLvl  int
		table     *entity.Table
		row       []string
		cell      strings.Builder
		cellParas int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return page, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableLvl++
				if tableLvl == 1 {
					table = &entity.Table{}
				}
			case "tr":
				if tableLvl == 1 {
					row = nil
				}
			case "tc":
				if tableLvl == 1 {
					cell.Reset()
					cellParas = 0
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte(' ')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if tableLvl > 0 {
					if cellParas > 0 {
						cell.WriteByte(' ')
					}
					cell.WriteString(text)
					cellParas++
				} else {
					page.Lines = append(page.Lines, splitLines(text)...)
				}
			case "tc":
				if tableLvl == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if tableLvl == 1 && table != nil && hasContent(row) {
					table.Rows = append(table.Rows, row)
				}
			case "tbl":
				if tableLvl == 1 && table != nil && len(table.Rows) > 0 {
					page.Tables = append(page.Tables, *table)
				}
				if tableLvl > 0 {
					tableLvl--
				}
			}
		}
	}
	return page, nil
}

func readDocxPageCount(f *zip.File) (int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	var props struct {
		Pages string `xml:"Pages"`
	}
	if err := xml.NewDecoder(io.LimitReader(rc, 1<<20)).Decode(&props); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(props.Pages))
}

func estimatePages(text string) int {
	n := utf8.RuneCountInString(text)
	pages := (n + docxCharsPerPage - 1) / docxCharsPerPage
	if pages < 1 {
		pages = 1
	}
	return pages
}

func hasContent(row []string) bool {
	for _, c := range row {
		if c != "" {
			return true
		}
	}
	return false
}
