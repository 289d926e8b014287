package constants

import (
	"bytes"
	"strings"
)

// Supported upload extensions (lowercase, without '.').
const (
	ExtPDF  = "pdf"
	ExtDOCX = "docx"
	ExtPNG  = "png"
	ExtJPG  = "jpg"
	ExtJPEG = "jpeg"
)

// Acquisition paths.
const (
	FormatPDF   = "PDF"
	FormatDOCX  = "DOCX"
	FormatIMAGE = "IMAGE"
)

// Extraction methods recorded in draft metadata.
const (
	MethodText = "text"
	MethodOCR  = "ocr"
)

const (
	DefaultMaxUploadMB  = 10
	DefaultMaxPages     = 20
	MaxFileNameLength   = 255
	MinMeaningfulChars  = 10
	FallbackDocFileName = "document"
)

// AllowedExtensions holds the allowed upload extensions mapped to their MIME type.
var AllowedExtensions = map[string]string{
	ExtPDF:  "application/pdf",
	ExtDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	ExtPNG:  "image/png",
	ExtJPG:  "image/jpeg",
	ExtJPEG: "image/jpeg",
}

// magic byte prefixes per MIME type
var signatures = map[string][][]byte{
	"application/pdf": {{0x25, 0x50, 0x44, 0x46}},
	"image/png":       {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	"image/jpeg": {
		{0xFF, 0xD8, 0xFF, 0xDB},
		{0xFF, 0xD8, 0xFF, 0xE0},
		{0xFF, 0xD8, 0xFF, 0xE1},
		{0xFF, 0xD8, 0xFF, 0xE2},
		{0xFF, 0xD8, 0xFF, 0xE3},
		{0xFF, 0xD8, 0xFF, 0xE8},
		{0xFF, 0xD8, 0xFF, 0xEE},
	},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {{0x50, 0x4B, 0x03, 0x04}},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MIMEForExt returns the MIME type for an allowed extension.
func MIMEForExt(ext string) (string, bool) {
	mt, ok := AllowedExtensions[NormalizeExt(ext)]
	return mt, ok
}

// MapExtToFormat picks the acquisition path for an extension, "" when unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case ExtPDF:
		return FormatPDF
	case ExtDOCX:
		return FormatDOCX
	case ExtPNG, ExtJPG, ExtJPEG:
		return FormatIMAGE
	default:
		return ""
	}
}

// MatchesSignature reports whether buf starts with one of the magic byte
// sequences registered for mimeType.
func MatchesSignature(buf []byte, mimeType string) bool {
	for _, sig := range signatures[mimeType] {
		if bytes.HasPrefix(buf, sig) {
			return true
		}
	}
	return false
}
