package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/cv-autofill/constants"
)

// AllowedExt checks if a file extension is one the jobs service accepts.
func AllowedExt(ext string) bool {
	_, ok := constants.MIMEForExt(ext)
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// isPartial reports editor and download temp files that are still being written.
func isPartial(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.HasPrefix(base, "~$") || strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".crdownload")
}
