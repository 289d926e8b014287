package jobs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/common"
)

var reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFileName replaces anything outside [A-Za-z0-9._-], caps the length
// and never returns an empty name.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = reUnsafeName.ReplaceAllString(name, "_")
	if len(name) > constants.MaxFileNameLength {
		name = name[:constants.MaxFileNameLength]
	}
	if strings.Trim(name, "._") == "" {
		return constants.FallbackDocFileName
	}
	return name
}

// decodeContent accepts raw base64 or a data URL.
func decodeContent(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidPayload, "content is not valid base64", err)
	}
	if len(buf) == 0 {
		return nil, common.NewAppError(common.CodeInvalidPayload, "content is empty", common.ErrValidation)
	}
	return buf, nil
}

func contentHash(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
