package verify

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

var allowedEvidenceTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// checkEvidence validates size and type. An empty content type is sniffed
// from the data and filled in. Returns the alert text on failure.
func (e *Engine) checkEvidence(ev *protocol.Evidence) (string, bool) {
	if len(ev.Data) == 0 {
		return msgEvidenceEmpty, false
	}
	if e.cfg.MaxEvidenceBytes > 0 && int64(len(ev.Data)) > e.cfg.MaxEvidenceBytes {
		return fmt.Sprintf(msgEvidenceTooLarge, e.cfg.MaxEvidenceBytes>>20), false
	}
	ct := strings.ToLower(strings.TrimSpace(ev.ContentType))
	if ct == "" {
		ct, _, _ = strings.Cut(http.DetectContentType(ev.Data), ";")
	}
	if !allowedEvidenceTypes[ct] {
		return msgEvidenceType, false
	}
	ev.ContentType = ct
	return "", true
}
