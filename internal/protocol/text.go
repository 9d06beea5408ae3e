package protocol

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares free text typed by a cashier (reasons, descriptions)
// for the wire: NFC normalized and trimmed, so accented input produces the
// same bytes regardless of how it was composed.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
