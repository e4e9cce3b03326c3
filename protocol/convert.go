package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

var validHex = regexp.MustCompile(`^[0-9A-F]+$`)

// NormalizeUID converts a UID to the form the readers report: uppercase hex
// without separators. MACs are computed over this form, so a UID typed as
// "04:a1:b2:c3" must be normalized before use.
//
// Supports: "04:A1:B2:C3", "04A1B2C3", "04 A1 B2 C3", "04-A1-B2-C3"
func NormalizeUID(uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("empty UID")
	}

	cleaned := strings.NewReplacer(":", "", " ", "", "-", "").Replace(uid)
	cleaned = strings.ToUpper(cleaned)

	if !validHex.MatchString(cleaned) {
		return "", fmt.Errorf("UID contains invalid characters: %s", uid)
	}

	// UID length should be even (each byte = 2 hex chars)
	if len(cleaned)%2 != 0 {
		return "", fmt.Errorf("UID has odd number of hex characters: %s", uid)
	}

	return cleaned, nil
}
