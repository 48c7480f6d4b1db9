package privacy

import (
	"strings"

	"sendlater/internal/constants"
)

// MaskID masks a numeric QQ user or group id, keeping the last four
// digits for correlation. Example: "1234567890" -> "******7890".
func MaskID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= constants.DefaultIDMaskVisible {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-constants.DefaultIDMaskVisible) +
		id[len(id)-constants.DefaultIDMaskVisible:]
}

// MaskBody truncates a message body for logging so the operational log
// records shape, not content.
func MaskBody(body string) string {
	runes := []rune(body)
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:4]) + "..." + strings.Repeat("*", 4)
}
