package application

import (
	"strings"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

const humidityQuestion = "'s the humidity inside"

// ClassifyIntent maps a transcript to an intent. Matching is
// case-insensitive and ordered; the first rule that matches wins.
func ClassifyIntent(text string) domain.Intent {
	// Surrounding whitespace from the recognizer is ignored, so
	// " power off " still counts as an exact match.
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "power off":
		return domain.IntentPowerOff
	case t == "reboot":
		return domain.IntentReboot
	case t == "ip address":
		return domain.IntentReportIP
	case strings.Contains(t, humidityQuestion):
		return domain.IntentReportHumidity
	default:
		return domain.IntentUnrecognized
	}
}

// IsAffirmative reports whether a confirmation answer means yes. Anything
// without "yes" in it, the empty string included, is a no.
func IsAffirmative(text string) bool {
	return strings.Contains(strings.ToLower(text), "yes")
}
