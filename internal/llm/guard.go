package llm

import (
	"strings"
	"unicode"
)

var injectionKeywords = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"you are now DAN",
	"you are an unrestricted AI",
	"system override",
}

// injectionReason inspects a message body before it is embedded in a prompt.
// A non-empty reason marks the body as unsafe to forward to the backend.
func injectionReason(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range injectionKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return "prompt injection detected: " + kw
		}
	}

	invisible := 0
	total := 0
	for _, r := range text {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			invisible++
		}
		if r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF' {
			invisible++
		}
		total++
	}
	if total > 0 && float64(invisible)/float64(total) > 0.05 {
		return "high obfuscation (invisible characters)"
	}
	return ""
}
