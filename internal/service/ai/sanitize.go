package ai

import (
	"regexp"
	"strings"
)

const (
	maxUserInputLength = 5000
	truncationSuffix   = "... [truncated]"
)

var (
	fencedCodeRe = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCodeRe = regexp.MustCompile("`[^`]+`")
)

// SanitizeUserInput strips code blocks and caps the length of a user
// message before it is embedded into a prompt, to blunt prompt
// injection through pasted markup.
func SanitizeUserInput(userMessage string) string {
	if userMessage == "" {
		return ""
	}

	sanitized := userMessage

	// Nested fences can survive a single pass, so loop until none remain.
	for strings.Contains(sanitized, "```") {
		next := fencedCodeRe.ReplaceAllString(sanitized, "[code block removed]")
		if next == sanitized {
			break
		}
		sanitized = next
	}
	sanitized = inlineCodeRe.ReplaceAllString(sanitized, "[code removed]")

	if len(sanitized) > maxUserInputLength {
		sanitized = sanitized[:maxUserInputLength-len(truncationSuffix)] + truncationSuffix
	}

	return strings.TrimSpace(sanitized)
}
