package fingerprint

import (
	"regexp"
	"strings"
)

const (
	summaryMaxLines = 30
	noContent       = "No content available"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// Summary extracts the interesting part of a message: up to 30 lines starting
// at the first one that mentions ERROR, Exception or FATAL.
func Summary(content string) string {
	if content == "" {
		return noContent
	}
	lines := lineBreak.Split(content, -1)

	start := 0
	for i, l := range lines {
		if strings.Contains(l, "ERROR") || strings.Contains(l, "Exception") || strings.Contains(l, "FATAL") {
			start = i
			break
		}
	}
	end := start + summaryMaxLines
	if end > len(lines) {
		end = len(lines)
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}
