package fingerprint

import (
	"regexp"
	"strings"
)

const (
	LevelFatal    = "FATAL"
	LevelCritical = "CRITICAL"
	LevelError    = "ERROR"
	LevelWarn     = "WARN"
	LevelInfo     = "INFO"
	LevelDebug    = "DEBUG"
)

var (
	warnWord  = regexp.MustCompile(`\bWARN(ING)?\b`)
	infoWord  = regexp.MustCompile(`\bINFO\b`)
	debugWord = regexp.MustCompile(`\b(DEBUG|TRACE)\b`)
)

// InferLevel guesses a level from message keywords. Messages without any
// keyword are treated as errors.
func InferLevel(message string) string {
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, LevelFatal):
		return LevelFatal
	case strings.Contains(upper, LevelCritical):
		return LevelCritical
	case strings.Contains(upper, LevelError), strings.Contains(upper, "EXCEPTION"):
		return LevelError
	case warnWord.MatchString(upper):
		return LevelWarn
	case infoWord.MatchString(upper):
		return LevelInfo
	case debugWord.MatchString(upper):
		return LevelDebug
	}
	return LevelError
}

// EffectiveLevel combines the submitted level with the inferred one. FATAL and
// CRITICAL found in the message override whatever was submitted.
func EffectiveLevel(submitted, message string) string {
	inferred := InferLevel(message)
	submitted = strings.ToUpper(strings.TrimSpace(submitted))
	if submitted == "" || inferred == LevelFatal || inferred == LevelCritical {
		return inferred
	}
	return submitted
}

// IsTargetLevel reports whether events at level are collected.
func IsTargetLevel(level string) bool {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelError, LevelCritical, LevelFatal:
		return true
	}
	return false
}
