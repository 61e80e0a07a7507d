package fingerprint

import (
	"regexp"
	"strings"
)

// DefaultStackLines is how many stack frames take part in the signature.
const DefaultStackLines = 8

type rule struct {
	re   *regexp.Regexp
	repl string
}

// messageRules run in order. Semantic codes are rewritten first so that the
// generic number rules below cannot erase them.
var messageRules = []rule{
	{regexp.MustCompile(`\[(?i)(traceid|spanid|requestid|correlationid|txid|transactionid|sessionid|rid)\s*[:=]\s*([^\]]+)\]`), "[${1}=<ID>]"},
	{regexp.MustCompile(`(?i)\b(pool|connid|connectionid)\s*[:=]\s*([A-Za-z0-9._\-]+)\b`), "${1}=<ID>"},
	{regexp.MustCompile(`(?i)\bHTTP\s*([1-5]\d\d)\b|\bstatus\s*[:=]\s*([1-5]\d\d)\b`), "HTTP_STATUS_${1}${2}"},
	{regexp.MustCompile(`(?i)\berrno\s*[:=]?\s*(\d+)\b`), "ERRNO_${1}"},
	{regexp.MustCompile(`(?i)\bSQLSTATE\s*[:=]?\s*([0-9A-Z]{5})\b`), "SQLSTATE_${1}"},

	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:\d{2})?`), "<TS>"},
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "<UUID>"},
	{regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`), "<IP>"},
	{regexp.MustCompile(`\b(?:[0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}\b`), "<IP6>"},
	{regexp.MustCompile(`\b[0-9a-fA-F]{2}(?:[:-][0-9a-fA-F]{2}){5}\b`), "<MAC>"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "<EMAIL>"},
	{regexp.MustCompile(`(?i)\b(traceid|spanid|requestid|correlationid|txid|transactionid|sessionid|rid)\s*[:=]\s*([A-Za-z0-9._\-]{6,})\b`), "${1}=<ID>"},
	{regexp.MustCompile(`(?i)\bhttps?://[^\s]+\b`), "<URL>"},
	{regexp.MustCompile(`\b[A-Za-z]:\\[^\s]+\b`), "<PATH>"},
	{regexp.MustCompile(`(/[^\s]+)+`), "<PATH>"},

	{regexp.MustCompile(`(?i)\s+(at|on|near|value|id|is)\s+\d+`), " "},
	{regexp.MustCompile(`(?i)(^|[^\d])(\d{2,})(ms|s|sec|secs|seconds)\b`), "${1}<NUM>${3}"},
	{regexp.MustCompile(`\b\d{2,}\b`), "<NUM>"},
	{regexp.MustCompile(`(?:<NUM>\s+)+<NUM>`), "<NUM>"},
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	lineNumber = regexp.MustCompile(`([A-Za-z_][\w$-]*\.[A-Za-z]\w*:)\d+\b`)
)

// NormalizeMessage replaces the volatile parts of an error message with
// placeholder tokens. It is total and idempotent.
func NormalizeMessage(message string) string {
	s := message
	for _, r := range messageRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return collapse(s)
}

// NormalizeStackTop keeps the first maxLines non-blank frames, masks source
// line numbers and joins the normalized frames with " / ".
func NormalizeStackTop(stack string, maxLines int) string {
	if strings.TrimSpace(stack) == "" || maxLines <= 0 {
		return ""
	}

	frames := make([]string, 0, maxLines)
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = lineNumber.ReplaceAllString(line, "${1}<LINE>")
		if line = NormalizeMessage(line); line != "" {
			frames = append(frames, line)
		}
		if len(frames) == maxLines {
			break
		}
	}
	return strings.Join(frames, " / ")
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
