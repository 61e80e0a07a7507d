package fingerprint

import (
	"regexp"
	"strings"
)

var (
	oraCode       = regexp.MustCompile(`\bORA-(\d{5})\b`)
	sqlStateCode  = regexp.MustCompile(`(?i)\bSQLSTATE\s*[:=]?\s*([0-9A-Z]{5})\b`)
	httpCode      = regexp.MustCompile(`(?i)\bHTTP\s*([1-5]\d\d)\b|\bstatus\s*[:=]\s*([1-5]\d\d)\b`)
	errnoCode     = regexp.MustCompile(`(?i)\berrno\s*[:=]?\s*(\d+)\b`)
	exceptionName = regexp.MustCompile(`\b([A-Za-z_$][A-Za-z0-9_$]*Exception)\b`)
)

// ErrorCode classifies an event. Vendor codes win over exception names, which
// win over keyword categories; GEN_ERR is the fallback.
func ErrorCode(message, stackTrace string) string {
	src := message + "\n" + stackTrace

	if m := oraCode.FindStringSubmatch(src); m != nil {
		return "ORA_" + m[1]
	}
	if m := sqlStateCode.FindStringSubmatch(src); m != nil {
		return "SQLSTATE_" + m[1]
	}
	if m := httpCode.FindStringSubmatch(src); m != nil {
		code := m[1]
		if code == "" {
			code = m[2]
		}
		return "HTTP_" + code
	}
	if m := errnoCode.FindStringSubmatch(src); m != nil {
		return "ERRNO_" + m[1]
	}
	if m := exceptionName.FindStringSubmatch(src); m != nil {
		return "EX_" + m[1]
	}

	upper := strings.ToUpper(src)
	switch {
	case strings.Contains(upper, "SQL"), strings.Contains(upper, "DATABASE"):
		return "DB_ERR"
	case strings.Contains(upper, "TIMEOUT"), strings.Contains(upper, "CONNECTION"), strings.Contains(upper, "REFUSED"):
		return "NET_ERR"
	case strings.Contains(upper, "NULLPOINTER"), strings.Contains(upper, "OUTOFMEMORY"), strings.Contains(upper, "ILLEGALSTATE"):
		return "SYS_ERR"
	}
	return "GEN_ERR"
}
