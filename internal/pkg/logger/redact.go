package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail keeps the first two characters of the local part and the
// domain: "john.doe@example.com" becomes "jo***@example.com". Local parts of
// two characters or fewer are masked entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}

// RedactToken keeps a short prefix of an RSVP token so log lines can still
// be correlated without exposing a usable link.
func RedactToken(tok string) string {
	if len(tok) <= 8 {
		return "***"
	}
	return tok[:6] + "***"
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case key == "token" || strings.HasSuffix(key, "_token"):
		return RedactToken(val)
	case key == "to" || strings.Contains(key, "email") || strings.Contains(key, "recipient"):
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
