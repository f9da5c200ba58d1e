package transport

import (
	"net/url"
	"regexp"
)

var bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._-]+`)

// SanitizeError strips credentials from a message before it is logged or
// persisted to sync history: userinfo in any URL, and bearer tokens in
// Authorization-style text.
func SanitizeError(msg string) string {
	msg = SanitizeURL(msg)
	return bearerTokenPattern.ReplaceAllString(msg, "${1}<redacted>")
}

// SanitizeURL strips userinfo (user:password@) from any absolute URL found
// in s. Non-URL text passes through unchanged.
func SanitizeURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	u.User = nil
	return u.String()
}
