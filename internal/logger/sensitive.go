package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitivePatterns match credentials that may end up inside free-form messages
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((?:access_token|refresh_token|token|secret|password)\s*[:=]\s*)([^;,&\s"]{5,})`),
	regexp.MustCompile(`()(ya29\.[0-9A-Za-z_\-]{5,})`),
}

// sensitiveKeys mark field keys whose string values are never written verbatim
var sensitiveKeys = []string{"token", "secret", "password", "authorization", "credential"}

// RedactSensitiveData replaces OAuth tokens and similar secrets with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitivePatterns {
		input = pattern.ReplaceAllString(input, "${1}"+redacted)
	}
	return input
}

// isSensitiveKey reports whether a field key names a credential
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
