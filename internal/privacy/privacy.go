// Package privacy scrubs credentials and endpoints out of messages before they are logged,
// pushed or reported.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`\b(?:https?|mqtts?|tcp|ssl|ws|wss|[a-z]+)://\S+`)

	// OAuth access tokens, bearer headers and token query values.
	tokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`),
		regexp.MustCompile(`\bya29\.[A-Za-z0-9._-]+`),
		regexp.MustCompile(`(?i)\b(access_token|token)=[^&\s]+`),
	}

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage redacts tokens and replaces every URL in message with an anonymized form.
func ScrubMessage(message string) string {
	for _, p := range tokenPatterns {
		message = p.ReplaceAllString(message, "[TOKEN]")
	}
	return urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
}

// AnonymizeURL hashes a URL into a stable identifier that keeps its scheme and host category.
func AnonymizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	parts := []string{parsed.Scheme}
	if host := parsed.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if port := parsed.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if p := strings.Trim(parsed.Path, "/"); p != "" {
		parts = append(parts, fmt.Sprintf("path-%d", strings.Count(p, "/")+1))
	}

	hash := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("%s-%x", strings.Join(parts, ":"), hash[:6])
}

func categorizeHost(host string) string {
	switch {
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case ipv4Pattern.MatchString(host) || strings.Contains(host, ":"):
		return "public-ip"
	}
	if i := strings.LastIndexByte(host, '.'); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "unknown-host"
}

func isPrivateIP(host string) bool {
	for _, prefix := range []string{
		"10.", "192.168.", "169.254.", "fc00:", "fd00:", "fe80:",
	} {
		if strings.HasPrefix(strings.ToLower(host), prefix) {
			return true
		}
	}
	if rest, ok := strings.CutPrefix(host, "172."); ok {
		var second int
		if _, err := fmt.Sscanf(rest, "%d.", &second); err == nil {
			return second >= 16 && second <= 31
		}
	}
	return false
}
