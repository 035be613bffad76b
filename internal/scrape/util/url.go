package util

import (
	"net/url"
	"strings"
)

// ValidateURL checks that raw is an absolute http(s) URL with a host and no
// embedded spaces. The reason is empty when ok is true.
func ValidateURL(raw string) (ok bool, reason string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false, "URL is null or empty"
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false, "URL must start with http:// or https://"
	}
	if strings.Contains(s, " ") {
		return false, "URL contains spaces"
	}
	u, err := url.Parse(s)
	if err != nil {
		return false, "Malformed URL: " + err.Error()
	}
	if u.Host == "" || u.Hostname() == "" {
		return false, "URL has no host"
	}
	return true, ""
}

func IsValidURL(raw string) bool {
	ok, _ := ValidateURL(raw)
	return ok
}

// CleanTrailingPunct drops sentence punctuation glued to the end of a URL
// found in running text.
func CleanTrailingPunct(u string) string {
	return strings.TrimRight(u, ".,);:!")
}

// Origin returns scheme://host for raw, or "" when raw does not parse.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
