// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package net

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeURL strips user info and query parameters for safe logging.
// Source URLs may carry tokens in the query string.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// ParseDirectHTTPURL validates that s is a plain http(s) URL with a host,
// no credentials and no fragment. Load requests are checked with this
// before they ever reach the queue.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	if u.User != nil {
		return nil, false
	}
	if u.Fragment != "" {
		return nil, false
	}
	return u, true
}

// NormalizeAuthority splits a host or host:port string into hostname and
// port. Inputs without a scheme get defaultScheme prepended before parsing,
// so IPv6 literals keep working.
func NormalizeAuthority(s, defaultScheme string) (host, port string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("empty input")
	}
	if !strings.Contains(s, "://") {
		if defaultScheme == "" {
			defaultScheme = "http"
		}
		s = defaultScheme + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse authority: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("empty host")
	}
	return u.Hostname(), u.Port(), nil
}
