// Package urlutil builds absolute URLs and login redirects.
package urlutil

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

const (
	LoginPath = "/auth/login/"
	// NextParam carries the post-login destination.
	NextParam = "next"
)

// LoginRedirectURL returns the login URL that brings the user back to r,
// e.g. /auth/login/?next=/add/. Slashes in the target stay literal.
func LoginRedirectURL(r *http.Request) string {
	next := strings.ReplaceAll(url.QueryEscape(r.URL.RequestURI()), "%2F", "/")
	return LoginPath + "?" + NextParam + "=" + next
}

// SafeNext returns next when it is a path on this site, otherwise
// fallback. Browsers treat "//host" and "/\host" as other origins.
func SafeNext(next, fallback string) string {
	switch {
	case !strings.HasPrefix(next, "/"),
		strings.HasPrefix(next, "//"),
		strings.HasPrefix(next, `/\`):
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

// IsLocalhost reports whether baseURL names a loopback host.
func IsLocalhost(baseURL string) bool {
	u, err := url.Parse(trimBase(baseURL))
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// BuildAbsolute joins base and path. Absolute http(s) paths pass through.
func BuildAbsolute(base, path string) string {
	base = trimBase(base)
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	case strings.HasPrefix(path, "/"):
		return base + path
	}
	return base + "/" + path
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
