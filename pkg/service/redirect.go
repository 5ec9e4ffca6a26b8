package service

import (
	"net"
	"net/url"
	"strings"
)

// RedirectAllowList holds the origins an OAuth flow may return to.
type RedirectAllowList struct {
	origins []string
}

func NewRedirectAllowList(allowed []string) RedirectAllowList {
	origins := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if o, ok := origin(a); ok {
			origins = append(origins, o)
		}
	}
	return RedirectAllowList{origins: origins}
}

// Allows reports whether redirectURI parses and its origin equals an allow-listed origin.
func (l RedirectAllowList) Allows(redirectURI string) bool {
	o, ok := origin(redirectURI)
	if !ok {
		return false
	}
	for _, allowed := range l.origins {
		if o == allowed {
			return true
		}
	}
	return false
}

// Origins returns the normalized allow-listed origins in configuration order.
func (l RedirectAllowList) Origins() []string {
	return append([]string(nil), l.origins...)
}

// origin serializes scheme://host[:port] the way browsers do, dropping default ports.
func origin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port == "" {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return scheme + "://" + host, true
	}
	return scheme + "://" + net.JoinHostPort(host, port), true
}
