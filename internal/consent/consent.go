// Package consent turns the consent manager cookie into per-purpose permissions.
package consent

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	CookieName = "CONSENTMGR"

	keyGlobal          = "consent"
	keyAnalytics       = "c1"
	keyPersonalization = "c7"
	enabled            = "1"
)

// State holds the two independent permissions derived from the cookie.
// The zero value denies everything.
type State struct {
	AllowAnalytics       bool `json:"allowAnalytics"`
	AllowPersonalization bool `json:"allowPersonalization"`
}

// FromCookieHeader resolves consent from a raw Cookie header value.
func FromCookieHeader(header string) State {
	if strings.TrimSpace(header) == "" {
		return State{}
	}
	// http.Request is the only stdlib parser for a raw Cookie header.
	r := http.Request{Header: http.Header{"Cookie": {header}}}
	c, err := r.Cookie(CookieName)
	if err != nil {
		return State{}
	}
	return Parse(c.Value)
}

// FromRequest resolves consent from the request's cookies.
func FromRequest(r *http.Request) State {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return State{}
	}
	return Parse(c.Value)
}

// Parse resolves an encoded cookie value such as "consent:true|c1:1|c7:0".
// Explicit denial wins over everything, granular purposes win over a global grant.
func Parse(raw string) State {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return State{}
	}
	pairs := map[string]string{}
	for _, part := range strings.Split(decoded, "|") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		pairs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if pairs[keyGlobal] == "false" {
		return State{}
	}
	a, hasA := pairs[keyAnalytics]
	p, hasP := pairs[keyPersonalization]
	if hasA || hasP {
		return State{
			AllowAnalytics:       a == enabled,
			AllowPersonalization: p == enabled,
		}
	}
	if pairs[keyGlobal] == "true" {
		return State{AllowAnalytics: true, AllowPersonalization: true}
	}
	return State{}
}
