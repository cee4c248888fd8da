// Package rules evaluates the per-host allow and deny lists of the settings
// record.
package rules

import (
	"net/url"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/entrhq/darkpdf/pkg/settings"
)

const (
	matchAll       = "*"
	wildcardPrefix = "*."
)

// compiled caches glob matchers per wildcard rule.
var compiled sync.Map // map[string]glob.Glob

// IsAllowed reports whether automatic takeover may act on host. Deny rules
// take precedence; an empty allow list allows every host.
func IsAllowed(host string, s settings.Settings) bool {
	if !s.AutoTakeoverEnabled {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}

	for _, rule := range s.Blacklist {
		if MatchesRule(host, rule) {
			return false
		}
	}

	if len(s.Whitelist) == 0 {
		return true
	}

	for _, rule := range s.Whitelist {
		if MatchesRule(host, rule) {
			return true
		}
	}
	return false
}

// IsAllowedURL derives the host of rawURL and applies IsAllowed.
func IsAllowedURL(rawURL string, s settings.Settings) bool {
	return IsAllowed(HostOf(rawURL), s)
}

// HostOf returns the lowercase hostname of rawURL or "" if there is none.
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// MatchesRule reports whether host matches one normalized rule. "*" matches
// everything, "*.domain" matches strict subdomains of domain, and any other
// rule must equal host.
func MatchesRule(host, rule string) bool {
	switch {
	case rule == matchAll:
		return true
	case strings.HasPrefix(rule, wildcardPrefix):
		g, err := matcherFor(rule)
		if err != nil {
			return false
		}
		return g.Match(host)
	default:
		return host == rule
	}
}

func matcherFor(rule string) (glob.Glob, error) {
	if g, ok := compiled.Load(rule); ok {
		return g.(glob.Glob), nil
	}
	domain := rule[len(wildcardPrefix):]
	g, err := glob.Compile(wildcardPrefix + glob.QuoteMeta(domain))
	if err != nil {
		return nil, err
	}
	compiled.Store(rule, g)
	return g, nil
}
