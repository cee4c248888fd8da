// Package rulesync builds the declarative pre-navigation redirect rules for
// the current settings and installs them into the host.
package rulesync

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/entrhq/darkpdf/pkg/settings"
)

// Rule ids are stable so a sync can remove what the previous one added.
const (
	PdfSuffixRuleID  = 1001
	PdfSegmentRuleID = 1002
)

// RuleIDs lists every id this package may install.
var RuleIDs = []int{PdfSuffixRuleID, PdfSegmentRuleID}

// Regular expressions for the two PDF-shaped request forms.
const (
	PdfSuffixFilter  = `^https?://[^\s#?]+\.pdf(?:[?#].*)?$`
	PdfSegmentFilter = `^https?://[^\s#]*/pdf/[^\s#]*$`
)

// Action and resource type names.
const (
	ActionRedirect    = "redirect"
	ResourceMainFrame = "main_frame"
)

// Rule is one declarative redirect rule.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

// Action describes what happens when a rule matches.
type Action struct {
	Type     string   `json:"type"`
	Redirect Redirect `json:"redirect"`
}

// Redirect carries the substitution applied to the matched URL. \0 is the
// whole match, \1..\9 are capture groups.
type Redirect struct {
	RegexSubstitution string `json:"regexSubstitution"`
}

// Condition defines which requests a rule applies to.
type Condition struct {
	ResourceTypes          []string `json:"resourceTypes"`
	RegexFilter            string   `json:"regexFilter"`
	RequestDomains         []string `json:"requestDomains,omitempty"`
	ExcludedRequestDomains []string `json:"excludedRequestDomains,omitempty"`
}

var dnrDomainPattern = regexp.MustCompile(`^[a-z0-9.-]+$`)

// Build returns the rule set for s. It is empty when auto-takeover is off or
// the blacklist denies every host.
func Build(s settings.Settings, viewerURL string) []Rule {
	if !s.AutoTakeoverEnabled {
		return []Rule{}
	}

	blacklist := domainsFor(s.Blacklist)
	if contains(blacklist, "*") {
		return []Rule{}
	}
	whitelist := domainsFor(s.Whitelist)
	if contains(whitelist, "*") {
		whitelist = nil
	}

	base := Condition{
		ResourceTypes:          []string{ResourceMainFrame},
		RequestDomains:         nilIfEmpty(whitelist),
		ExcludedRequestDomains: nilIfEmpty(blacklist),
	}
	target := viewerURL + `#\0`

	newRule := func(id int, filter string) Rule {
		cond := base
		cond.RegexFilter = filter
		return Rule{
			ID:        id,
			Priority:  1,
			Action:    Action{Type: ActionRedirect, Redirect: Redirect{RegexSubstitution: target}},
			Condition: cond,
		}
	}

	return []Rule{
		newRule(PdfSuffixRuleID, PdfSuffixFilter),
		newRule(PdfSegmentRuleID, PdfSegmentFilter),
	}
}

// domainsFor reduces host rules to the bare domains a host can filter on.
// "*.x" becomes "x" because domain lists already cover subdomains.
func domainsFor(rules []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, rule := range rules {
		domain := rule
		if rule != "*" {
			domain = strings.TrimPrefix(rule, "*.")
			if !dnrDomainPattern.MatchString(domain) {
				continue
			}
		}
		if !seen[domain] {
			seen[domain] = true
			out = append(out, domain)
		}
	}
	return out
}

var filterCache sync.Map // map[string]*regexp.Regexp

func (r Rule) filter() (*regexp.Regexp, error) {
	if re, ok := filterCache.Load(r.Condition.RegexFilter); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(r.Condition.RegexFilter)
	if err != nil {
		return nil, err
	}
	filterCache.Store(r.Condition.RegexFilter, re)
	return re, nil
}

// Matches reports whether a request for rawURL of the given resource type
// would trigger the rule. Domain lists match the host and all its
// subdomains.
func (r Rule) Matches(rawURL, resourceType string) bool {
	if !contains(r.Condition.ResourceTypes, resourceType) {
		return false
	}
	re, err := r.filter()
	if err != nil || !re.MatchString(rawURL) {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if len(r.Condition.RequestDomains) > 0 && !domainListMatches(host, r.Condition.RequestDomains) {
		return false
	}
	return !domainListMatches(host, r.Condition.ExcludedRequestDomains)
}

var substitutionRef = regexp.MustCompile(`\\(\d)`)

// RedirectTarget applies the rule's substitution to rawURL. ok is false when
// the filter does not match.
func (r Rule) RedirectTarget(rawURL string) (string, bool) {
	re, err := r.filter()
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatchIndex(rawURL)
	if m == nil {
		return "", false
	}
	template := substitutionRef.ReplaceAllString(r.Action.Redirect.RegexSubstitution, `$${$1}`)
	return string(re.ExpandString(nil, template, rawURL, m)), true
}

func domainListMatches(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func nilIfEmpty(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return list
}
