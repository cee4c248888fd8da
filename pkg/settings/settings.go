// Package settings normalizes, caches and persists the user configuration
// record that drives automatic PDF takeover.
package settings

import (
	"net/url"
	"regexp"
	"strings"
)

// StorageKey is the key the record is persisted under.
const StorageKey = "autoTakeoverSettings"

// ThemeMode selects between a preset theme and a custom color.
type ThemeMode string

const (
	ThemePreset ThemeMode = "preset"
	ThemeCustom ThemeMode = "custom"
)

const (
	DefaultThemePresetID    = "graphite-gray"
	DefaultCustomThemeColor = "#121212"
	defaultThemeMode        = ThemePreset
	defaultAutoTakeover     = true
	defaultOutlineAutoFit   = true
	wildcardAll             = "*"
	wildcardSubdomainPrefix = "*."
)

// PresetThemeIDs lists the accepted preset theme ids.
var PresetThemeIDs = []string{
	"graphite-gray",
	"midnight-black",
	"deep-sea-blue",
	"pine-ink-green",
	"warm-umber-night",
}

// Settings is the normalized user configuration record.
type Settings struct {
	AutoTakeoverEnabled       bool      `json:"autoTakeoverEnabled"`
	AutoOutlineAutoFitEnabled bool      `json:"autoOutlineAutoFitEnabled"`
	ThemeMode                 ThemeMode `json:"themeMode"`
	ThemePresetID             string    `json:"themePresetId"`
	CustomThemeColor          string    `json:"customThemeColor"`
	Whitelist                 []string  `json:"whitelist"`
	Blacklist                 []string  `json:"blacklist"`
}

// Default returns the record used when nothing is stored.
func Default() Settings {
	return Settings{
		AutoTakeoverEnabled:       defaultAutoTakeover,
		AutoOutlineAutoFitEnabled: defaultOutlineAutoFit,
		ThemeMode:                 defaultThemeMode,
		ThemePresetID:             DefaultThemePresetID,
		CustomThemeColor:          DefaultCustomThemeColor,
		Whitelist:                 []string{},
		Blacklist:                 []string{},
	}
}

// Record returns the JSON-object form written to persistence.
func (s Settings) Record() map[string]interface{} {
	return map[string]interface{}{
		"autoTakeoverEnabled":       s.AutoTakeoverEnabled,
		"autoOutlineAutoFitEnabled": s.AutoOutlineAutoFitEnabled,
		"themeMode":                 string(s.ThemeMode),
		"themePresetId":             s.ThemePresetID,
		"customThemeColor":          s.CustomThemeColor,
		"whitelist":                 toInterfaces(s.Whitelist),
		"blacklist":                 toInterfaces(s.Blacklist),
	}
}

// Equal reports whether two records hold the same values.
func (s Settings) Equal(o Settings) bool {
	return s.AutoTakeoverEnabled == o.AutoTakeoverEnabled &&
		s.AutoOutlineAutoFitEnabled == o.AutoOutlineAutoFitEnabled &&
		s.ThemeMode == o.ThemeMode &&
		s.ThemePresetID == o.ThemePresetID &&
		s.CustomThemeColor == o.CustomThemeColor &&
		equalStrings(s.Whitelist, o.Whitelist) &&
		equalStrings(s.Blacklist, o.Blacklist)
}

// Normalize turns any raw record into a valid Settings value. It never fails:
// missing or invalid fields fall back to their defaults.
func Normalize(raw map[string]interface{}) Settings {
	s := Default()
	if raw == nil {
		return s
	}
	s.AutoTakeoverEnabled = notExplicitlyFalse(raw["autoTakeoverEnabled"])
	s.AutoOutlineAutoFitEnabled = notExplicitlyFalse(raw["autoOutlineAutoFitEnabled"])
	s.ThemeMode = NormalizeThemeMode(raw["themeMode"])
	s.ThemePresetID = NormalizeThemePresetID(raw["themePresetId"])
	if color, ok := NormalizeHexColor(raw["customThemeColor"]); ok {
		s.CustomThemeColor = color
	}
	s.Whitelist = NormalizeRuleList(raw["whitelist"])
	s.Blacklist = NormalizeRuleList(raw["blacklist"])
	return s
}

// notExplicitlyFalse treats everything except a literal false as enabled.
func notExplicitlyFalse(v interface{}) bool {
	b, ok := v.(bool)
	return !ok || b
}

// NormalizeThemeMode returns ThemeCustom only for the exact string "custom".
func NormalizeThemeMode(v interface{}) ThemeMode {
	if s, ok := v.(string); ok && s == string(ThemeCustom) {
		return ThemeCustom
	}
	return defaultThemeMode
}

// NormalizeThemePresetID returns a known preset id or the default.
func NormalizeThemePresetID(v interface{}) string {
	s, _ := v.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	for _, id := range PresetThemeIDs {
		if s == id {
			return id
		}
	}
	return DefaultThemePresetID
}

var hexColorPattern = regexp.MustCompile(`^#?([0-9a-f]{6})$`)

// NormalizeHexColor returns "#rrggbb" in lowercase.
func NormalizeHexColor(v interface{}) (string, bool) {
	s, _ := v.(string)
	m := hexColorPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return "", false
	}
	return "#" + m[1], true
}

var ruleSplitPattern = regexp.MustCompile(`[\n,]+`)

// NormalizeRuleList accepts a newline/comma separated string or a sequence of
// strings and returns the normalized rules in first-seen order without
// duplicates. Anything else yields an empty list.
func NormalizeRuleList(v interface{}) []string {
	var source []string
	switch t := v.(type) {
	case string:
		for _, part := range ruleSplitPattern.Split(t, -1) {
			if part = strings.TrimSpace(part); part != "" {
				source = append(source, part)
			}
		}
	case []string:
		source = t
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				source = append(source, s)
			}
		}
	}

	out := make([]string, 0, len(source))
	seen := make(map[string]bool, len(source))
	for _, item := range source {
		rule, ok := NormalizeRuleEntry(item)
		if !ok || seen[rule] {
			continue
		}
		seen[rule] = true
		out = append(out, rule)
	}
	return out
}

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	portSuffix   = regexp.MustCompile(`(?::\d+)+$`)
)

// NormalizeRuleEntry reduces one raw rule to "*", a lowercase hostname or a
// "*.domain" wildcard. ok is false when nothing usable remains.
func NormalizeRuleEntry(value string) (string, bool) {
	rule := strings.ToLower(strings.TrimSpace(value))
	if rule == "" {
		return "", false
	}
	if rule == wildcardAll {
		return wildcardAll, true
	}

	if strings.HasPrefix(rule, "http://") || strings.HasPrefix(rule, "https://") {
		u, err := url.Parse(rule)
		if err != nil {
			return "", false
		}
		rule = strings.ToLower(u.Hostname())
		if strings.Contains(rule, ":") {
			rule = "[" + rule + "]"
		}
	} else {
		rule = schemePrefix.ReplaceAllString(rule, "")
		rule = strings.SplitN(rule, "/", 2)[0]
		rule = portSuffix.ReplaceAllString(rule, "")
	}

	rule = strings.TrimLeft(rule, ".")
	if rule == "" {
		return "", false
	}
	if rule == wildcardAll {
		return wildcardAll, true
	}

	if strings.HasPrefix(rule, wildcardSubdomainPrefix) {
		domain := rule[len(wildcardSubdomainPrefix):]
		if domain == "" {
			return "", false
		}
		return wildcardSubdomainPrefix + domain, true
	}
	return rule, true
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
