package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	for _, raw := range []map[string]interface{}{nil, {}, {"unknown": 1}} {
		s := Normalize(raw)
		assert.True(t, s.AutoTakeoverEnabled)
		assert.True(t, s.AutoOutlineAutoFitEnabled)
		assert.Equal(t, ThemePreset, s.ThemeMode)
		assert.Equal(t, "graphite-gray", s.ThemePresetID)
		assert.Equal(t, "#121212", s.CustomThemeColor)
		assert.Empty(t, s.Whitelist)
		assert.Empty(t, s.Blacklist)
	}
}

func TestNormalize_BooleansAreTrueUnlessExactlyFalse(t *testing.T) {
	tests := []struct {
		value interface{}
		want  bool
	}{
		{false, false},
		{true, true},
		{"false", true},
		{0, true},
		{nil, true},
	}
	for _, tt := range tests {
		s := Normalize(map[string]interface{}{
			"autoTakeoverEnabled":       tt.value,
			"autoOutlineAutoFitEnabled": tt.value,
		})
		assert.Equal(t, tt.want, s.AutoTakeoverEnabled, "value %#v", tt.value)
		assert.Equal(t, tt.want, s.AutoOutlineAutoFitEnabled, "value %#v", tt.value)
	}
}

func TestNormalize_Theme(t *testing.T) {
	s := Normalize(map[string]interface{}{
		"themeMode":        "custom",
		"themePresetId":    " Deep-Sea-Blue ",
		"customThemeColor": "ABCDEF",
	})
	assert.Equal(t, ThemeCustom, s.ThemeMode)
	assert.Equal(t, "deep-sea-blue", s.ThemePresetID)
	assert.Equal(t, "#abcdef", s.CustomThemeColor)

	s = Normalize(map[string]interface{}{
		"themeMode":        "Custom",
		"themePresetId":    "neon",
		"customThemeColor": "#12345",
	})
	assert.Equal(t, ThemePreset, s.ThemeMode)
	assert.Equal(t, DefaultThemePresetID, s.ThemePresetID)
	assert.Equal(t, DefaultCustomThemeColor, s.CustomThemeColor)
}

func TestNormalizeRuleList(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want []string
	}{
		{"delimited string", "a.com, b.com\nhttps://C.com/path\n\n", []string{"a.com", "b.com", "c.com"}},
		{"string slice", []string{"x.org", "X.org", "*.y.org"}, []string{"x.org", "*.y.org"}},
		{"mixed interface slice", []interface{}{"a.com", 7, nil, "a.com:8080"}, []string{"a.com"}},
		{"garbage", 42, []string{}},
		{"empty entries dropped", []string{" ", "*.", "https://"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRuleList(tt.raw))
		})
	}
}

func TestNormalizeRuleEntry(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"*", "*", true},
		{"  Example.COM ", "example.com", true},
		{"https://docs.example.com/a/b?c=d", "docs.example.com", true},
		{"http://example.com:8080", "example.com", true},
		{"example.com:8443/path", "example.com", true},
		{"*.Example.com", "*.example.com", true},
		{".example.com", "example.com", true},
		{"*.", "", false},
		{"", "", false},
		{"http://", "", false},
		{"https://bad host", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeRuleEntry(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRuleEntry_Idempotent(t *testing.T) {
	inputs := []string{
		"*", "a.com", "A.COM", " https://x.y.z:9/p ", "http://[::1]:8080/",
		"*.b.com", "..*.c.com", "d.com:80:90", "e.com/f/g", ".h.com",
		"ftp://i.com/j", "*..k.com", "l.com:abc", "https://*.m.com",
		"*.", ".", "::1", "https://", "n.com#frag", "o.com?q=1",
	}
	for _, in := range inputs {
		first, ok := NormalizeRuleEntry(in)
		if !ok {
			continue
		}
		second, ok2 := NormalizeRuleEntry(first)
		assert.True(t, ok2, "output %q of %q should normalize", first, in)
		assert.Equal(t, first, second, "input %q", in)
	}
}

func TestSettingsRecordRoundTrip(t *testing.T) {
	s := Normalize(map[string]interface{}{
		"autoTakeoverEnabled": false,
		"themeMode":           "custom",
		"whitelist":           "a.com,*.b.com",
		"blacklist":           []interface{}{"c.com"},
	})
	again := Normalize(s.Record())
	assert.True(t, s.Equal(again))
	assert.Equal(t, []interface{}{"a.com", "*.b.com"}, s.Record()["whitelist"])
}
