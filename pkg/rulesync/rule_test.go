package rulesync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/darkpdf/pkg/settings"
)

const viewer = "http://127.0.0.1:8780/viewer/viewer.html"

func TestBuild(t *testing.T) {
	t.Run("disabled yields no rules", func(t *testing.T) {
		s := settings.Default()
		s.AutoTakeoverEnabled = false
		assert.Empty(t, Build(s, viewer))
	})

	t.Run("blacklist star yields no rules", func(t *testing.T) {
		s := settings.Default()
		s.Blacklist = []string{"a.com", "*"}
		s.Whitelist = []string{"b.com"}
		assert.Empty(t, Build(s, viewer))
	})

	t.Run("default settings", func(t *testing.T) {
		rules := Build(settings.Default(), viewer)
		require.Len(t, rules, 2)
		assert.Equal(t, PdfSuffixRuleID, rules[0].ID)
		assert.Equal(t, PdfSegmentRuleID, rules[1].ID)
		for _, r := range rules {
			assert.Equal(t, 1, r.Priority)
			assert.Equal(t, ActionRedirect, r.Action.Type)
			assert.Equal(t, viewer+`#\0`, r.Action.Redirect.RegexSubstitution)
			assert.Equal(t, []string{ResourceMainFrame}, r.Condition.ResourceTypes)
			assert.Nil(t, r.Condition.RequestDomains)
			assert.Nil(t, r.Condition.ExcludedRequestDomains)
		}
	})

	t.Run("domain lists", func(t *testing.T) {
		s := settings.Default()
		s.Whitelist = []string{"*.arxiv.org", "arxiv.org", "docs.example.com", "bad_domain.com"}
		s.Blacklist = []string{"*.ads.example.com"}
		rules := Build(s, viewer)
		require.Len(t, rules, 2)
		assert.Equal(t, []string{"arxiv.org", "docs.example.com"}, rules[0].Condition.RequestDomains)
		assert.Equal(t, []string{"ads.example.com"}, rules[0].Condition.ExcludedRequestDomains)
	})

	t.Run("whitelist star removes restriction", func(t *testing.T) {
		s := settings.Default()
		s.Whitelist = []string{"a.com", "*"}
		rules := Build(s, viewer)
		require.Len(t, rules, 2)
		assert.Nil(t, rules[0].Condition.RequestDomains)
	})
}

func TestRuleJSONShape(t *testing.T) {
	rules := Build(settings.Default(), viewer)
	data, err := json.Marshal(rules[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1001,
		"priority": 1,
		"action": {"type": "redirect", "redirect": {"regexSubstitution": "http://127.0.0.1:8780/viewer/viewer.html#\\0"}},
		"condition": {"resourceTypes": ["main_frame"], "regexFilter": "^https?://[^\\s#?]+\\.pdf(?:[?#].*)?$"}
	}`, string(data))
}

func TestRuleMatches(t *testing.T) {
	s := settings.Default()
	s.Whitelist = []string{"*.example.com"}
	s.Blacklist = []string{"private.example.com"}
	rules := Build(s, viewer)
	suffix, segment := rules[0], rules[1]

	assert.True(t, suffix.Matches("https://example.com/a.pdf", ResourceMainFrame))
	assert.True(t, suffix.Matches("https://docs.example.com/a.pdf?x=1", ResourceMainFrame))
	assert.False(t, suffix.Matches("https://docs.example.com/a.pdf", "sub_frame"))
	assert.False(t, suffix.Matches("https://other.org/a.pdf", ResourceMainFrame))
	assert.False(t, suffix.Matches("https://x.private.example.com/a.pdf", ResourceMainFrame))
	assert.False(t, suffix.Matches("https://example.com/a.html", ResourceMainFrame))

	assert.True(t, segment.Matches("https://example.com/pdf/1234", ResourceMainFrame))
	assert.False(t, segment.Matches("https://example.com/abs/1234", ResourceMainFrame))
}

func TestRuleRedirectTarget(t *testing.T) {
	rule := Build(settings.Default(), viewer)[0]

	got, ok := rule.RedirectTarget("https://arxiv.org/files/a.pdf?dl=1")
	require.True(t, ok)
	assert.Equal(t, viewer+"#https://arxiv.org/files/a.pdf?dl=1", got)

	_, ok = rule.RedirectTarget("https://arxiv.org/abs/1")
	assert.False(t, ok)
}
