package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/darkpdf/pkg/settings"
)

func TestMatchesRule(t *testing.T) {
	tests := []struct {
		host string
		rule string
		want bool
	}{
		{"anything.example", "*", true},
		{"", "*", true},
		{"a.b.com", "*.b.com", true},
		{"x.y.b.com", "*.b.com", true},
		{"b.com", "*.b.com", false},
		{"ab.com", "*.b.com", false},
		{"b.com", "b.com", true},
		{"a.b.com", "b.com", false},
		{"a?c.com", "*.c.com", false},
		{"x.a?c.com", "*.a?c.com", true},
		{"x.abc.com", "*.a?c.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesRule(tt.host, tt.rule), "MatchesRule(%q, %q)", tt.host, tt.rule)
	}
}

func TestIsAllowed(t *testing.T) {
	base := settings.Default()

	t.Run("disabled denies everything", func(t *testing.T) {
		s := base
		s.AutoTakeoverEnabled = false
		assert.False(t, IsAllowed("example.com", s))
	})

	t.Run("empty host denied", func(t *testing.T) {
		assert.False(t, IsAllowed("", base))
		assert.False(t, IsAllowedURL("not a url", base))
	})

	t.Run("empty lists allow", func(t *testing.T) {
		assert.True(t, IsAllowed("example.com", base))
	})

	t.Run("blacklist wins over whitelist", func(t *testing.T) {
		s := base
		s.Whitelist = []string{"*.example.com"}
		s.Blacklist = []string{"bad.example.com"}
		assert.True(t, IsAllowed("good.example.com", s))
		assert.False(t, IsAllowed("bad.example.com", s))
		assert.False(t, IsAllowed("other.org", s))
	})

	t.Run("blacklist star denies all", func(t *testing.T) {
		s := base
		s.Blacklist = []string{"*"}
		for _, wl := range [][]string{nil, {"*"}, {"a.com"}} {
			s.Whitelist = wl
			for _, host := range []string{"a.com", "b.org", "x.y.z"} {
				assert.False(t, IsAllowed(host, s))
			}
		}
	})

	t.Run("url form", func(t *testing.T) {
		s := base
		s.Whitelist = []string{"arxiv.org"}
		assert.True(t, IsAllowedURL("https://ARXIV.org/pdf/1.pdf", s))
		assert.False(t, IsAllowedURL("https://export.arxiv.org/pdf/1.pdf", s))
	})
}
