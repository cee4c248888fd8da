package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHint(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "src query parameter",
			in:   "chrome-extension://x/index.html?src=https%3A%2F%2Farxiv.org%2Fpdf%2F1706.03762.pdf",
			want: "https://arxiv.org/pdf/1706.03762.pdf",
			ok:   true,
		},
		{
			name: "file query parameter",
			in:   "chrome-extension://x/index.html?file=https%3A%2F%2Farxiv.org%2Fpdf%2F2106.14834.pdf",
			want: "https://arxiv.org/pdf/2106.14834.pdf",
			ok:   true,
		},
		{
			name: "fragment",
			in:   "chrome-extension://x/viewer.html#https://arxiv.org/pdf/2303.08774.pdf",
			want: "https://arxiv.org/pdf/2303.08774.pdf",
			ok:   true,
		},
		{
			name: "direct pdf url",
			in:   "https://arxiv.org/pdf/2407.21783.pdf",
			want: "https://arxiv.org/pdf/2407.21783.pdf",
			ok:   true,
		},
		{
			name: "no hint",
			in:   "https://example.com/index.html?q=hello#top",
			ok:   false,
		},
		{
			name: "double encoded",
			in:   "chrome-extension://x/?file=https%253A%252F%252Fa.com%252Fdoc.pdf",
			want: "https://a.com/doc.pdf",
			ok:   true,
		},
		{
			name: "value mentioning pdf under another key",
			in:   "chrome-extension://x/open?doc=https%3A%2F%2Fb.com%2Fx.pdf",
			want: "https://b.com/x.pdf",
			ok:   true,
		},
		{
			name: "embedded url inside text",
			in:   "edge://viewer/?url=see%20https%3A%2F%2Fc.com%2Fy.pdf%20now",
			want: "https://c.com/y.pdf",
			ok:   true,
		},
		{
			name: "wrapped url that is not pdf-shaped",
			in:   "chrome-extension://x/index.html?url=https%3A%2F%2Fexample.com%2Fpage",
			ok:   false,
		},
		{
			name: "empty",
			in:   "",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveHint(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
