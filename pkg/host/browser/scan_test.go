package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/manual"
)

func TestDecodeScanResult(t *testing.T) {
	raw := map[string]interface{}{
		"url":   "https://a.example.com/",
		"title": "Home",
		"elements": []interface{}{
			map[string]interface{}{"kind": "a", "ref": "/x.pdf", "text": "X"},
			map[string]interface{}{"kind": "object", "ref": "/y", "name": "y", "type": "application/pdf"},
		},
	}
	res, err := decodeScanResult(raw)
	require.NoError(t, err)
	assert.Equal(t, manual.ScanResult{
		URL:   "https://a.example.com/",
		Title: "Home",
		Elements: []manual.Element{
			{Kind: manual.KindAnchor, Ref: "/x.pdf", Text: "X"},
			{Kind: manual.KindObject, Ref: "/y", Name: "y", Type: "application/pdf"},
		},
	}, res)

	_, err = decodeScanResult(nil)
	assert.True(t, errors.Is(err, manual.ErrScanUnavailable))

	_, err = decodeScanResult("not an object")
	assert.True(t, errors.Is(err, manual.ErrScanUnavailable))
}

func TestPickerChoice(t *testing.T) {
	candidates := []manual.Candidate{
		{URL: "https://a.example.com/1.pdf", Source: manual.SourceLink, Label: "one"},
		{URL: "https://a.example.com/2.pdf", Source: manual.SourceEmbed, Label: "two"},
	}

	url, ok, err := pickerChoice("https://a.example.com/2.pdf", candidates)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://a.example.com/2.pdf", url)

	_, ok, err = pickerChoice(nil, candidates)
	require.NoError(t, err)
	assert.False(t, ok, "dismissed")

	_, _, err = pickerChoice("https://evil.example.com/", candidates)
	assert.Error(t, err)

	_, _, err = pickerChoice(42.0, candidates)
	assert.Error(t, err)

	arg := pickerArg(candidates)
	require.Len(t, arg, 2)
	assert.Equal(t, "embed", arg[1]["source"])
}

func TestAwaitChoice(t *testing.T) {
	cands := []manual.Candidate{{URL: "https://a.example.com/a.pdf"}}

	t.Run("cancelled context is a dismissal", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		dismissed := false
		url, ok, err := awaitChoice(ctx, make(chan pickerResult), func() { dismissed = true }, cands)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, url)
		assert.True(t, dismissed)
	})

	t.Run("answer", func(t *testing.T) {
		done := make(chan pickerResult, 1)
		done <- pickerResult{value: "https://a.example.com/a.pdf"}
		url, ok, err := awaitChoice(context.Background(), done, func() { t.Fatal("dismissed") }, cands)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://a.example.com/a.pdf", url)
	})

	t.Run("script error", func(t *testing.T) {
		done := make(chan pickerResult, 1)
		done <- pickerResult{err: errors.New("page closed")}
		_, ok, err := awaitChoice(context.Background(), done, func() {}, cands)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestHeaderList(t *testing.T) {
	headers := headerList(map[string]string{"content-type": "application/pdf"})
	assert.True(t, detect.HasPdfByHeaders(headers))
	assert.Empty(t, headerList(nil))
}
