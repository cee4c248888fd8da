package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

func testConfig(t *testing.T) *config.DaemonConfig {
	t.Helper()
	logging.SetLogDirectory(t.TempDir())
	cfg := config.DefaultDaemonConfig()
	cfg.ViewerURL = "https://viewer.example.com/v.html"
	return cfg
}

func TestResolveLaunchURL(t *testing.T) {
	cfg := testConfig(t)
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	wrapped := "https://mirror.example.com/view?file=https%3A%2F%2Fdocs.example.com%2Fa.pdf&page=2"
	launch, pdf, err := resolveLaunchURL(cmd, cfg, wrapped)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/a.pdf", pdf)
	assert.Equal(t, takeover.BuildViewerURL(cfg.ViewerURL, pdf, wrapped), launch)

	_, _, err = resolveLaunchURL(cmd, cfg, "https://example.com/about")
	assert.Error(t, err)
}

func TestResolveLaunchURL_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	resolveProbe = true
	defer func() { resolveProbe = false }()

	_, pdf, err := resolveLaunchURL(cmd, cfg, srv.URL+"/download?id=1")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/download?id=1", pdf)
}

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Article</title></head><body>
<a href="/files/a.pdf">Full text</a>
<a href="/download?id=2">Get PDF</a>
<a href="/about">About</a>
</body></html>`)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunScan_List(t *testing.T) {
	srv := articleServer(t)
	cfg := testConfig(t)

	scanList = true
	defer func() { scanList = false }()

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), cfg, srv.URL+"/article", &out))
	assert.Contains(t, out.String(), "1. Full text")
	assert.Contains(t, out.String(), "2. Get PDF")
	assert.NotContains(t, out.String(), "About")
}

func TestRunScan_First(t *testing.T) {
	srv := articleServer(t)
	cfg := testConfig(t)

	scanFirst = true
	defer func() { scanFirst = false }()

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), cfg, srv.URL+"/article", &out))
	want := takeover.BuildViewerURL(cfg.ViewerURL, srv.URL+"/files/a.pdf", srv.URL+"/article")
	assert.Equal(t, want+"\n", out.String())
}

func TestRunScan_NothingFound(t *testing.T) {
	srv := articleServer(t)
	cfg := testConfig(t)

	scanFirst = true
	defer func() { scanFirst = false }()

	var out bytes.Buffer
	err := runScan(context.Background(), cfg, srv.URL+"/about", &out)
	assert.Error(t, err)
}
