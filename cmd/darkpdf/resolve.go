package main

import (
	"fmt"
	"net/http"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

var (
	resolveProbe bool
	resolveCopy  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Print the PDF a URL points at and its viewer launch URL",
	Long: `Resolve finds the PDF behind a URL without a browser: a PDF-shaped URL
resolves to itself and viewer or download wrappers are unwrapped from their
query or fragment. With --probe the URL is also checked with a HEAD request.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		launch, pdfURL, err := resolveLaunchURL(cmd, cfg, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pdf:    %s\n", pdfURL)
		fmt.Fprintf(out, "viewer: %s\n", launch)

		if resolveCopy {
			if err := clipboard.WriteAll(launch); err != nil {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
			fmt.Fprintln(out, "copied viewer URL to clipboard")
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveProbe, "probe", false, "probe the URL's content type when no hint resolves it")
	resolveCmd.Flags().BoolVar(&resolveCopy, "copy", false, "copy the viewer URL to the clipboard")
	rootCmd.AddCommand(resolveCmd)
}

func resolveLaunchURL(cmd *cobra.Command, cfg *config.DaemonConfig, rawURL string) (launch, pdfURL string, err error) {
	pdfURL, ok := detect.ResolveHint(rawURL)
	if !ok && resolveProbe {
		d := detect.NewDetector(&http.Client{}, cfg.Probe.Timeout, logging.Discard())
		pdfURL, ok = d.ResolveForOpen(cmd.Context(), rawURL)
	}
	if !ok {
		return "", "", fmt.Errorf("%s does not resolve to an accessible PDF", rawURL)
	}

	source, ok := detect.NormalizeHTTPURL(rawURL)
	if !ok {
		source = pdfURL
	}
	return takeover.BuildViewerURL(cfg.ViewerURL, pdfURL, source), pdfURL, nil
}
