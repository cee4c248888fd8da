package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/host/htmlscan"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/manual"
	"github.com/entrhq/darkpdf/pkg/takeover"
	"github.com/entrhq/darkpdf/pkg/ui/picker"
)

var (
	scanFirst bool
	scanList  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <page-url>",
	Short: "Find the PDFs linked or embedded in a page and pick one",
	Long: `Scan fetches a page, verifies its PDF links and embedded documents and,
when several are found, lets you pick one in the terminal. The viewer launch
URL of the chosen PDF is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runScan(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanFirst, "first", false, "open the best match without asking")
	scanCmd.Flags().BoolVar(&scanList, "list", false, "only list the verified candidates")
	rootCmd.AddCommand(scanCmd)
}

func runScan(ctx context.Context, cfg *config.DaemonConfig, pageURL string, out io.Writer) error {
	logger := logging.MustLogger("scan")
	defer logger.Close()

	client := &http.Client{}
	viewer := &printViewer{viewerURL: cfg.ViewerURL, out: out, errOut: os.Stderr}

	var chooser manual.Chooser
	switch {
	case scanList:
		chooser = listChooser{out: out}
	case !scanFirst:
		chooser = picker.Chooser{In: os.Stdin, Out: os.Stderr}
	}

	flow := manual.NewFlow(manual.Deps{
		Viewer:   viewer,
		Detector: detect.NewDetector(client, cfg.Probe.Timeout, logger.With("detect")),
		Scanner:  urlScanner{scanner: htmlscan.New(client, 0, logger.With("htmlscan")), url: pageURL},
		Chooser:  chooser,
		Logger:   logger,
	})

	outcome := flow.Invoke(ctx, takeover.Tab{ID: 0, URL: pageURL})
	logger.Infof("scan of %s: %s", pageURL, outcome.Action)
	switch outcome.Action {
	case manual.ActionNotFound, manual.ActionScanFailed, manual.ActionOpenFailed:
		return fmt.Errorf("no PDF opened for %s (%s)", pageURL, outcome.Action)
	}
	return nil
}

// urlScanner scans one fixed page regardless of tab.
type urlScanner struct {
	scanner *htmlscan.Scanner
	url     string
}

func (s urlScanner) ScanTab(ctx context.Context, _ int) (manual.ScanResult, error) {
	return s.scanner.ScanURL(ctx, s.url)
}

// listChooser prints the candidates and cancels.
type listChooser struct{ out io.Writer }

func (c listChooser) Choose(_ context.Context, _ int, candidates []manual.Candidate) (string, bool, error) {
	fmt.Fprint(c.out, picker.Plain(candidates))
	return "", false, nil
}

// printViewer prints launch URLs instead of opening tabs.
type printViewer struct {
	viewerURL string
	out       io.Writer
	errOut    io.Writer
}

func (v *printViewer) Open(_ context.Context, req takeover.OpenRequest) bool {
	pdfURL, ok := detect.NormalizeHTTPURL(req.PdfURL)
	if !ok {
		return false
	}
	source, ok := detect.NormalizeHTTPURL(req.SourceURL)
	if !ok {
		source = pdfURL
	}
	fmt.Fprintln(v.out, takeover.BuildViewerURL(v.viewerURL, pdfURL, source))
	return true
}

func (v *printViewer) OpenBlank(context.Context) error {
	fmt.Fprintln(v.out, v.viewerURL)
	return nil
}

func (v *printViewer) ShowPageHint(_ context.Context, _ int, message string) {
	fmt.Fprintln(v.errOut, message)
}

func (v *printViewer) ShowBadgeHint(_ context.Context, _ int, message string) {
	fmt.Fprintln(v.errOut, message)
}
