package detect

import (
	"context"
	"net/http"
	"time"

	"github.com/entrhq/darkpdf/pkg/logging"
)

// DefaultProbeTimeout bounds a single content-type probe.
const DefaultProbeTimeout = 6 * time.Second

// ProbeResult is the outcome of a HEAD probe. Status is 0 when no response
// was received.
type ProbeResult struct {
	IsPdf  bool
	Status int
}

// Detector confirms PDF URLs, probing the network when the URL shape alone
// is inconclusive. It fails closed: any error means "not a PDF".
type Detector struct {
	client  *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

// NewDetector creates a detector. A nil client uses http.DefaultClient and a
// non-positive timeout uses DefaultProbeTimeout.
func NewDetector(client *http.Client, timeout time.Duration, logger *logging.Logger) *Detector {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Detector{client: client, timeout: timeout, logger: logger}
}

// IsPdfURL reports whether rawURL is a PDF. PDF-shaped URLs are accepted
// without a network call.
func (d *Detector) IsPdfURL(ctx context.Context, rawURL string) bool {
	normalized, ok := NormalizeHTTPURL(rawURL)
	if !ok {
		return false
	}
	if LooksLikePdfURL(normalized) {
		return true
	}
	return d.Probe(ctx, normalized).IsPdf
}

// Probe issues a HEAD request, following redirects, and inspects the
// content-type of the final response.
func (d *Detector) Probe(ctx context.Context, rawURL string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		d.logger.Debugf("probe %s: %v", rawURL, err)
		return ProbeResult{}
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debugf("probe %s failed: %v", rawURL, err)
		return ProbeResult{}
	}
	defer resp.Body.Close()

	return ProbeResult{
		IsPdf:  isPdfContentType(resp.Header.Get("Content-Type")),
		Status: resp.StatusCode,
	}
}
