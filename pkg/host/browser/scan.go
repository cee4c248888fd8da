package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/darkpdf/pkg/manual"
)

const dismissPickerScript = `() => { const el = document.getElementById("__darkpdf_picker__"); if (el) el.remove(); }`

// ScanTab runs the element-collection script in the tab's page.
func (h *Host) ScanTab(ctx context.Context, tabID int) (manual.ScanResult, error) {
	e, err := h.entry(tabID)
	if err != nil {
		return manual.ScanResult{}, err
	}
	raw, err := e.page.Evaluate(scanScript, map[string]interface{}{
		"anchors": manual.MaxAnchors,
		"embeds":  manual.MaxEmbeds,
	})
	if err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: %v", manual.ErrScanUnavailable, err)
	}
	return decodeScanResult(raw)
}

// decodeScanResult converts the script's JSON-like return value.
func decodeScanResult(raw interface{}) (manual.ScanResult, error) {
	if raw == nil {
		return manual.ScanResult{}, fmt.Errorf("%w: script returned nothing", manual.ErrScanUnavailable)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: %v", manual.ErrScanUnavailable, err)
	}
	var res manual.ScanResult
	if err := json.Unmarshal(data, &res); err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: %v", manual.ErrScanUnavailable, err)
	}
	return res, nil
}

// Choose shows the in-page picker and waits for the user. Cancelling ctx
// removes the picker and counts as a dismissal.
func (h *Host) Choose(ctx context.Context, tabID int, candidates []manual.Candidate) (string, bool, error) {
	e, err := h.entry(tabID)
	if err != nil {
		return "", false, err
	}

	done := make(chan pickerResult, 1)
	go func() {
		v, err := e.page.Evaluate(pickerScript, pickerArg(candidates))
		done <- pickerResult{v, err}
	}()

	dismiss := func() {
		if _, err := e.page.Evaluate(dismissPickerScript); err != nil {
			h.logger.Debugf("tab %d: could not dismiss picker: %v", tabID, err)
		}
	}
	return awaitChoice(ctx, done, dismiss, candidates)
}

type pickerResult struct {
	value interface{}
	err   error
}

// awaitChoice waits for the picker's answer. A cancelled ctx dismisses the
// picker and reports no selection.
func awaitChoice(ctx context.Context, done <-chan pickerResult, dismiss func(), candidates []manual.Candidate) (string, bool, error) {
	select {
	case <-ctx.Done():
		dismiss()
		return "", false, nil
	case r := <-done:
		if r.err != nil {
			return "", false, fmt.Errorf("picker failed: %w", r.err)
		}
		return pickerChoice(r.value, candidates)
	}
}

func pickerArg(candidates []manual.Candidate) []map[string]interface{} {
	out := make([]map[string]interface{}, len(candidates))
	for i, c := range candidates {
		out[i] = map[string]interface{}{
			"url":    c.URL,
			"label":  c.Label,
			"source": string(c.Source),
		}
	}
	return out
}

// pickerChoice validates the picker's answer against the offered list.
func pickerChoice(value interface{}, candidates []manual.Candidate) (string, bool, error) {
	if value == nil {
		return "", false, nil
	}
	url, ok := value.(string)
	if !ok {
		return "", false, fmt.Errorf("picker returned %T", value)
	}
	for _, c := range candidates {
		if c.URL == url {
			return url, true, nil
		}
	}
	return "", false, fmt.Errorf("picker returned unknown url %q", url)
}
