// Package server exposes the darkpdf service over a small local HTTP API:
// the bootstrap message, the settings record, installed rules, per-tab
// takeover state and the manual "open in viewer" actions.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/rulesync"
	"github.com/entrhq/darkpdf/pkg/service"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

// RequestIDHeader carries the id assigned to each API request.
const RequestIDHeader = "X-Request-Id"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Options configure the handler.
type Options struct {
	// ViewerDir is served at /viewer/ when set.
	ViewerDir string
	Logger    *logging.Logger
}

type api struct {
	svc    *service.Service
	tabs   takeover.Tabs
	logger *logging.Logger
}

// New builds the HTTP handler. tabs resolves the tab a manual action is
// aimed at.
func New(svc *service.Service, tabs takeover.Tabs, opts Options) http.Handler {
	a := &api{svc: svc, tabs: tabs, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(a.requestLog)
		r.Get("/health", a.health)
		r.Post("/bootstrap", a.bootstrap)
		r.Get("/settings", a.getSettings)
		r.Put("/settings", a.putSettings)
		r.Get("/rules", a.getRules)
		r.Route("/tabs/{id}", func(r chi.Router) {
			r.Get("/", a.getTab)
			r.Post("/invoke", a.invoke)
			r.Post("/open-link", a.openLink)
			r.Post("/open-current", a.openCurrent)
		})
	})

	if opts.ViewerDir != "" {
		r.Handle("/viewer/*", http.StripPrefix("/viewer/", http.FileServer(http.Dir(opts.ViewerDir))))
	}
	return r
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (a *api) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debugf("%s %s %s -> %d (%s)", id, r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// bootstrap answers the viewer's bootstrap message: it reloads and
// normalizes the record and reinstalls the rules.
func (a *api) bootstrap(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Bootstrap(r.Context()); err != nil {
		a.logger.Warnf("bootstrap failed: %v", err)
		writeJSON(w, http.StatusOK, errorResponse{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (a *api) getSettings(w http.ResponseWriter, r *http.Request) {
	current, err := a.svc.Settings().Get(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (a *api) putSettings(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := decode(r, &raw); err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}
	saved, err := a.svc.Settings().Save(r.Context(), raw)
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *api) getRules(w http.ResponseWriter, r *http.Request) {
	rules := a.svc.Rules().Installed()
	if rules == nil {
		rules = []rulesync.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (a *api) getTab(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}
	snap, ok := a.svc.Controller().Snapshot(id)
	if !ok {
		snap = takeover.TabSnapshot{TabID: id}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) invoke(w http.ResponseWriter, r *http.Request) {
	tab, ok := a.lookupTab(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Manual().Invoke(r.Context(), tab))
}

func (a *api) openLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decode(r, &body); err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}
	if body.URL == "" {
		a.fail(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	tab, ok := a.lookupTab(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Manual().OpenLink(r.Context(), tab, body.URL))
}

func (a *api) openCurrent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PageURL string `json:"pageUrl"`
	}
	if err := decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
		a.fail(w, http.StatusBadRequest, err)
		return
	}
	tab, ok := a.lookupTab(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Manual().OpenCurrent(r.Context(), tab, body.PageURL))
}

// lookupTab resolves the {id} parameter. takeover.NoTab is accepted and
// yields an empty tab.
func (a *api) lookupTab(w http.ResponseWriter, r *http.Request) (takeover.Tab, bool) {
	id, err := tabID(r)
	if err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return takeover.Tab{}, false
	}
	if id == takeover.NoTab {
		return takeover.Tab{ID: takeover.NoTab}, true
	}
	tab, err := a.tabs.Get(r.Context(), id)
	if errors.Is(err, takeover.ErrTabNotFound) {
		a.fail(w, http.StatusNotFound, err)
		return takeover.Tab{}, false
	}
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return takeover.Tab{}, false
	}
	return tab, true
}

func (a *api) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.logger.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{OK: false, Error: err.Error()})
}

func tabID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < takeover.NoTab {
		return 0, errors.New("invalid tab id: " + raw)
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
