// Package app wires the pipeline together: fetch sources and forecasts,
// plan the document, render it, save it and push it to the device.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"dayplan/internal/capture"
	"dayplan/internal/config"
	"dayplan/internal/ics"
	appLog "dayplan/internal/log"
	"dayplan/internal/model"
	"dayplan/internal/planner"
	"dayplan/internal/remarkable"
	"dayplan/internal/render"
	"dayplan/internal/weather"
	"dayplan/internal/web"
)

// Printer turns rendered HTML into print artifacts.
type Printer interface {
	PrintPDF(ctx context.Context, html []byte) ([]byte, error)
	ScreenshotPNG(ctx context.Context, html []byte) ([]byte, error)
}

// Device is the transfer target for finished documents.
type Device interface {
	Reachable(ctx context.Context) (string, error)
	Upload(ctx context.Context, doc remarkable.Document) (string, error)
}

// RunOptions tweaks a single cycle.
type RunOptions struct {
	// TestMode skips the device upload.
	TestMode bool
	// Dump also writes the HTML, the page descriptors as JSON and a PNG
	// preview next to the PDF.
	Dump bool
}

// Result describes a finished cycle.
type Result struct {
	Document   model.Document
	Sources    []model.SourceResult
	PDFPath    string
	DocumentID string
	Uploaded   bool
}

// Runner executes planning cycles against the current configuration.
// Cycles are serialized; the configuration can be swapped between them.
type Runner struct {
	mu  sync.RWMutex
	cfg *config.Config

	runMu sync.Mutex

	// Store, if set, receives every finished snapshot.
	Store *web.Store
	// Now is the clock; tests pin it.
	Now func() time.Time
	// NewPrinter and NewDevice build collaborators from the config in
	// effect for a cycle.
	NewPrinter func(cfg *config.Config) Printer
	NewDevice  func(cfg *config.Config) Device
}

// NewRunner returns a Runner using headless Chromium and SSH transfer.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		cfg:        cfg,
		Now:        time.Now,
		NewPrinter: newChromePrinter,
		NewDevice:  newRemarkable,
	}
}

// Config returns the configuration in effect.
func (r *Runner) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// SetConfig swaps the configuration used by subsequent cycles.
func (r *Runner) SetConfig(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// RunOnce performs one full cycle. Source and forecast failures degrade
// the document; planning, rendering, saving and uploading errors are
// returned.
func (r *Runner) RunOnce(ctx context.Context, opts RunOptions) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	cfg := r.Config()
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	now := r.Now()
	started := time.Now()

	sources := r.fetchSources(ctx, cfg, loc)
	forecasts := r.fetchForecasts(ctx, cfg, loc)

	doc, err := planner.Plan(planInput(cfg, loc, now, sources, forecasts))
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	appLog.Info("document planned", "name", doc.Name, "pages", len(doc.Pages))

	html, err := render.HTML(doc)
	if err != nil {
		return nil, err
	}

	printer := r.NewPrinter(cfg)
	pdf, err := printer.PrintPDF(ctx, html)
	if err != nil {
		return nil, err
	}

	var png []byte
	if opts.Dump || r.Store != nil {
		png, err = printer.ScreenshotPNG(ctx, html)
		if err != nil {
			appLog.Warn("preview capture failed", "err", err)
		}
	}

	res := &Result{Document: doc, Sources: sources}
	res.PDFPath, err = writeOutputs(cfg.OutputDir, doc, html, pdf, png, opts.Dump)
	if err != nil {
		return nil, err
	}

	if r.Store != nil {
		r.Store.Set(&web.Snapshot{Document: doc, HTML: html, PDF: pdf, PNG: png})
	}

	switch {
	case opts.TestMode:
		appLog.Info("test mode: upload skipped", "pdf", res.PDFPath)
	case !cfg.Device.Enabled:
		appLog.Info("device disabled: upload skipped", "pdf", res.PDFPath)
	default:
		id, err := r.NewDevice(cfg).Upload(ctx, remarkable.Document{
			VisibleName: doc.VisibleName,
			PDF:         pdf,
			PageCount:   len(doc.Pages),
			Modified:    now,
		})
		if err != nil {
			return res, fmt.Errorf("upload: %w", err)
		}
		res.DocumentID = id
		res.Uploaded = true
	}

	appLog.Info("cycle complete", "name", doc.Name, "pdf", res.PDFPath, "uploaded", res.Uploaded, "elapsed", time.Since(started).Round(time.Millisecond))
	return res, nil
}

func (r *Runner) fetchSources(ctx context.Context, cfg *config.Config, loc *time.Location) []model.SourceResult {
	sources := make([]ics.Source, 0, len(cfg.Calendars))
	for _, c := range cfg.Calendars {
		sources = append(sources, ics.Source{ID: c.ID, Kind: c.Kind, URL: c.URL, Icon: c.Icon})
	}

	fetcher := ics.NewFetcher(filepath.Join(cfg.CacheDir, "feeds"), 0)
	fetched := fetcher.FetchAll(ctx, sources)

	results := make([]model.SourceResult, len(fetched))
	for i, f := range fetched {
		results[i] = ics.Ingest(f, loc)
		res := results[i]
		switch res.Status {
		case model.StatusOK:
			appLog.Debug("source ok", "id", res.SourceID, "definitions", len(res.Batch.Definitions), "overrides", len(res.Batch.Overrides))
		default:
			appLog.Warn("source "+res.Status.String(), "id", res.SourceID, "err", res.Err)
		}
	}
	return results
}

func (r *Runner) fetchForecasts(ctx context.Context, cfg *config.Config, loc *time.Location) []weather.Result {
	if len(cfg.Locations) == 0 {
		return nil
	}
	client := weather.NewClient(cfg.Weather.BaseURL, cfg.WeatherTimeout())
	return client.FetchAll(ctx, weatherLocations(cfg), loc)
}

func weatherLocations(cfg *config.Config) []weather.Location {
	locs := make([]weather.Location, 0, len(cfg.Locations))
	for _, l := range cfg.Locations {
		locs = append(locs, weather.Location{Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude})
	}
	return locs
}

func planInput(cfg *config.Config, loc *time.Location, now time.Time, sources []model.SourceResult, forecasts []weather.Result) planner.Input {
	return planner.Input{
		Now:              now,
		Location:         loc,
		ItemsPerPage:     cfg.ItemsPerPage,
		LookbackDays:     cfg.LookbackDays,
		LikelyThreshold:  cfg.Weather.LikelyThreshold,
		DocumentPrefix:   cfg.DocumentPrefix,
		TodayPrefix:      cfg.Headers.TodayPrefix,
		TomorrowPrefix:   cfg.Headers.TomorrowPrefix,
		TodayEpigraph:    epigraph(cfg.Headers.Epigraph),
		TomorrowEpigraph: epigraph(cfg.Headers.TomorrowEpigraph),
		Sources:          sources,
		Forecasts:        forecasts,
		TodayTasks:       model.Tasks(cfg.Tasks.Today...),
		TomorrowTasks:    model.Tasks(cfg.Tasks.Tomorrow...),
	}
}

func epigraph(e *config.EpigraphConfig) *model.Epigraph {
	if e == nil || e.Quote == "" {
		return nil
	}
	return &model.Epigraph{Quote: e.Quote, Author: e.Author}
}

// writeOutputs saves the PDF (and, when dumping, the HTML, JSON and PNG)
// under dir named after the document. Every file is replaced atomically.
func writeOutputs(dir string, doc model.Document, html, pdf, png []byte, dump bool) (string, error) {
	base := filepath.Join(dir, doc.Name)
	pdfPath := base + ".pdf"
	if err := config.WriteFileAtomic(pdfPath, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	if !dump {
		return pdfPath, nil
	}

	descriptors, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode pages: %w", err)
	}
	files := []struct {
		path string
		data []byte
	}{
		{base + ".html", html},
		{base + ".json", descriptors},
		{base + ".png", png},
	}
	var errs []error
	for _, f := range files {
		if len(f.data) == 0 {
			continue
		}
		if err := config.WriteFileAtomic(f.path, f.data, 0o644); err != nil {
			errs = append(errs, err)
			continue
		}
		appLog.Debug("dump written", "path", f.path, "bytes", len(f.data))
	}
	return pdfPath, errors.Join(errs...)
}

type chromePrinter struct {
	opts capture.Options
}

func newChromePrinter(cfg *config.Config) Printer {
	return chromePrinter{opts: capture.Options{
		ExecPath:    cfg.Browser.Path,
		NoSandbox:   cfg.Browser.NoSandbox,
		PaperWidth:  render.PaperWidthInches,
		PaperHeight: render.PaperHeightInches,
		Timeout:     cfg.BrowserTimeout(),
	}}
}

func (p chromePrinter) PrintPDF(ctx context.Context, html []byte) ([]byte, error) {
	return capture.PrintPDF(ctx, html, p.opts)
}

func (p chromePrinter) ScreenshotPNG(ctx context.Context, html []byte) ([]byte, error) {
	return capture.ScreenshotPNG(ctx, html, p.opts)
}

func newRemarkable(cfg *config.Config) Device {
	d := cfg.Device
	return remarkable.New(remarkable.Config{
		Hosts:       d.Hosts,
		Port:        d.Port,
		User:        d.User,
		Password:    d.Password,
		KeyPath:     expandHome(d.KeyPath),
		KnownHosts:  expandHome(d.KnownHosts),
		DocumentDir: d.DocumentDir,
		RestartUI:   d.RestartUI,
		Timeout:     cfg.DeviceTimeout(),
	})
}
