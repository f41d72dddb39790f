package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayplan/internal/config"
	"dayplan/internal/model"
	"dayplan/internal/remarkable"
	"dayplan/internal/web"
)

const workICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//dayplan//test//EN
BEGIN:VEVENT
UID:standup
SUMMARY:Standup
DTSTART;TZID=Europe/London:20250707T093000
DTEND;TZID=Europe/London:20250707T094500
RRULE:FREQ=DAILY;COUNT=10
END:VEVENT
END:VCALENDAR
`

const personalYAML = `
events:
  - uid: gym
    summary: Gym
    start: "2025-07-09T07:00"
    end: "2025-07-09T08:00"
`

const forecastJSON = `{
  "daily": {
    "time": ["2025-07-09", "2025-07-10"],
    "temperature_2m_max": [27.6, 22.0],
    "temperature_2m_min": [18.2, 17.0],
    "uv_index_max": [7.1, 6.0]
  },
  "hourly": {
    "time": ["2025-07-09T00:00", "2025-07-10T00:00"],
    "precipitation_probability": [0, 0],
    "precipitation": [0, 0],
    "uv_index": [0, 0]
  }
}`

type fakePrinter struct {
	pngErr error
}

func (fakePrinter) PrintPDF(_ context.Context, html []byte) ([]byte, error) {
	return append([]byte("%PDF "), html[:16]...), nil
}

func (p fakePrinter) ScreenshotPNG(context.Context, []byte) ([]byte, error) {
	if p.pngErr != nil {
		return nil, p.pngErr
	}
	return []byte("\x89PNG"), nil
}

type fakeDevice struct {
	mu        sync.Mutex
	uploaded  []remarkable.Document
	uploadErr error
	reachErr  error
}

func (d *fakeDevice) Reachable(context.Context) (string, error) {
	if d.reachErr != nil {
		return "", d.reachErr
	}
	return "10.11.99.1", nil
}

func (d *fakeDevice) Upload(_ context.Context, doc remarkable.Document) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadErr != nil {
		return "", d.uploadErr
	}
	d.uploaded = append(d.uploaded, doc)
	return "doc-1", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	work := filepath.Join(dir, "work.ics")
	require.NoError(t, os.WriteFile(work, []byte(strings.ReplaceAll(workICS, "\n", "\r\n")), 0o600))
	personal := filepath.Join(dir, "personal.yaml")
	require.NoError(t, os.WriteFile(personal, []byte(personalYAML), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastJSON))
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Timezone = "Europe/London"
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.Calendars = []config.CalendarConfig{
		{ID: "work", Kind: "ics", URL: work},
		{ID: "personal", Kind: "yaml", URL: "file://" + personal, Icon: "⭐"},
		{ID: "missing", Kind: "ics", URL: filepath.Join(dir, "missing.ics")},
	}
	cfg.Locations = []config.LocationConfig{{Name: "Home", Latitude: 51.5, Longitude: -0.12}}
	cfg.Weather.BaseURL = srv.URL
	cfg.Tasks.Today = []string{"Write report"}
	cfg.Device.Enabled = true
	cfg.Device.Password = "secret"
	return cfg
}

func testRunner(t *testing.T, cfg *config.Config, dev *fakeDevice) *Runner {
	t.Helper()
	r := NewRunner(cfg)
	r.Now = func() time.Time { return time.Date(2025, 7, 9, 6, 0, 0, 0, time.UTC) }
	r.NewPrinter = func(*config.Config) Printer { return fakePrinter{} }
	r.NewDevice = func(*config.Config) Device { return dev }
	return r
}

func TestRunOnce(t *testing.T) {
	dev := &fakeDevice{}
	r := testRunner(t, testConfig(t), dev)
	r.Store = &web.Store{}

	res, err := r.RunOnce(context.Background(), RunOptions{})
	require.NoError(t, err)

	require.Len(t, res.Sources, 3)
	assert.Equal(t, model.StatusOK, res.Sources[0].Status)
	assert.Equal(t, model.StatusOK, res.Sources[1].Status)
	assert.Equal(t, model.StatusFailed, res.Sources[2].Status)

	doc := res.Document
	assert.Equal(t, "NMS_2025_07_09_W", doc.Name)
	assert.Equal(t, "NMS_9_Jul_25", doc.VisibleName)
	require.Len(t, doc.Pages, 4)

	first := doc.Pages[0]
	require.Len(t, first.Events.Items, 2)
	assert.Equal(t, "Gym", first.Events.Items[0].Summary)
	assert.Equal(t, "⭐", first.Events.Items[0].Icon)
	assert.Equal(t, "Standup", first.Events.Items[1].Summary)
	assert.Equal(t, "09:30-09:45", first.Events.Items[1].DisplayTime)
	require.Len(t, first.Tasks.Items, 1)
	require.Len(t, first.Weather, 1)
	assert.Equal(t, "18–28°C; No rain expected; UV 7", first.Weather[0].Narrative)
	require.Len(t, first.TomorrowWeather, 1)

	pdf, err := os.ReadFile(res.PDFPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, "NMS_2025_07_09_W.pdf", filepath.Base(res.PDFPath))

	assert.True(t, res.Uploaded)
	assert.Equal(t, "doc-1", res.DocumentID)
	require.Len(t, dev.uploaded, 1)
	assert.Equal(t, "NMS_9_Jul_25", dev.uploaded[0].VisibleName)
	assert.Equal(t, 4, dev.uploaded[0].PageCount)
	assert.Equal(t, pdf, dev.uploaded[0].PDF)

	snap, ok := r.Store.Latest()
	require.True(t, ok)
	assert.Equal(t, doc.Name, snap.Document.Name)
	assert.NotEmpty(t, snap.PNG)
	assert.Contains(t, string(snap.HTML), `data-ready="true"`)
}

func TestRunOnceTestModeAndDump(t *testing.T) {
	dev := &fakeDevice{}
	cfg := testConfig(t)
	r := testRunner(t, cfg, dev)

	res, err := r.RunOnce(context.Background(), RunOptions{TestMode: true, Dump: true})
	require.NoError(t, err)
	assert.False(t, res.Uploaded)
	assert.Empty(t, dev.uploaded)

	base := filepath.Join(cfg.OutputDir, res.Document.Name)
	for _, ext := range []string{".pdf", ".html", ".json", ".png"} {
		_, err := os.Stat(base + ext)
		assert.NoError(t, err, ext)
	}

	raw, err := os.ReadFile(base + ".json")
	require.NoError(t, err)
	var doc model.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Len(t, doc.Pages, len(res.Document.Pages))
}

func TestRunOnceDeviceDisabled(t *testing.T) {
	dev := &fakeDevice{}
	cfg := testConfig(t)
	cfg.Device.Enabled = false

	res, err := testRunner(t, cfg, dev).RunOnce(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Uploaded)
	assert.Empty(t, dev.uploaded)
}

func TestRunOnceUploadFailure(t *testing.T) {
	dev := &fakeDevice{uploadErr: remarkable.ErrUnreachable}
	cfg := testConfig(t)

	res, err := testRunner(t, cfg, dev).RunOnce(context.Background(), RunOptions{})
	require.ErrorIs(t, err, remarkable.ErrUnreachable)
	require.NotNil(t, res)
	_, statErr := os.Stat(res.PDFPath)
	assert.NoError(t, statErr)
}

func TestRunOncePreviewFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	r := testRunner(t, cfg, &fakeDevice{})
	r.NewPrinter = func(*config.Config) Printer { return fakePrinter{pngErr: errors.New("no chrome")} }
	r.Store = &web.Store{}

	_, err := r.RunOnce(context.Background(), RunOptions{TestMode: true})
	require.NoError(t, err)

	snap, ok := r.Store.Latest()
	require.True(t, ok)
	assert.Empty(t, snap.PNG)
}

func TestRunOnceWithoutSourcesOrWeather(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.CacheDir = t.TempDir()

	res, err := testRunner(t, cfg, &fakeDevice{}).RunOnce(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Document.Pages, 4)
	assert.Empty(t, res.Document.Pages[0].Weather)
	assert.NotEmpty(t, res.Document.Pages[0].Events.EmptyText)
}

func TestCheck(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, testRunner(t, cfg, &fakeDevice{}).Check(context.Background()))

	err := testRunner(t, cfg, &fakeDevice{reachErr: remarkable.ErrUnreachable}).Check(context.Background())
	assert.ErrorIs(t, err, remarkable.ErrUnreachable)

	cfg.Weather.BaseURL = "http://127.0.0.1:1"
	cfg.Device.Enabled = false
	assert.Error(t, testRunner(t, cfg, &fakeDevice{}).Check(context.Background()))
}

func TestSetConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	r := NewRunner(cfg)
	assert.Same(t, cfg, r.Config())

	next := config.DefaultConfig()
	r.SetConfig(next)
	assert.Same(t, next, r.Config())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh/id_ed25519"), expandHome("~/.ssh/id_ed25519"))
	assert.Equal(t, "/etc/key", expandHome("/etc/key"))
	assert.Equal(t, "", expandHome(""))
}
