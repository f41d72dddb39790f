package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
timezone: Europe/London
items_per_page: 5
calendars:
  - id: work
    url: https://example.com/work.ics?token=${DAYPLAN_TEST_TOKEN}
  - id: personal
    kind: yaml
    url: ./events.yaml
    icon: "⭐"
locations:
  - name: Home
    latitude: 51.5
    longitude: -0.12
tasks:
  today: ["Write report"]
device:
  enabled: true
  key_path: ~/.ssh/id_ed25519
`

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestParseExpandsEnvAndNormalizes(t *testing.T) {
	t.Setenv("DAYPLAN_TEST_TOKEN", "s3cret")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/work.ics?token=s3cret", cfg.Calendars[0].URL)
	assert.Equal(t, "ics", cfg.Calendars[0].Kind)
	assert.Equal(t, "yaml", cfg.Calendars[1].Kind)
	assert.Equal(t, 5, cfg.ItemsPerPage)
	assert.Equal(t, defaultRefresh, cfg.RefreshCron)
	assert.Equal(t, []string{USBHost}, cfg.Device.Hosts)
	assert.Equal(t, DefaultDocumentDir, cfg.Device.DocumentDir)
	assert.Equal(t, 50, cfg.Weather.LikelyThreshold)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative capacity", func(c *Config) { c.ItemsPerPage = -1 }},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad cron", func(c *Config) { c.RefreshCron = "every morning" }},
		{"calendar without url", func(c *Config) { c.Calendars = []CalendarConfig{{ID: "a"}} }},
		{"calendar bad kind", func(c *Config) { c.Calendars = []CalendarConfig{{ID: "a", URL: "x", Kind: "csv"}} }},
		{"duplicate calendar", func(c *Config) {
			c.Calendars = []CalendarConfig{{ID: "a", URL: "x"}, {ID: "a", URL: "y"}}
		}},
		{"latitude out of range", func(c *Config) { c.Locations = []LocationConfig{{Name: "x", Latitude: 91}} }},
		{"threshold out of range", func(c *Config) { c.Weather.LikelyThreshold = 120 }},
		{"device without credentials", func(c *Config) { c.Device.Enabled = true }},
		{"half basic auth", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "u"} }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative browser timeout", func(c *Config) { c.Browser.TimeoutSeconds = -1 }},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Calendars = []CalendarConfig{{ID: "work", Kind: "ics", URL: "https://example.com/a.ics"}}
	cfg.Headers.Epigraph = &EpigraphConfig{Quote: "Begin.", Author: "Anon"}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	updated := DefaultConfig()
	updated.ItemsPerPage = 9
	require.NoError(t, Save(path, updated))

	select {
	case c := <-changes:
		assert.Equal(t, 9, c.ItemsPerPage)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}
