package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation, ${VAR}
// expansion and 0600 permissions.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultItemsPerPage = 6
	defaultRefresh      = "0 5 * * *"
	defaultLookbackDays = 7
	defaultPrefix       = "NMS"
	defaultWeatherURL   = "https://api.open-meteo.com/v1/forecast"
	defaultLikely       = 50
	defaultTimeout      = 15

	// DefaultDocumentDir is where the reMarkable UI keeps its documents.
	DefaultDocumentDir = "/home/root/.local/share/remarkable/xochitl"
	// USBHost is the device address when connected over USB.
	USBHost = "10.11.99.1"
)

// CalendarConfig describes a single calendar source.
type CalendarConfig struct {
	// ID is an internal identifier used for ordering ties and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Kind is "ics" (default) or "yaml".
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// URL is an http(s) endpoint, file:// URL or local path.
	URL string `yaml:"url" json:"url"`
	// Icon, if set, replaces keyword icons for every event of this source.
	Icon string `yaml:"icon,omitempty" json:"icon,omitempty"`
}

func (c CalendarConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Kind, validation.In("ics", "yaml")),
	)
}

// LocationConfig is a named point to fetch weather for.
type LocationConfig struct {
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

func (c LocationConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&c.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)
}

// WeatherConfig configures the forecast client and narrative.
type WeatherConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// LikelyThreshold is the probability (percent) an hour must exceed to
	// count as "rain likely".
	LikelyThreshold int `yaml:"likely_threshold" json:"likely_threshold"`
	TimeoutSeconds  int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

func (c WeatherConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.LikelyThreshold, validation.Min(0), validation.Max(100)),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

// TasksConfig lists the task lines shown for each day.
type TasksConfig struct {
	Today    []string `yaml:"today,omitempty" json:"today,omitempty"`
	Tomorrow []string `yaml:"tomorrow,omitempty" json:"tomorrow,omitempty"`
}

// EpigraphConfig is an optional quote for the first page of a day.
type EpigraphConfig struct {
	Quote  string `yaml:"quote" json:"quote"`
	Author string `yaml:"author,omitempty" json:"author,omitempty"`
}

// HeadersConfig controls day header prefixes and epigraphs. Empty
// prefixes fall back to DocumentPrefix.
type HeadersConfig struct {
	TodayPrefix      string          `yaml:"today_prefix,omitempty" json:"today_prefix,omitempty"`
	TomorrowPrefix   string          `yaml:"tomorrow_prefix,omitempty" json:"tomorrow_prefix,omitempty"`
	Epigraph         *EpigraphConfig `yaml:"epigraph,omitempty" json:"epigraph,omitempty"`
	TomorrowEpigraph *EpigraphConfig `yaml:"tomorrow_epigraph,omitempty" json:"tomorrow_epigraph,omitempty"`
}

// DeviceConfig describes the reMarkable tablet reached over SSH.
type DeviceConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Hosts are tried in order; the USB address usually comes first.
	Hosts    []string `yaml:"hosts" json:"hosts"`
	Port     int      `yaml:"port" json:"port"`
	User     string   `yaml:"user" json:"user"`
	Password string   `yaml:"password,omitempty" json:"password,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty" json:"key_path,omitempty"`
	// KnownHosts, if set, enables host key verification.
	KnownHosts     string `yaml:"known_hosts,omitempty" json:"known_hosts,omitempty"`
	DocumentDir    string `yaml:"document_dir" json:"document_dir"`
	RestartUI      bool   `yaml:"restart_ui" json:"restart_ui"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

func (c DeviceConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Hosts, validation.Required),
		validation.Field(&c.Port, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.DocumentDir, validation.Required),
		validation.Field(&c.KeyPath, validation.When(c.Password == "", validation.Required.Error("key_path or password is required"))),
	)
}

// BrowserConfig controls the headless Chromium used for PDF output.
type BrowserConfig struct {
	// Path overrides the Chromium binary lookup.
	Path           string `yaml:"path,omitempty" json:"path,omitempty"`
	NoSandbox      bool   `yaml:"no_sandbox" json:"no_sandbox"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

func (c BrowserConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the preview server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Europe/London").
	Timezone string `yaml:"timezone" json:"timezone"`

	// ItemsPerPage is the capacity of each list on a page.
	ItemsPerPage int `yaml:"items_per_page" json:"items_per_page"`

	// RefreshCron is a standard 5-field cron schedule for the daemon.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LookbackDays widens expansion backwards for long all-day events.
	LookbackDays int `yaml:"lookback_days" json:"lookback_days"`

	OutputDir string `yaml:"output_dir" json:"output_dir"`
	CacheDir  string `yaml:"cache_dir" json:"cache_dir"`

	// DocumentPrefix starts document names and default day headers.
	DocumentPrefix string `yaml:"document_prefix" json:"document_prefix"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`
	Locations []LocationConfig `yaml:"locations" json:"locations"`

	Weather WeatherConfig `yaml:"weather" json:"weather"`
	Tasks   TasksConfig   `yaml:"tasks" json:"tasks"`
	Headers HeadersConfig `yaml:"headers" json:"headers"`
	Device  DeviceConfig  `yaml:"device" json:"device"`
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		ItemsPerPage:   defaultItemsPerPage,
		RefreshCron:    defaultRefresh,
		LookbackDays:   defaultLookbackDays,
		OutputDir:      "./var/output",
		CacheDir:       "./var/cache",
		DocumentPrefix: defaultPrefix,
		LogLevel:       "info",
		Calendars:      []CalendarConfig{},
		Locations:      []LocationConfig{},
		Weather: WeatherConfig{
			BaseURL:         defaultWeatherURL,
			LikelyThreshold: defaultLikely,
			TimeoutSeconds:  defaultTimeout,
		},
		Device: DeviceConfig{
			Hosts:          []string{USBHost},
			Port:           22,
			User:           "root",
			DocumentDir:    DefaultDocumentDir,
			RestartUI:      true,
			TimeoutSeconds: 10,
		},
		Browser: BrowserConfig{
			TimeoutSeconds: 60,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. ItemsPerPage is left
// alone when set so that Validate can reject bad values.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.ItemsPerPage == 0 {
		c.ItemsPerPage = def.ItemsPerPage
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = def.LookbackDays
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.DocumentPrefix == "" {
		c.DocumentPrefix = def.DocumentPrefix
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		if c.Calendars[i].Kind == "" {
			c.Calendars[i].Kind = "ics"
		}
	}
	if c.Locations == nil {
		c.Locations = []LocationConfig{}
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = def.Weather.BaseURL
	}
	if c.Weather.LikelyThreshold == 0 {
		c.Weather.LikelyThreshold = def.Weather.LikelyThreshold
	}
	if c.Weather.TimeoutSeconds == 0 {
		c.Weather.TimeoutSeconds = def.Weather.TimeoutSeconds
	}
	if len(c.Device.Hosts) == 0 {
		c.Device.Hosts = def.Device.Hosts
	}
	if c.Device.Port == 0 {
		c.Device.Port = def.Device.Port
	}
	if c.Device.User == "" {
		c.Device.User = def.Device.User
	}
	if c.Device.DocumentDir == "" {
		c.Device.DocumentDir = def.Device.DocumentDir
	}
	if c.Device.TimeoutSeconds == 0 {
		c.Device.TimeoutSeconds = def.Device.TimeoutSeconds
	}
	if c.Browser.TimeoutSeconds == 0 {
		c.Browser.TimeoutSeconds = def.Browser.TimeoutSeconds
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Timezone, validation.Required, validation.By(validTimezone)),
		validation.Field(&c.ItemsPerPage, validation.Required, validation.Min(1)),
		validation.Field(&c.RefreshCron, validation.Required, validation.By(validCron)),
		validation.Field(&c.LookbackDays, validation.Min(0)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Calendars),
		validation.Field(&c.Locations),
		validation.Field(&c.Weather),
		validation.Field(&c.Device),
		validation.Field(&c.Browser),
	); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Calendars))
	for _, cal := range c.Calendars {
		if seen[cal.ID] {
			return fmt.Errorf("calendars: duplicate id %q", cal.ID)
		}
		seen[cal.ID] = true
	}

	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		return errors.New("basic_auth: username and password are required")
	}
	return nil
}

func validTimezone(value any) error {
	s, _ := value.(string)
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown timezone %q", s)
	}
	return nil
}

func validCron(value any) error {
	s, _ := value.(string)
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("invalid cron spec: %v", err)
	}
	return nil
}

// Location returns the configured display timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// WeatherTimeout returns the forecast request timeout.
func (c *Config) WeatherTimeout() time.Duration {
	return time.Duration(c.Weather.TimeoutSeconds) * time.Second
}

// BrowserTimeout bounds a single PDF or PNG capture.
func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// DeviceTimeout returns the SSH dial timeout.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.Device.TimeoutSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - expand ${VAR} references from the environment
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	return Parse(data)
}

// Parse decodes, normalizes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dayplan-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
