package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appLog "dayplan/internal/log"
	"dayplan/internal/weather"
)

// Check verifies connectivity: the device (when enabled) and the weather
// API for every configured location.
func (r *Runner) Check(ctx context.Context) error {
	cfg := r.Config()
	var errs []error

	if cfg.Device.Enabled {
		host, err := r.NewDevice(cfg).Reachable(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("device: %w", err))
		} else {
			appLog.Info("check: device ok", "host", host)
		}
	} else {
		appLog.Info("check: device disabled")
	}

	if len(cfg.Locations) > 0 {
		loc, err := cfg.Location()
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		client := weather.NewClient(cfg.Weather.BaseURL, cfg.WeatherTimeout())
		for _, res := range client.FetchAll(ctx, weatherLocations(cfg), loc) {
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("weather %s: %w", res.Location.Name, res.Err))
				continue
			}
			appLog.Info("check: weather ok", "location", res.Location.Name, "days", len(res.Days))
		}
	}

	return errors.Join(errs...)
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
