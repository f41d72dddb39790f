package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "dayplan/internal/log"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads the config at path whenever it changes and hands each
// valid result to onChange. Invalid edits are logged and skipped. It
// blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, since editors
// and Save replace the file by rename.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	appLog.Info("config watcher started", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			appLog.Info("config watcher stopped")
			return nil

		case <-fire:
			fire = nil
			cfg, err := Load(target)
			if err != nil {
				appLog.Error("config reload failed; keeping previous config", err, "path", target)
				continue
			}
			appLog.Info("config reloaded", "path", target)
			onChange(cfg)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Warn("config watcher error", "err", err)
		}
	}
}
