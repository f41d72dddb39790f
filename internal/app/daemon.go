package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"dayplan/internal/config"
	appLog "dayplan/internal/log"
	"dayplan/internal/web"
)

// Serve runs the daemon until ctx is cancelled: an immediate cycle, then
// cycles on the configured cron schedule, the preview server, and a
// config watcher that swaps in edited configurations.
func (r *Runner) Serve(ctx context.Context, configPath string, opts RunOptions) error {
	cfg := r.Config()
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	if r.Store == nil {
		r.Store = &web.Store{}
	}

	g, gctx := errgroup.WithContext(ctx)

	cycle := func() {
		if _, err := r.RunOnce(gctx, opts); err != nil {
			appLog.Error("scheduled cycle failed", err)
		}
	}

	sched := &schedule{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		job: cycle,
	}
	if err := sched.set(cfg.RefreshCron); err != nil {
		return err
	}
	sched.cron.Start()

	srv := web.NewServer(cfg.Listen, cfg.BasicAuth, r.Store, func(ctx context.Context) error {
		_, err := r.RunOnce(ctx, opts)
		return err
	})

	g.Go(func() error {
		cycle()
		return nil
	})

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(next *config.Config) {
				prev := r.Config()
				r.SetConfig(next)
				if next.Listen != prev.Listen {
					appLog.Warn("listen address change takes effect after restart", "listen", next.Listen)
				}
				if next.Timezone != prev.Timezone {
					appLog.Warn("schedule timezone change takes effect after restart", "timezone", next.Timezone)
				}
				if next.RefreshCron != prev.RefreshCron {
					if err := sched.set(next.RefreshCron); err != nil {
						appLog.Error("reschedule failed; keeping previous schedule", err)
					}
				}
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		<-sched.cron.Stop().Done()
		appLog.Info("scheduler stopped")
		return nil
	})

	appLog.Info("daemon started", "schedule", cfg.RefreshCron, "timezone", loc.String(), "listen", cfg.Listen)
	return g.Wait()
}

type schedule struct {
	mu   sync.Mutex
	cron *cron.Cron
	id   cron.EntryID
	job  func()
}

// set replaces the scheduled entry with one on spec.
func (s *schedule) set(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, s.job)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	if s.id != 0 {
		s.cron.Remove(s.id)
	}
	s.id = id
	appLog.Info("refresh scheduled", "spec", spec)
	return nil
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
