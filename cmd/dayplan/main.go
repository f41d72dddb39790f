package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"dayplan/internal/app"
	"dayplan/internal/config"
	appLog "dayplan/internal/log"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "dayplan",
		Usage:   "Build a daily planning PDF from calendars, weather and tasks and push it to a reMarkable",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("DAYPLAN_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one fetch, plan, render and upload cycle",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "test-mode", Usage: "Skip the device upload"},
					&cli.BoolFlag{Name: "dump", Usage: "Also write HTML, page JSON and a PNG preview"},
				},
				Action: runOnce,
			},
			{
				Name:  "serve",
				Usage: "Run on the refresh schedule and serve previews over HTTP",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "test-mode", Usage: "Skip the device upload"},
				},
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "Check device reachability and the weather API",
				Action: check,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		appLog.Error("dayplan failed", err)
		os.Exit(1)
	}
}

// newRunner loads the config and applies logging flags.
func newRunner(cmd *cli.Command) (*app.Runner, string, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}

	level, ok := appLog.ParseLevel(cfg.LogLevel)
	if !ok {
		appLog.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}
	if cmd.Bool("verbose") {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"config_path", path,
		"timezone", cfg.Timezone,
		"items_per_page", cfg.ItemsPerPage,
		"calendars", len(cfg.Calendars),
		"locations", len(cfg.Locations),
		"device", cfg.Device.Enabled,
	)
	return app.NewRunner(cfg), path, nil
}

func runOnce(ctx context.Context, cmd *cli.Command) error {
	r, _, err := newRunner(cmd)
	if err != nil {
		return err
	}
	res, err := r.RunOnce(ctx, app.RunOptions{
		TestMode: cmd.Bool("test-mode"),
		Dump:     cmd.Bool("dump"),
	})
	if err != nil {
		return err
	}
	fmt.Println(res.PDFPath)
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	r, path, err := newRunner(cmd)
	if err != nil {
		return err
	}
	return r.Serve(ctx, path, app.RunOptions{TestMode: cmd.Bool("test-mode")})
}

func check(ctx context.Context, cmd *cli.Command) error {
	r, _, err := newRunner(cmd)
	if err != nil {
		return err
	}
	if err := r.Check(ctx); err != nil {
		return err
	}
	appLog.Info("all checks passed")
	return nil
}
