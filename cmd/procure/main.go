package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/procurement-engine/internal/bootstrap"
	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/metrics"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

type contextKey string

const appKey contextKey = "app"

func newDateFlag(name, usage string, required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     name,
		Usage:    usage + " (YYYY-MM-DD)",
		Required: required,
	}
}

func dateArg(c *cli.Context, name string) (time.Time, error) {
	d, err := domain.ParseDate(c.String(name))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return d, nil
}

func loadConfig(c *cli.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// initApp connects every store; commands that only touch object storage skip it.
func initApp(c *cli.Context) error {
	app, err := bootstrap.New(c.Context, config.Load(), metrics.Default())
	if err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, appKey, app)
	return nil
}

func closeApp(c *cli.Context) error {
	if app, ok := c.Context.Value(appKey).(*bootstrap.App); ok && app != nil {
		return app.Close()
	}
	return nil
}

func appFrom(c *cli.Context) (*bootstrap.App, error) {
	app, ok := c.Context.Value(appKey).(*bootstrap.App)
	if !ok || app == nil {
		return nil, errors.New("application not initialized")
	}
	return app, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:   "procure",
		Usage:  "Run the demand netting pipeline and manage its inputs",
		Before: loadConfig,
		Commands: []*cli.Command{
			migrateCommand(),
			runCommand(),
			backfillCommand(),
			retryCommand(),
			seedCommand(),
			ordersCommand(),
			snapshotsCommand(),
			driveCommand(),
			exportCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
