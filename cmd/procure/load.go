package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/procurement-engine/internal/bootstrap"
	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/internal/repository/objectstore"
	"github.com/andresuchdata/procurement-engine/internal/repository/postgres"
	"github.com/andresuchdata/procurement-engine/internal/storage"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

func fileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "file",
		Usage:    "CSV or XLSX file to load",
		Required: true,
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Upsert master data (products, warehouses, suppliers, terms, safety stock)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory containing master data files",
				Value:   "./data/seeds/master_data",
				EnvVars: []string{"SEED_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:  "from-storage",
				Usage: "Read master data from the input prefix of object storage instead of --data-dir",
			},
		},
		Before: initApp,
		After:  closeApp,
		Action: func(c *cli.Context) error {
			app, err := appFrom(c)
			if err != nil {
				return err
			}

			var records domain.MasterDataRecords
			if c.Bool("from-storage") {
				records, err = app.Feeds.LoadMasterData(c.Context)
			} else {
				dir := c.String("data-dir")
				records, err = objectstore.NewFeeds(storage.NewLocalStorage(dir), "").LoadMasterDataFrom(c.Context, "")
			}
			if err != nil {
				return fmt.Errorf("failed to read master data: %w", err)
			}

			stats, err := repository.NewIngestRepository(app.SQL).UpsertMasterData(c.Context, records)
			if err != nil {
				return fmt.Errorf("failed to seed master data: %w", err)
			}
			logger.Log.Info().
				Int("products", stats.Products).
				Int("warehouses", stats.Warehouses).
				Int("suppliers", stats.Suppliers).
				Int("terms", stats.Terms).
				Int("safety_stocks", stats.SafetyStocks).
				Msg("master data seeded")
			return nil
		},
	}
}

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "Manage raw order feeds",
		Subcommands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Load an order file for a business date into the configured order source",
				Flags:  []cli.Flag{fileFlag(), newDateFlag("date", "Business date", true)},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					app, date, data, err := loadArgs(c)
					if err != nil {
						return err
					}
					lines, err := objectstore.ParseOrderLines(c.String("file"), data)
					if err != nil {
						return err
					}

					if app.Config.Pipeline.OrderSource == "postgres" {
						if err := postgres.NewOrderRepository(app.DB).SaveOrderLines(c.Context, date, lines); err != nil {
							return err
						}
					} else if err := uploadFeed(c.Context, app, objectstore.FeedOrders, date, c.String("file"), data); err != nil {
						return err
					}
					logger.Log.Info().Int("lines", len(lines)).Str("business_date", date.Format(domain.DateLayout)).Msg("orders loaded")
					return nil
				},
			},
		},
	}
}

func snapshotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "Manage inventory snapshots",
		Subcommands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Load a snapshot file taken on the given date into the configured snapshot source",
				Flags:  []cli.Flag{fileFlag(), newDateFlag("date", "Snapshot date", true)},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					app, date, data, err := loadArgs(c)
					if err != nil {
						return err
					}
					snapshots, err := objectstore.ParseSnapshots(c.String("file"), data, date)
					if err != nil {
						return err
					}

					if app.Snapshot != nil {
						if err := app.Snapshot.SaveSnapshots(c.Context, snapshots); err != nil {
							return err
						}
					} else if err := uploadFeed(c.Context, app, objectstore.FeedSnapshots, date, c.String("file"), data); err != nil {
						return err
					}
					logger.Log.Info().Int("rows", len(snapshots)).Str("snapshot_date", date.Format(domain.DateLayout)).Msg("snapshots loaded")
					return nil
				},
			},
		},
	}
}

func loadArgs(c *cli.Context) (*bootstrap.App, time.Time, []byte, error) {
	date, err := dateArg(c, "date")
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	app, err := appFrom(c)
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return nil, time.Time{}, nil, fmt.Errorf("failed to read %s: %w", c.String("file"), err)
	}
	return app, date, data, nil
}

func uploadFeed(ctx context.Context, app *bootstrap.App, feed string, date time.Time, file string, data []byte) error {
	key := objectstore.FeedPrefix(app.Config.Pipeline.InputPrefix, feed, date) + filepath.Base(file)
	if err := app.Storage.UploadObject(ctx, key, data); err != nil {
		return err
	}
	logger.Log.Info().Str("key", key).Msg("feed file uploaded")
	return nil
}
