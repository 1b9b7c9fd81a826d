package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/procurement-engine/internal/bootstrap"
	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/drive"
)

func driveCommand() *cli.Command {
	return &cli.Command{
		Name:  "drive",
		Usage: "Pull input files from Google Drive",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Copy a Drive folder into the input feed of a dataset and business date",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "One of " + strings.Join(drive.Datasets, ", "),
						Required: true,
					},
					newDateFlag("date", "Business date", true),
					&cli.StringFlag{
						Name:  "folder",
						Usage: "Drive folder ID (defaults to DRIVE_FOLDER_ID)",
					},
					&cli.StringFlag{
						Name:  "path",
						Usage: "Drive folder path such as Procurement/Orders, resolved from My Drive",
					},
				},
				Action: func(c *cli.Context) error {
					date, err := dateArg(c, "date")
					if err != nil {
						return err
					}
					cfg := config.Load()

					credentials, err := os.ReadFile(cfg.Drive.CredentialsFile)
					if err != nil {
						return fmt.Errorf("failed to read Google Drive credentials: %w", err)
					}
					svc, err := drive.NewService(c.Context, credentials)
					if err != nil {
						return err
					}

					folderID := c.String("folder")
					if p := c.String("path"); p != "" {
						if folderID, err = svc.FindFolderByPath(c.Context, p); err != nil {
							return err
						}
					}
					if folderID == "" {
						folderID = cfg.Drive.FolderID
					}
					if folderID == "" {
						return errors.New("one of --folder, --path or DRIVE_FOLDER_ID is required")
					}

					store, err := bootstrap.NewStorage(c.Context, cfg.Storage)
					if err != nil {
						return err
					}
					_, err = drive.NewImporter(svc, store, cfg.Pipeline.InputPrefix).ImportFolder(c.Context, folderID, c.String("dataset"), date)
					return err
				},
			},
		},
	}
}
