package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/procurement-engine/internal/bootstrap"
	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline"
	"github.com/andresuchdata/procurement-engine/internal/storage"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

var artifactDatasets = []string{
	pipeline.DatasetAggregatedOrders,
	pipeline.DatasetNetDemand,
	pipeline.DatasetSupplierOrders,
	pipeline.DatasetExceptions,
	pipeline.DatasetRunSummary,
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Download the published artifacts of a business date",
		Flags: []cli.Flag{
			newDateFlag("date", "Business date", true),
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Local destination directory",
				Value: "./data/export",
			},
			&cli.StringSliceFlag{
				Name:  "dataset",
				Usage: "Only export these datasets (" + strings.Join(artifactDatasets, ", ") + ")",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Download a single object, relative to the output prefix",
			},
		},
		Action: func(c *cli.Context) error {
			date, err := dateArg(c, "date")
			if err != nil {
				return err
			}
			cfg := config.Load()
			store, err := bootstrap.NewStorage(c.Context, cfg.Storage)
			if err != nil {
				return err
			}

			e := &exporter{client: store, prefix: cfg.Pipeline.OutputPrefix, destDir: c.String("dir")}
			var paths []string
			if key := c.String("key"); key != "" {
				paths, err = e.downloadObjects(c.Context, []string{resolveObjectKey(e.prefix, key)})
			} else {
				paths, err = e.exportDate(c.Context, date, c.StringSlice("dataset"))
			}
			if err != nil {
				return err
			}
			for _, p := range paths {
				logger.Log.Info().Str("path", p).Msg("artifact downloaded")
			}
			return nil
		},
	}
}

type exporter struct {
	client  storage.ObjectStorage
	prefix  string
	destDir string
}

// exportDate downloads every artifact of the date, or only the named datasets.
func (e *exporter) exportDate(ctx context.Context, date time.Time, datasets []string) ([]string, error) {
	if len(datasets) == 0 {
		datasets = artifactDatasets
	}

	var keys []string
	for _, dataset := range datasets {
		listPrefix := path.Join(e.prefix, dataset, date.Format(domain.DateLayout)) + "/"
		objects, err := e.client.ListObjects(ctx, listPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts for prefix %s: %w", listPrefix, err)
		}
		for _, obj := range objects {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no artifacts found for %s under %s", date.Format(domain.DateLayout), e.prefix)
	}
	return e.downloadObjects(ctx, keys)
}

func (e *exporter) downloadObjects(ctx context.Context, keys []string) ([]string, error) {
	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(e.destDir, filepath.FromSlash(objectRelativePath(e.prefix, key)))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare directory for %s: %w", localPath, err)
		}
		if err := e.client.DownloadObject(ctx, key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

func resolveObjectKey(prefix, override string) string {
	if override == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(override, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	overrideTrimmed := strings.TrimPrefix(strings.TrimSpace(override), "/")

	if strings.HasPrefix(overrideTrimmed, prefixTrimmed+"/") {
		return overrideTrimmed
	}
	return prefixTrimmed + "/" + overrideTrimmed
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return path.Base(key)
	}
	return rel
}
